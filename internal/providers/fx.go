package providers

import (
	"github.com/smallbiznis/workdesk/internal/providers/email"
	"github.com/smallbiznis/workdesk/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
