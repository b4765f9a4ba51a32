package auth

import (
	"github.com/smallbiznis/workdesk/internal/auth/service"
	"github.com/smallbiznis/workdesk/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(token.NewFromConfig),
	fx.Provide(service.NewService),
)
