package taxrate

import (
	"github.com/smallbiznis/workdesk/internal/taxrate/repository"
	"github.com/smallbiznis/workdesk/internal/taxrate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("taxrate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
