package directory

import (
	"github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/smallbiznis/workdesk/internal/directory/repository"
	"github.com/smallbiznis/workdesk/internal/directory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("directory.service",
	fx.Provide(repository.Provide),
	fx.Provide(
		fx.Annotate(
			service.New,
			fx.As(new(domain.Service)),
			fx.As(new(domain.Lookup)),
			fx.As(new(domain.Registrar)),
		),
	),
)
