package workorder

import (
	"github.com/smallbiznis/workdesk/internal/workorder/repository"
	"github.com/smallbiznis/workdesk/internal/workorder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workorder.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
