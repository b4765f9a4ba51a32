package ratelimit

import (
	authdomain "github.com/smallbiznis/workdesk/internal/auth/domain"
	workorderdomain "github.com/smallbiznis/workdesk/internal/workorder/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(fx.Annotate(NewLoginLimiter, fx.As(new(authdomain.AttemptLimiter)))),
	fx.Provide(fx.Annotate(NewCompletionLocker, fx.As(new(workorderdomain.CompletionGuard)))),
)
