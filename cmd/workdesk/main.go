package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workdesk/internal/clock"
	"github.com/smallbiznis/workdesk/internal/config"
	"github.com/smallbiznis/workdesk/internal/migration"
	"github.com/smallbiznis/workdesk/internal/observability"
	"github.com/smallbiznis/workdesk/internal/server"
	"github.com/smallbiznis/workdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domains and HTTP surface
		server.Module,

		// Schema and reference data, applied before the listener starts
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
