package migration

import (
	"context"

	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	"github.com/smallbiznis/workdesk/internal/config"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/smallbiznis/workdesk/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(migrateAndSeed),
)

type params struct {
	fx.In

	DB        *gorm.DB
	Cfg       config.Config
	Registrar directorydomain.Registrar
	AuditSvc  auditdomain.Service `optional:"true"`
	Log       *zap.Logger
}

func migrateAndSeed(p params) error {
	if err := Apply(p.DB); err != nil {
		return err
	}
	p.Log.Info("database schema up to date", zap.String("dialect", p.DB.Dialector.Name()))
	return seed.Run(context.Background(), p.DB, p.Cfg, p.Registrar, p.AuditSvc, p.Log)
}
