package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	"github.com/smallbiznis/workdesk/internal/config"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	taxdomain "github.com/smallbiznis/workdesk/internal/taxrate/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const allDepartmentsName = "All Departments"

// Run seeds the reference rows every deployment needs, then the optional bootstrap admin.
func Run(ctx context.Context, db *gorm.DB, cfg config.Config, registrar directorydomain.Registrar, auditSvc auditdomain.Service, log *zap.Logger) error {
	if err := EnsureReferenceData(ctx, db, cfg); err != nil {
		return err
	}
	return EnsureBootstrapAdmin(ctx, cfg, registrar, auditSvc, log)
}

// EnsureReferenceData creates the all-department department and zero tax rates at version 1.
func EnsureReferenceData(ctx context.Context, db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureAllDepartmentTx(ctx, tx, snowflake.ID(cfg.AllDepartmentID)); err != nil {
			return err
		}
		return ensureTaxRatesTx(ctx, tx, node)
	})
}

func ensureAllDepartmentTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	if id == 0 {
		return nil
	}
	now := time.Now().UTC()
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&directorydomain.Department{ID: id, Name: allDepartmentsName, CreatedAt: now, UpdatedAt: now}).Error
}

func ensureTaxRatesTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	now := time.Now().UTC()
	for _, taxType := range taxdomain.TaxTypes() {
		var count int64
		if err := tx.WithContext(ctx).
			Model(&taxdomain.TaxRate{}).
			Where("type = ?", taxType).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		rate := taxdomain.TaxRate{ID: node.Generate(), Type: taxType, Rate: decimal.Zero, Version: 1, UpdatedAt: now}
		if err := tx.WithContext(ctx).Create(&rate).Error; err != nil {
			return err
		}
		version := taxdomain.TaxRateVersion{ID: node.Generate(), Type: taxType, Rate: decimal.Zero, Version: 1, EffectiveFrom: now}
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&version).Error; err != nil {
			return err
		}
	}
	return nil
}

// EnsureBootstrapAdmin creates the configured admin in the all-department department.
func EnsureBootstrapAdmin(ctx context.Context, cfg config.Config, registrar directorydomain.Registrar, auditSvc auditdomain.Service, log *zap.Logger) error {
	email := strings.TrimSpace(cfg.Bootstrap.AdminEmail)
	if email == "" || registrar == nil {
		return nil
	}
	if cfg.Bootstrap.AdminPassword == "" {
		return errors.New("BOOTSTRAP_ADMIN_PASSWORD is required when BOOTSTRAP_ADMIN_EMAIL is set")
	}

	admin, created, err := registrar.EnsureAdmin(ctx, directorydomain.NewAccount{
		Name:         cfg.Bootstrap.AdminName,
		Email:        email,
		Password:     cfg.Bootstrap.AdminPassword,
		DepartmentID: snowflake.ID(cfg.AllDepartmentID),
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	if log != nil {
		log.Info("bootstrap admin created", zap.String("admin_id", admin.ID.String()))
	}
	if auditSvc != nil {
		adminID := admin.ID.String()
		_ = auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeSystem), nil, auditdomain.ActionAdminBootstrapped, "admin", &adminID, map[string]any{
			"department_id": admin.DepartmentID.String(),
		})
	}
	return nil
}
