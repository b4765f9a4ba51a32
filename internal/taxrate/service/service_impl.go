package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/clock"
	"github.com/smallbiznis/workdesk/internal/taxrate/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Authz    authorization.Service
	AuditSvc auditdomain.Service `optional:"true"`
	Clock    clock.Clock         `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	authz    authorization.Service
	auditSvc auditdomain.Service
	clock    clock.Clock
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("taxrate.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		authz:    p.Authz,
		auditSvc: p.AuditSvc,
		clock:    clk,
	}
}

func (s *Service) GetRate(ctx context.Context, taxType domain.TaxType) (decimal.Decimal, error) {
	if _, err := domain.ParseTaxType(string(taxType)); err != nil {
		return decimal.Zero, err
	}
	current, err := s.repo.FindByType(ctx, s.db, taxType, false)
	if err != nil {
		return decimal.Zero, err
	}
	if current == nil {
		return decimal.Zero, nil
	}
	return current.Rate, nil
}

func (s *Service) SetRate(ctx context.Context, actor authorization.Actor, taxType domain.TaxType, rate decimal.Decimal) (domain.TaxRate, error) {
	taxType, err := domain.ParseTaxType(string(taxType))
	if err != nil {
		return domain.TaxRate{}, err
	}
	if rate.LessThan(domain.MinRate) || rate.GreaterThan(domain.MaxRate) {
		return domain.TaxRate{}, domain.ErrInvalidTaxRate
	}
	if err := s.authz.Authorize(ctx, actor, authorization.ActionTaxRateUpdate, authorization.Collection()); err != nil {
		return domain.TaxRate{}, err
	}

	now := s.clock.Now().UTC()
	changedBy := actor.IDString()
	var (
		updated  domain.TaxRate
		previous decimal.Decimal
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByType(ctx, tx, taxType, true)
		if err != nil {
			return err
		}

		if current == nil {
			updated = domain.TaxRate{
				ID:        s.genID.Generate(),
				Type:      taxType,
				Rate:      rate,
				Version:   1,
				UpdatedAt: now,
				UpdatedBy: &changedBy,
			}
			if err := s.repo.Insert(ctx, tx, &updated); err != nil {
				return err
			}
		} else {
			previous = current.Rate
			updated = *current
			updated.Rate = rate
			updated.Version = current.Version + 1
			updated.UpdatedAt = now
			updated.UpdatedBy = &changedBy

			ok, err := s.repo.UpdateRate(ctx, tx, &updated, current.Version)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrConcurrentUpdate
			}
		}

		if err := s.repo.CloseCurrentVersion(ctx, tx, taxType, now); err != nil {
			return err
		}
		return s.repo.InsertVersion(ctx, tx, &domain.TaxRateVersion{
			ID:            s.genID.Generate(),
			Type:          taxType,
			Rate:          rate,
			Version:       updated.Version,
			EffectiveFrom: now,
			ChangedBy:     &changedBy,
		})
	})
	if err != nil {
		return domain.TaxRate{}, err
	}

	s.log.Info("tax rate updated",
		zap.String("type", string(taxType)),
		zap.String("rate", rate.String()),
		zap.Int("version", updated.Version),
		zap.String("actor_id", changedBy),
	)

	if s.auditSvc != nil {
		targetID := string(taxType)
		if err := s.auditSvc.AuditLog(ctx, string(actor.Kind), &changedBy, auditdomain.ActionTaxRateUpdated, "tax_rate", &targetID, map[string]any{
			"previous_rate": previous.String(),
			"rate":          rate.String(),
			"version":       updated.Version,
		}); err != nil {
			s.log.Warn("failed to audit tax rate update", zap.Error(err))
		}
	}

	return updated, nil
}

// List returns all three tax types; unset types appear with rate 0 and version 0.
func (s *Service) List(ctx context.Context, actor authorization.Actor) ([]domain.TaxRate, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionTaxRateView, authorization.Collection()); err != nil {
		return nil, err
	}

	stored, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	byType := make(map[domain.TaxType]domain.TaxRate, len(stored))
	for _, item := range stored {
		byType[item.Type] = item
	}

	items := make([]domain.TaxRate, 0, len(domain.TaxTypes()))
	for _, taxType := range domain.TaxTypes() {
		if item, ok := byType[taxType]; ok {
			items = append(items, item)
			continue
		}
		items = append(items, domain.TaxRate{Type: taxType, Rate: decimal.Zero})
	}
	return items, nil
}

func (s *Service) History(ctx context.Context, actor authorization.Actor, taxType domain.TaxType) ([]domain.TaxRateVersion, error) {
	taxType, err := domain.ParseTaxType(string(taxType))
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, actor, authorization.ActionTaxRateView, authorization.Collection()); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, s.db, taxType)
}

func (s *Service) RateAt(ctx context.Context, actor authorization.Actor, taxType domain.TaxType, at time.Time) (domain.AppliedRate, error) {
	taxType, err := domain.ParseTaxType(string(taxType))
	if err != nil {
		return domain.AppliedRate{}, err
	}
	if err := s.authz.Authorize(ctx, actor, authorization.ActionTaxRateView, authorization.Collection()); err != nil {
		return domain.AppliedRate{}, err
	}
	version, err := s.repo.VersionAt(ctx, s.db, taxType, at.UTC())
	if err != nil {
		return domain.AppliedRate{}, err
	}
	if version == nil {
		return domain.AppliedRate{Rate: decimal.Zero}, nil
	}
	return domain.AppliedRate{Rate: version.Rate, Version: version.Version}, nil
}

func (s *Service) SnapshotTx(ctx context.Context, db *gorm.DB) (domain.Rates, error) {
	if db == nil {
		db = s.db
	}
	stored, err := s.repo.List(ctx, db)
	if err != nil {
		return domain.Rates{}, err
	}

	var rates domain.Rates
	for _, item := range stored {
		applied := domain.AppliedRate{Rate: item.Rate, Version: item.Version}
		switch item.Type {
		case domain.TaxTypeVAT:
			rates.VAT = applied
		case domain.TaxTypeWithholding:
			rates.Withholding = applied
		case domain.TaxTypeStampDuty:
			rates.StampDuty = applied
		default:
			s.log.Warn("ignoring unknown tax type", zap.String("type", string(item.Type)))
		}
	}
	return rates, nil
}
