package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"gorm.io/gorm"
)

type Repository interface {
	FindByType(ctx context.Context, db *gorm.DB, taxType TaxType, forUpdate bool) (*TaxRate, error)
	List(ctx context.Context, db *gorm.DB) ([]TaxRate, error)
	Insert(ctx context.Context, db *gorm.DB, rate *TaxRate) error
	UpdateRate(ctx context.Context, db *gorm.DB, rate *TaxRate, expectedVersion int) (bool, error)
	CloseCurrentVersion(ctx context.Context, db *gorm.DB, taxType TaxType, at time.Time) error
	InsertVersion(ctx context.Context, db *gorm.DB, version *TaxRateVersion) error
	ListVersions(ctx context.Context, db *gorm.DB, taxType TaxType) ([]TaxRateVersion, error)
	VersionAt(ctx context.Context, db *gorm.DB, taxType TaxType, at time.Time) (*TaxRateVersion, error)
}

type Service interface {
	// GetRate returns the current rate in percent; an unset rate is zero, not an error.
	GetRate(ctx context.Context, taxType TaxType) (decimal.Decimal, error)
	SetRate(ctx context.Context, actor authorization.Actor, taxType TaxType, rate decimal.Decimal) (TaxRate, error)
	List(ctx context.Context, actor authorization.Actor) ([]TaxRate, error)
	History(ctx context.Context, actor authorization.Actor, taxType TaxType) ([]TaxRateVersion, error)
	// RateAt returns the rate in force at the given instant; before the first version it is
	// zero at version 0.
	RateAt(ctx context.Context, actor authorization.Actor, taxType TaxType, at time.Time) (AppliedRate, error)
	// SnapshotTx reads all three rates through db so callers can join their own transaction.
	SnapshotTx(ctx context.Context, db *gorm.DB) (Rates, error)
}
