package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/workdesk/internal/taxrate/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByType(ctx context.Context, db *gorm.DB, taxType domain.TaxType, forUpdate bool) (*domain.TaxRate, error) {
	query := `SELECT id, type, rate, version, updated_at, updated_by
		FROM tax_rates
		WHERE type = ?`
	if forUpdate && db.Dialector.Name() == "postgres" {
		query += ` FOR UPDATE`
	}

	var rate domain.TaxRate
	err := db.WithContext(ctx).Raw(query, taxType).Scan(&rate).Error
	if err != nil {
		return nil, err
	}
	if rate.ID == 0 {
		return nil, nil
	}
	return &rate, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.TaxRate, error) {
	var items []domain.TaxRate
	err := db.WithContext(ctx).Raw(
		`SELECT id, type, rate, version, updated_at, updated_by
		 FROM tax_rates
		 ORDER BY type ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rate *domain.TaxRate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tax_rates (id, type, rate, version, updated_at, updated_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rate.ID,
		rate.Type,
		rate.Rate,
		rate.Version,
		rate.UpdatedAt,
		rate.UpdatedBy,
	).Error
}

// UpdateRate reports false when another writer moved the row past expectedVersion.
func (r *repo) UpdateRate(ctx context.Context, db *gorm.DB, rate *domain.TaxRate, expectedVersion int) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tax_rates
		 SET rate = ?, version = ?, updated_at = ?, updated_by = ?
		 WHERE id = ? AND version = ?`,
		rate.Rate,
		rate.Version,
		rate.UpdatedAt,
		rate.UpdatedBy,
		rate.ID,
		expectedVersion,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) CloseCurrentVersion(ctx context.Context, db *gorm.DB, taxType domain.TaxType, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tax_rate_versions
		 SET effective_to = ?
		 WHERE type = ? AND effective_to IS NULL`,
		at,
		taxType,
	).Error
}

func (r *repo) InsertVersion(ctx context.Context, db *gorm.DB, version *domain.TaxRateVersion) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tax_rate_versions (id, type, rate, version, effective_from, effective_to, changed_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		version.ID,
		version.Type,
		version.Rate,
		version.Version,
		version.EffectiveFrom,
		version.EffectiveTo,
		version.ChangedBy,
	).Error
}

func (r *repo) ListVersions(ctx context.Context, db *gorm.DB, taxType domain.TaxType) ([]domain.TaxRateVersion, error) {
	var items []domain.TaxRateVersion
	err := db.WithContext(ctx).Raw(
		`SELECT id, type, rate, version, effective_from, effective_to, changed_by
		 FROM tax_rate_versions
		 WHERE type = ?
		 ORDER BY version DESC`,
		taxType,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) VersionAt(ctx context.Context, db *gorm.DB, taxType domain.TaxType, at time.Time) (*domain.TaxRateVersion, error) {
	var version domain.TaxRateVersion
	err := db.WithContext(ctx).Raw(
		`SELECT id, type, rate, version, effective_from, effective_to, changed_by
		 FROM tax_rate_versions
		 WHERE type = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)
		 ORDER BY version DESC
		 LIMIT 1`,
		taxType,
		at,
		at,
	).Scan(&version).Error
	if err != nil {
		return nil, err
	}
	if version.ID == 0 {
		return nil, nil
	}
	return &version, nil
}
