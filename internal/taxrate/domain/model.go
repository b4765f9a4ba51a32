package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type TaxType string

// The invoice formula sums exactly these three rates.
const (
	TaxTypeVAT         TaxType = "VAT"
	TaxTypeWithholding TaxType = "WITHHOLDING"
	TaxTypeStampDuty   TaxType = "STAMP_DUTY"
)

func TaxTypes() []TaxType {
	return []TaxType{TaxTypeVAT, TaxTypeWithholding, TaxTypeStampDuty}
}

// ParseTaxType accepts any casing and '-' or ' ' for '_' ("stamp duty", "Stamp-Duty").
func ParseTaxType(value string) (TaxType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch TaxType(normalized) {
	case TaxTypeVAT, TaxTypeWithholding, TaxTypeStampDuty:
		return TaxType(normalized), nil
	default:
		return "", ErrInvalidTaxType
	}
}

// TaxRate is the current rate for one tax type, in percent.
type TaxRate struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	Type      TaxType         `gorm:"size:255;not null;uniqueIndex" json:"type"`
	Rate      decimal.Decimal `gorm:"type:numeric(8,4);not null" json:"rate"`
	Version   int             `gorm:"not null" json:"version"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
	UpdatedBy *string         `gorm:"type:text" json:"updated_by,omitempty"`
}

func (TaxRate) TableName() string { return "tax_rates" }

// TaxRateVersion is one row of rate history; EffectiveTo is nil for the current version.
type TaxRateVersion struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	Type          TaxType         `gorm:"size:255;not null;index:idx_tax_rate_versions_type_version,unique" json:"type"`
	Rate          decimal.Decimal `gorm:"type:numeric(8,4);not null" json:"rate"`
	Version       int             `gorm:"not null;index:idx_tax_rate_versions_type_version,unique" json:"version"`
	EffectiveFrom time.Time       `gorm:"not null" json:"effective_from"`
	EffectiveTo   *time.Time      `json:"effective_to,omitempty"`
	ChangedBy     *string         `gorm:"type:text" json:"changed_by,omitempty"`
}

func (TaxRateVersion) TableName() string { return "tax_rate_versions" }

// AppliedRate is a rate value together with the version it came from; version 0 means unset.
type AppliedRate struct {
	Rate    decimal.Decimal `json:"rate"`
	Version int             `json:"version"`
}

// Rates is a consistent snapshot of all three tax rates.
type Rates struct {
	VAT         AppliedRate `json:"vat"`
	Withholding AppliedRate `json:"withholding"`
	StampDuty   AppliedRate `json:"stamp_duty"`
}

var (
	MinRate = decimal.Zero
	MaxRate = decimal.NewFromInt(100)
)
