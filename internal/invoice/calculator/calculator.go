// Package calculator turns a base amount and the three tax rates into an invoice breakdown.
package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNegativeBase = errors.New("invalid_base_amount")

var hundred = decimal.NewFromInt(100)

// Rates are percentages; a zero value means the tax is not applied.
type Rates struct {
	VAT         decimal.Decimal
	Withholding decimal.Decimal
	StampDuty   decimal.Decimal
}

type Breakdown struct {
	Base        decimal.Decimal
	VAT         decimal.Decimal
	Withholding decimal.Decimal
	StampDuty   decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// Calculate sums the unrounded tax parts before rounding every output half away from zero to cents.
func Calculate(base decimal.Decimal, rates Rates) (Breakdown, error) {
	if base.IsNegative() {
		return Breakdown{}, ErrNegativeBase
	}

	vat := base.Mul(rates.VAT).Div(hundred)
	withholding := base.Mul(rates.Withholding).Div(hundred)
	stampDuty := base.Mul(rates.StampDuty).Div(hundred)
	tax := vat.Add(withholding).Add(stampDuty)

	return Breakdown{
		Base:        base.Round(2),
		VAT:         vat.Round(2),
		Withholding: withholding.Round(2),
		StampDuty:   stampDuty.Round(2),
		Tax:         tax.Round(2),
		Total:       base.Add(tax).Round(2),
	}, nil
}
