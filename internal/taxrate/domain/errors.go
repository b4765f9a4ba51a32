package domain

import "errors"

var (
	ErrInvalidTaxType     = errors.New("invalid_tax_type")
	ErrInvalidTaxRate     = errors.New("invalid_tax_rate")
	ErrConcurrentUpdate   = errors.New("tax_rate_concurrent_update")
	ErrRateVersionMissing = errors.New("tax_rate_version_not_found")
)
