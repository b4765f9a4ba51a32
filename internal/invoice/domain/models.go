// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Invoice is generated exactly once per completed work order.
type Invoice struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	InvoiceNumber  string        `gorm:"size:255;not null;uniqueIndex" json:"invoice_number"`
	WorkOrderID    snowflake.ID  `gorm:"not null;uniqueIndex" json:"work_order_id"`
	WorkOrderTitle string        `gorm:"type:text;not null" json:"work_order_title"`
	CompanyID      *snowflake.ID `gorm:"index" json:"company_id,omitempty"`
	EmployeeID     *snowflake.ID `gorm:"index" json:"employee_id,omitempty"`
	DepartmentID   snowflake.ID  `gorm:"not null;index" json:"department_id"`
	AdminID        snowflake.ID  `gorm:"not null" json:"admin_id"`

	BaseAmount        decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"base_amount"`
	VATAmount         decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"vat_amount"`
	WithholdingAmount decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"withholding_amount"`
	StampDutyAmount   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"stamp_duty_amount"`
	TaxAmount         decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"tax_amount"`
	TotalAmount       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_amount"`

	VATRate                decimal.Decimal `gorm:"type:numeric(8,4);not null" json:"vat_rate"`
	VATRateVersion         int             `gorm:"not null" json:"vat_rate_version"`
	WithholdingRate        decimal.Decimal `gorm:"type:numeric(8,4);not null" json:"withholding_rate"`
	WithholdingRateVersion int             `gorm:"not null" json:"withholding_rate_version"`
	StampDutyRate          decimal.Decimal `gorm:"type:numeric(8,4);not null" json:"stamp_duty_rate"`
	StampDutyRateVersion   int             `gorm:"not null" json:"stamp_duty_rate_version"`

	PaymentPaid bool       `gorm:"not null;default:false" json:"payment_paid"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

// InvoiceSequence holds the last issued number per UTC day.
type InvoiceSequence struct {
	Day       string `gorm:"primaryKey;size:10"`
	LastValue int64  `gorm:"not null"`
}

func (InvoiceSequence) TableName() string { return "invoice_sequences" }

type ListFilter struct {
	CompanyID    *snowflake.ID
	EmployeeID   *snowflake.ID
	DepartmentID *snowflake.ID
	WorkOrderID  *snowflake.ID
	Paid         *bool
	Cursor       *Cursor
	Limit        int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}
