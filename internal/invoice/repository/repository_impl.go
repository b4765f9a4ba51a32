package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workdesk/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const invoiceColumns = `id, invoice_number, work_order_id, work_order_title, company_id, employee_id,
	department_id, admin_id, base_amount, vat_amount, withholding_amount, stamp_duty_amount,
	tax_amount, total_amount, vat_rate, vat_rate_version, withholding_rate, withholding_rate_version,
	stamp_duty_rate, stamp_duty_rate_version, payment_paid, paid_at, created_at, updated_at`

// sequenceSQL is the per-dialect increment of a day counter. When readBack is set the upsert
// returns nothing and the value is read on the same connection afterwards.
type sequenceSQL struct {
	upsert   string
	readBack string
}

func sequenceStatements(dialect string) sequenceSQL {
	if dialect == "mysql" {
		return sequenceSQL{
			upsert: `INSERT INTO invoice_sequences (day, last_value) VALUES (?, LAST_INSERT_ID(1))
		 ON DUPLICATE KEY UPDATE last_value = LAST_INSERT_ID(last_value + 1)`,
			readBack: `SELECT LAST_INSERT_ID()`,
		}
	}
	return sequenceSQL{
		upsert: `INSERT INTO invoice_sequences (day, last_value) VALUES (?, 1)
		 ON CONFLICT (day) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		 RETURNING last_value`,
	}
}

// NextSequence increments the per-day counter atomically and returns the new value.
func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, day string) (int64, error) {
	stmts := sequenceStatements(db.Dialector.Name())
	var value int64
	if stmts.readBack == "" {
		if err := db.WithContext(ctx).Raw(stmts.upsert, day).Scan(&value).Error; err != nil {
			return 0, err
		}
		return value, nil
	}

	// LAST_INSERT_ID is per connection.
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(stmts.upsert, day).Error; err != nil {
			return err
		}
		return tx.Raw(stmts.readBack).Scan(&value).Error
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (`+invoiceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.WorkOrderID,
		invoice.WorkOrderTitle,
		invoice.CompanyID,
		invoice.EmployeeID,
		invoice.DepartmentID,
		invoice.AdminID,
		invoice.BaseAmount,
		invoice.VATAmount,
		invoice.WithholdingAmount,
		invoice.StampDutyAmount,
		invoice.TaxAmount,
		invoice.TotalAmount,
		invoice.VATRate,
		invoice.VATRateVersion,
		invoice.WithholdingRate,
		invoice.WithholdingRateVersion,
		invoice.StampDutyRate,
		invoice.StampDutyRateVersion,
		invoice.PaymentPaid,
		invoice.PaidAt,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(ctx, db, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
}

func (r *repo) FindByWorkOrder(ctx context.Context, db *gorm.DB, workOrderID snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(ctx, db, `SELECT `+invoiceColumns+` FROM invoices WHERE work_order_id = ?`, workOrderID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Invoice, error) {
	var invoice domain.Invoice
	if err := db.WithContext(ctx).Raw(query, arg).Scan(&invoice).Error; err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Invoice, error) {
	var items []*domain.Invoice
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})

	if filter.CompanyID != nil {
		stmt = stmt.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.EmployeeID != nil {
		stmt = stmt.Where("employee_id = ?", *filter.EmployeeID)
	}
	if filter.DepartmentID != nil {
		stmt = stmt.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.WorkOrderID != nil {
		stmt = stmt.Where("work_order_id = ?", *filter.WorkOrderID)
	}
	if filter.Paid != nil {
		stmt = stmt.Where("payment_paid = ?", *filter.Paid)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices SET payment_paid = ?, paid_at = ?, updated_at = ? WHERE id = ?`,
		invoice.PaymentPaid,
		invoice.PaidAt,
		invoice.UpdatedAt,
		invoice.ID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}
