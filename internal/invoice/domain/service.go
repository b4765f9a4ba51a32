package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// CreateRequest describes the work order being invoiced; EmployeeID is nil when no employee is attached.
type CreateRequest struct {
	WorkOrderID    snowflake.ID
	WorkOrderTitle string
	CompanyID      *snowflake.ID
	EmployeeID     *snowflake.ID
	DepartmentID   snowflake.ID
	AdminID        snowflake.ID
	BaseAmount     decimal.Decimal
}

type ListInvoiceRequest struct {
	pagination.Pagination
	WorkOrderID  *snowflake.ID `form:"work_order_id"`
	DepartmentID *snowflake.ID `form:"department_id"`
	Paid         *bool         `form:"paid"`
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type UpdatePaymentRequest struct {
	Paid *bool `json:"payment_paid" binding:"required"`
}

type Repository interface {
	NextSequence(ctx context.Context, db *gorm.DB, day string) (int64, error)
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByWorkOrder(ctx context.Context, db *gorm.DB, workOrderID snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Invoice, error)
	UpdatePayment(ctx context.Context, db *gorm.DB, invoice *Invoice) error
}

type Service interface {
	// Create runs CreateTx in its own transaction and sends the summary notification after commit.
	Create(ctx context.Context, req CreateRequest) (Invoice, error)
	// CreateTx persists the invoice inside the caller's transaction. The caller sends NotifyCreated after commit.
	CreateTx(ctx context.Context, tx *gorm.DB, req CreateRequest) (Invoice, error)
	NotifyCreated(ctx context.Context, invoice Invoice)
	List(ctx context.Context, actor authorization.Actor, req ListInvoiceRequest) (ListInvoiceResponse, error)
	Get(ctx context.Context, actor authorization.Actor, id snowflake.ID) (Invoice, error)
	MarkPaid(ctx context.Context, actor authorization.Actor, id snowflake.ID, paid bool) (Invoice, error)
	// Render produces the invoice PDF without a policy check; callers authorize first.
	Render(ctx context.Context, invoice Invoice) ([]byte, error)
	Download(ctx context.Context, actor authorization.Actor, id snowflake.ID) ([]byte, Invoice, error)
}

var (
	ErrInvoiceNotFound  = errors.New("invoice_not_found")
	ErrInvoiceExists    = errors.New("invoice_already_exists")
	ErrInvalidWorkOrder = errors.New("invalid_work_order")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
