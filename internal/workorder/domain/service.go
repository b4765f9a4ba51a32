package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workdesk/internal/authorization"
	invoicedomain "github.com/smallbiznis/workdesk/internal/invoice/domain"
	"github.com/smallbiznis/workdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateRequest struct {
	Title        string       `json:"title" binding:"required,max=200"`
	Description  string       `json:"description" binding:"max=5000"`
	DepartmentID snowflake.ID `json:"department_id" binding:"required"`
	PriorityID   int64        `json:"priority_id" binding:"gte=0"`
}

// UpdateRequest patches the processing fields; nil fields are left unchanged.
type UpdateRequest struct {
	StagingID   *int64           `json:"staging_id"`
	Hours       *decimal.Decimal `json:"hours"`
	WorkerCount *int             `json:"worker_count" binding:"omitempty,gte=0"`
	Price       *decimal.Decimal `json:"price"`
	StartAt     *time.Time       `json:"start_at"`
	FinishAt    *time.Time       `json:"finish_at"`
	Status      *string          `json:"status"`
}

type DeclineRequest struct {
	Message string `json:"message" binding:"required,max=2000"`
}

type ListRequest struct {
	pagination.Pagination
	Status       string        `form:"status"`
	DepartmentID *snowflake.ID `form:"department_id"`
}

type ListResponse struct {
	pagination.PageInfo
	WorkOrders []WorkOrder `json:"work_orders"`
}

// Result is returned by every state change. Invoice is set only by a completion.
type Result struct {
	WorkOrder    WorkOrder              `json:"work_order"`
	Invoice      *invoicedomain.Invoice `json:"invoice,omitempty"`
	Notification *NotificationReport    `json:"notification,omitempty"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *WorkOrder) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WorkOrder, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*WorkOrder, error)
	// UpdateIfStatus writes the mutable fields only while the stored status is one of from.
	UpdateIfStatus(ctx context.Context, db *gorm.DB, order *WorkOrder, from []Status) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}

// CompletionGuard serializes completions of one work order across replicas.
type CompletionGuard interface {
	Acquire(ctx context.Context, id snowflake.ID) (func(), error)
}

type Service interface {
	Create(ctx context.Context, actor authorization.Actor, req CreateRequest) (WorkOrder, error)
	List(ctx context.Context, actor authorization.Actor, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, actor authorization.Actor, id snowflake.ID) (WorkOrder, error)
	Update(ctx context.Context, actor authorization.Actor, id snowflake.ID, req UpdateRequest) (Result, error)
	Complete(ctx context.Context, actor authorization.Actor, id snowflake.ID) (Result, error)
	Decline(ctx context.Context, actor authorization.Actor, id snowflake.ID, req DeclineRequest) (Result, error)
	Delete(ctx context.Context, actor authorization.Actor, id snowflake.ID) error
}
