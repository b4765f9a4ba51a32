package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// WorkOrder is a request for work submitted by a company or one of its employees.
type WorkOrder struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	Title          string          `gorm:"type:text;not null" json:"title"`
	Description    string          `gorm:"type:text;not null;default:''" json:"description"`
	Status         Status          `gorm:"size:255;not null;index" json:"status"`
	EmployeeID     *snowflake.ID   `gorm:"index" json:"employee_id,omitempty"`
	CompanyID      *snowflake.ID   `gorm:"index" json:"company_id,omitempty"`
	DepartmentID   snowflake.ID    `gorm:"not null;index" json:"department_id"`
	PriorityID     int64           `gorm:"not null;default:0" json:"priority_id"`
	StagingID      *int64          `json:"staging_id,omitempty"`
	Hours          decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"hours"`
	WorkerCount    int             `gorm:"not null;default:0" json:"worker_count"`
	Price          decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"price"`
	DeclineMessage *string         `gorm:"type:text" json:"decline_message,omitempty"`
	StartAt        *time.Time      `json:"start_at,omitempty"`
	FinishAt       *time.Time      `json:"finish_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (WorkOrder) TableName() string { return "work_orders" }

type ListFilter struct {
	CompanyID    *snowflake.ID
	EmployeeID   *snowflake.ID
	DepartmentID *snowflake.ID
	Status       *Status
	Cursor       *Cursor
	Limit        int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

const DeliveryFailed = "failed"

// Delivery is the outcome of one workflow e-mail.
type Delivery struct {
	Role      string `json:"role"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type NotificationReport struct {
	Kind       string     `json:"kind"`
	Deliveries []Delivery `json:"outcomes"`
}

func (r NotificationReport) Failed() bool {
	for _, d := range r.Deliveries {
		if d.Status == DeliveryFailed {
			return true
		}
	}
	return false
}
