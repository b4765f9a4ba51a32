package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem   ActorType = "system"
	ActorTypeAdmin    ActorType = "admin"
	ActorTypeCompany  ActorType = "company"
	ActorTypeEmployee ActorType = "employee"
)

const (
	ActionTaxRateUpdated              = "tax_rate.updated"
	ActionWorkOrderCreated            = "work_order.created"
	ActionWorkOrderUpdated            = "work_order.updated"
	ActionWorkOrderCompleted          = "work_order.completed"
	ActionWorkOrderDeclined           = "work_order.declined"
	ActionWorkOrderDeleted            = "work_order.deleted"
	ActionWorkOrderNotificationFailed = "work_order.notification_failed"
	ActionInvoiceGenerated            = "invoice.generated"
	ActionInvoicePaymentUpdated       = "invoice.payment_updated"
	ActionInvoiceNotificationFailed   = "invoice.notification_failed"
	ActionAuthorizationDenied         = "authorization.denied"
	ActionCompanyRegistered           = "company.registered"
	ActionAccountCreated              = "account.created"
	ActionAccountUpdated              = "account.updated"
	ActionAccountDeleted              = "account.deleted"
	ActionAdminBootstrapped           = "admin.bootstrapped"
	ActionLoginSucceeded              = "auth.login"
	ActionLoginFailed                 = "auth.login_failed"
)

// AuditLog is an append-only record of a state change or denied access.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"size:255;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
