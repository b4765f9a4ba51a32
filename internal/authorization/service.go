package authorization

import (
	"context"
	"errors"
)

const (
	ObjectWorkOrder  = "work_order"
	ObjectInvoice    = "invoice"
	ObjectTaxRate    = "tax_rate"
	ObjectDepartment = "department"
	ObjectCompany    = "company"
	ObjectEmployee   = "employee"
	ObjectAdmin      = "admin"
	ObjectAuditLog   = "audit_log"
)

const (
	ActionWorkOrderCreate   = "work_order.create"
	ActionWorkOrderView     = "work_order.view"
	ActionWorkOrderUpdate   = "work_order.update"
	ActionWorkOrderComplete = "work_order.complete"
	ActionWorkOrderDecline  = "work_order.decline"
	ActionWorkOrderDelete   = "work_order.delete"

	ActionInvoiceView          = "invoice.view"
	ActionInvoiceDownload      = "invoice.download"
	ActionInvoiceUpdatePayment = "invoice.update_payment"

	ActionTaxRateView   = "tax_rate.view"
	ActionTaxRateUpdate = "tax_rate.update"

	ActionDepartmentView   = "department.view"
	ActionDepartmentCreate = "department.create"
	ActionDepartmentUpdate = "department.update"
	ActionDepartmentDelete = "department.delete"

	ActionCompanyView   = "company.view"
	ActionCompanyCreate = "company.create"
	ActionCompanyUpdate = "company.update"
	ActionCompanyDelete = "company.delete"

	ActionEmployeeView   = "employee.view"
	ActionEmployeeCreate = "employee.create"
	ActionEmployeeUpdate = "employee.update"
	ActionEmployeeDelete = "employee.delete"

	ActionAdminView   = "admin.view"
	ActionAdminCreate = "admin.create"
	ActionAdminUpdate = "admin.update"
	ActionAdminDelete = "admin.delete"

	ActionAuditLogView = "audit_log.view"
)

const (
	RoleAdmin              = "role:admin"
	RoleAllDepartmentAdmin = "role:all_department_admin"
	RoleCompany            = "role:company"
	RoleEmployee           = "role:employee"
)

// Service is the single policy decision point used by every operation.
type Service interface {
	// Authorize returns nil when actor may perform action on resource, ErrForbidden otherwise.
	Authorize(ctx context.Context, actor Actor, action string, resource Resource) error
	IsAllDepartmentAdmin(actor Actor) bool
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
