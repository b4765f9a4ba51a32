package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"gorm.io/gorm"
)

type CreateDepartmentRequest struct {
	Name string `json:"name" binding:"required,max=120"`
}

type UpdateDepartmentRequest struct {
	Name *string `json:"name" binding:"omitempty,max=120"`
}

type CreateCompanyRequest struct {
	Name         string       `json:"name" binding:"required,max=200"`
	Email        string       `json:"email" binding:"required,email"`
	Password     string       `json:"password" binding:"required,min=8"`
	DepartmentID snowflake.ID `json:"department_id"`
}

type UpdateCompanyRequest struct {
	Name         *string       `json:"name" binding:"omitempty,max=200"`
	Email        *string       `json:"email" binding:"omitempty,email"`
	Password     *string       `json:"password" binding:"omitempty,min=8"`
	DepartmentID *snowflake.ID `json:"department_id"`
}

type CreateEmployeeRequest struct {
	Name         string       `json:"name" binding:"required,max=200"`
	Email        string       `json:"email" binding:"required,email"`
	Password     string       `json:"password" binding:"required,min=8"`
	DepartmentID snowflake.ID `json:"department_id" binding:"required"`
}

type UpdateEmployeeRequest struct {
	Name         *string       `json:"name" binding:"omitempty,max=200"`
	Email        *string       `json:"email" binding:"omitempty,email"`
	Password     *string       `json:"password" binding:"omitempty,min=8"`
	DepartmentID *snowflake.ID `json:"department_id"`
}

type CreateAdminRequest struct {
	Name         string       `json:"name" binding:"required,max=200"`
	Email        string       `json:"email" binding:"required,email"`
	Password     string       `json:"password" binding:"required,min=8"`
	DepartmentID snowflake.ID `json:"department_id" binding:"required"`
}

type UpdateAdminRequest struct {
	Name         *string       `json:"name" binding:"omitempty,max=200"`
	Email        *string       `json:"email" binding:"omitempty,email"`
	Password     *string       `json:"password" binding:"omitempty,min=8"`
	DepartmentID *snowflake.ID `json:"department_id"`
}

type Service interface {
	ListDepartments(ctx context.Context, actor authorization.Actor) ([]Department, error)
	GetDepartment(ctx context.Context, actor authorization.Actor, id snowflake.ID) (Department, error)
	CreateDepartment(ctx context.Context, actor authorization.Actor, req CreateDepartmentRequest) (Department, error)
	UpdateDepartment(ctx context.Context, actor authorization.Actor, id snowflake.ID, req UpdateDepartmentRequest) (Department, error)
	DeleteDepartment(ctx context.Context, actor authorization.Actor, id snowflake.ID) error

	ListCompanies(ctx context.Context, actor authorization.Actor) ([]Company, error)
	GetCompany(ctx context.Context, actor authorization.Actor, id snowflake.ID) (Company, error)
	CreateCompany(ctx context.Context, actor authorization.Actor, req CreateCompanyRequest) (Company, error)
	UpdateCompany(ctx context.Context, actor authorization.Actor, id snowflake.ID, req UpdateCompanyRequest) (Company, error)
	DeleteCompany(ctx context.Context, actor authorization.Actor, id snowflake.ID) error

	ListEmployees(ctx context.Context, actor authorization.Actor) ([]Employee, error)
	GetEmployee(ctx context.Context, actor authorization.Actor, id snowflake.ID) (Employee, error)
	CreateEmployee(ctx context.Context, actor authorization.Actor, req CreateEmployeeRequest) (Employee, error)
	UpdateEmployee(ctx context.Context, actor authorization.Actor, id snowflake.ID, req UpdateEmployeeRequest) (Employee, error)
	DeleteEmployee(ctx context.Context, actor authorization.Actor, id snowflake.ID) error

	ListAdmins(ctx context.Context, actor authorization.Actor) ([]Admin, error)
	GetAdmin(ctx context.Context, actor authorization.Actor, id snowflake.ID) (Admin, error)
	CreateAdmin(ctx context.Context, actor authorization.Actor, req CreateAdminRequest) (Admin, error)
	UpdateAdmin(ctx context.Context, actor authorization.Actor, id snowflake.ID, req UpdateAdminRequest) (Admin, error)
	DeleteAdmin(ctx context.Context, actor authorization.Actor, id snowflake.ID) error
}

// Lookup serves internal callers (login, registration, notifications) without policy checks.
type Lookup interface {
	FindAccount(ctx context.Context, kind authorization.ActorKind, email string) (*Account, error)
	EmailInUse(ctx context.Context, db *gorm.DB, email string) (bool, error)
	EmployeeContact(ctx context.Context, id snowflake.ID) (*Contact, error)
	CompanyContact(ctx context.Context, id snowflake.ID) (*Contact, error)
	DepartmentExists(ctx context.Context, id snowflake.ID) (bool, error)
}

// NewAccount is an account created outside the policy layer (self-registration, bootstrap).
type NewAccount struct {
	Name         string
	Email        string
	Password     string
	DepartmentID snowflake.ID
}

type Registrar interface {
	RegisterCompany(ctx context.Context, account NewAccount) (Company, error)
	// EnsureAdmin creates the admin unless an account already holds the e-mail.
	EnsureAdmin(ctx context.Context, account NewAccount) (Admin, bool, error)
}

type Repository interface {
	FindAccount(ctx context.Context, db *gorm.DB, kind authorization.ActorKind, email string) (*Account, error)
	EmailInUse(ctx context.Context, db *gorm.DB, email string, exclude snowflake.ID) (bool, error)
	CountDepartmentMembers(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}

var (
	ErrDepartmentNotFound  = errors.New("department_not_found")
	ErrCompanyNotFound     = errors.New("company_not_found")
	ErrEmployeeNotFound    = errors.New("employee_not_found")
	ErrAdminNotFound       = errors.New("admin_not_found")
	ErrAccountNotFound     = errors.New("account_not_found")
	ErrEmailTaken          = errors.New("email_taken")
	ErrDepartmentExists    = errors.New("department_exists")
	ErrDepartmentInUse     = errors.New("department_in_use")
	ErrProtectedDepartment = errors.New("department_protected")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidPassword     = errors.New("invalid_password")
	ErrInvalidDepartment   = errors.New("invalid_department")
)
