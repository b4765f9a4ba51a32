package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Department struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"size:255;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (Department) TableName() string { return "departments" }

type Company struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Email        string       `gorm:"size:255;not null;uniqueIndex" json:"email"`
	DepartmentID snowflake.ID `gorm:"not null;index" json:"department_id"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (Company) TableName() string { return "companies" }

type Employee struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Email        string       `gorm:"size:255;not null;uniqueIndex" json:"email"`
	CompanyID    snowflake.ID `gorm:"not null;index" json:"company_id"`
	DepartmentID snowflake.ID `gorm:"not null;index" json:"department_id"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (Employee) TableName() string { return "employees" }

type Admin struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Email        string       `gorm:"size:255;not null;uniqueIndex" json:"email"`
	DepartmentID snowflake.ID `gorm:"not null;index" json:"department_id"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (Admin) TableName() string { return "admins" }

// Account is the login view of any actor row, joined with its department name.
type Account struct {
	Kind           string
	ID             snowflake.ID
	Name           string
	Email          string
	CompanyID      snowflake.ID
	DepartmentID   snowflake.ID
	DepartmentName string
	PasswordHash   string
}

// Contact is a notification recipient.
type Contact struct {
	Name  string
	Email string
}
