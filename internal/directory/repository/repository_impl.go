package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/directory/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, kind authorization.ActorKind, email string) (*domain.Account, error) {
	var query string
	switch kind {
	case authorization.ActorAdmin:
		query = `SELECT a.id, a.name, a.email, 0 AS company_id, a.department_id,
				COALESCE(d.name, '') AS department_name, a.password_hash
			FROM admins a LEFT JOIN departments d ON d.id = a.department_id
			WHERE LOWER(a.email) = ? LIMIT 1`
	case authorization.ActorCompany:
		query = `SELECT c.id, c.name, c.email, c.id AS company_id, c.department_id,
				COALESCE(d.name, '') AS department_name, c.password_hash
			FROM companies c LEFT JOIN departments d ON d.id = c.department_id
			WHERE LOWER(c.email) = ? LIMIT 1`
	case authorization.ActorEmployee:
		query = `SELECT e.id, e.name, e.email, e.company_id, e.department_id,
				COALESCE(d.name, '') AS department_name, e.password_hash
			FROM employees e LEFT JOIN departments d ON d.id = e.department_id
			WHERE LOWER(e.email) = ? LIMIT 1`
	default:
		return nil, domain.ErrAccountNotFound
	}

	var row struct {
		ID             snowflake.ID `gorm:"column:id"`
		Name           string       `gorm:"column:name"`
		Email          string       `gorm:"column:email"`
		CompanyID      snowflake.ID `gorm:"column:company_id"`
		DepartmentID   snowflake.ID `gorm:"column:department_id"`
		DepartmentName string       `gorm:"column:department_name"`
		PasswordHash   string       `gorm:"column:password_hash"`
	}
	if err := db.WithContext(ctx).Raw(query, strings.ToLower(strings.TrimSpace(email))).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, domain.ErrAccountNotFound
	}

	return &domain.Account{
		Kind:           string(kind),
		ID:             row.ID,
		Name:           row.Name,
		Email:          row.Email,
		CompanyID:      row.CompanyID,
		DepartmentID:   row.DepartmentID,
		DepartmentName: row.DepartmentName,
		PasswordHash:   row.PasswordHash,
	}, nil
}

// EmailInUse checks admins, companies and employees; exclude skips the row being updated.
func (r *repo) EmailInUse(ctx context.Context, db *gorm.DB, email string, exclude snowflake.ID) (bool, error) {
	var count int64
	email = strings.ToLower(strings.TrimSpace(email))
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(*) FROM admins WHERE LOWER(email) = ? AND id <> ?) +
			(SELECT COUNT(*) FROM companies WHERE LOWER(email) = ? AND id <> ?) +
			(SELECT COUNT(*) FROM employees WHERE LOWER(email) = ? AND id <> ?)`,
		email, exclude,
		email, exclude,
		email, exclude,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) CountDepartmentMembers(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(*) FROM admins WHERE department_id = ?) +
			(SELECT COUNT(*) FROM companies WHERE department_id = ?) +
			(SELECT COUNT(*) FROM employees WHERE department_id = ?) +
			(SELECT COUNT(*) FROM work_orders WHERE department_id = ?)`,
		id, id, id, id,
	).Scan(&count).Error
	return count, err
}
