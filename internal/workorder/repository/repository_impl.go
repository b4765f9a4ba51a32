package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workdesk/internal/workorder/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.WorkOrder) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO work_orders (
			id, title, description, status, employee_id, company_id, department_id,
			priority_id, staging_id, hours, worker_count, price, decline_message,
			start_at, finish_at, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.Title,
		order.Description,
		order.Status,
		order.EmployeeID,
		order.CompanyID,
		order.DepartmentID,
		order.PriorityID,
		order.StagingID,
		order.Hours,
		order.WorkerCount,
		order.Price,
		order.DeclineMessage,
		order.StartAt,
		order.FinishAt,
		order.CompletedAt,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.WorkOrder, error) {
	var order domain.WorkOrder
	err := db.WithContext(ctx).Raw(
		`SELECT id, title, description, status, employee_id, company_id, department_id,
			priority_id, staging_id, hours, worker_count, price, decline_message,
			start_at, finish_at, completed_at, created_at, updated_at
		 FROM work_orders
		 WHERE id = ?`,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.WorkOrder, error) {
	var items []*domain.WorkOrder
	stmt := db.WithContext(ctx).Model(&domain.WorkOrder{})

	if filter.CompanyID != nil {
		stmt = stmt.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.EmployeeID != nil {
		stmt = stmt.Where("employee_id = ?", *filter.EmployeeID)
	}
	if filter.DepartmentID != nil {
		stmt = stmt.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.Status != nil {
		stmt = stmt.Where("status = ?", string(*filter.Status))
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

func (r *repo) UpdateIfStatus(ctx context.Context, db *gorm.DB, order *domain.WorkOrder, from []domain.Status) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	states := make([]string, 0, len(from))
	for _, status := range from {
		states = append(states, string(status))
	}

	result := db.WithContext(ctx).Exec(
		`UPDATE work_orders
		 SET status = ?, staging_id = ?, hours = ?, worker_count = ?, price = ?,
			decline_message = ?, start_at = ?, finish_at = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status IN ?`,
		order.Status,
		order.StagingID,
		order.Hours,
		order.WorkerCount,
		order.Price,
		order.DeclineMessage,
		order.StartAt,
		order.FinishAt,
		order.CompletedAt,
		order.UpdatedAt,
		order.ID,
		states,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	result := db.WithContext(ctx).Exec(`DELETE FROM work_orders WHERE id = ?`, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
