package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workdesk/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store for rows keyed by a snowflake "id" column.
// FindOne returns (nil, nil) when nothing matches; Update and Delete return
// gorm.ErrRecordNotFound instead.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, id snowflake.ID, changes map[string]any) error
	Delete(ctx context.Context, id snowflake.ID) error
	Count(ctx context.Context, query *T) (int64, error)
}
