package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/workdesk/pkg/db"
	"github.com/smallbiznis/workdesk/pkg/db/option"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID   int64  `gorm:"primaryKey"`
	Name string
	Kind string
}

func newWidgetStore(t *testing.T) Repository[widget] {
	t.Helper()
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return ProvideStore[widget](conn)
}

func TestStoreCreateFindUpdateDelete(t *testing.T) {
	ctx := context.Background()
	store := newWidgetStore(t)

	for _, w := range []*widget{
		{ID: 1, Name: "alpha", Kind: "a"},
		{ID: 2, Name: "beta", Kind: "a"},
		{ID: 3, Name: "gamma", Kind: "b"},
	} {
		require.NoError(t, store.Create(ctx, w))
	}

	items, err := store.Find(ctx, &widget{Kind: "a"}, option.WithSortBy("name", true, "name"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "beta", items[0].Name)

	missing, err := store.FindOne(ctx, &widget{ID: 99})
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, store.Update(ctx, 3, map[string]any{"name": "delta"}))
	got, err := store.FindOne(ctx, &widget{ID: 3})
	require.NoError(t, err)
	require.Equal(t, "delta", got.Name)

	err = store.Update(ctx, 42, map[string]any{"name": "x"})
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	require.NoError(t, store.Delete(ctx, 1))
	require.True(t, errors.Is(store.Delete(ctx, 1), gorm.ErrRecordNotFound))

	count, err := store.Count(ctx, &widget{})
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	require.NoError(t, store.Update(ctx, 2, nil))
}
