package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	require.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	require.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	require.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: companies.email")))
	require.False(t, IsDuplicateKeyErr(errors.New("boom")))
	require.False(t, IsDuplicateKeyErr(nil))
}

func TestIsForeignKeyErr(t *testing.T) {
	require.True(t, IsForeignKeyErr(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsForeignKeyErr(gorm.ErrDuplicatedKey))
}

func TestNewTestOpensIsolatedDatabase(t *testing.T) {
	conn, err := NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY)").Error)
	require.NoError(t, conn.Exec("INSERT INTO widgets (id) VALUES (1)").Error)

	var count int64
	require.NoError(t, conn.Raw("SELECT COUNT(*) FROM widgets").Scan(&count).Error)
	require.Equal(t, int64(1), count)
}
