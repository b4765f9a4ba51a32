package db

import (
	"testing"

	"github.com/smallbiznis/workdesk/internal/config"
	"github.com/stretchr/testify/require"
)

func TestSqliteDSN(t *testing.T) {
	require.Equal(t, "workdesk.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN(""))
	require.Equal(t, "file:x?mode=memory&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:x?mode=memory"))
	require.Equal(t, "a.db?_pragma=journal_mode(WAL)", sqliteDSN("a.db?_pragma=journal_mode(WAL)"))
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(config.Config{DBType: "oracle"})
	require.Error(t, err)

	d, err := Dialect(config.Config{DBType: "postgres", DBHost: "db", DBPort: "5432"})
	require.NoError(t, err)
	require.Equal(t, "postgres", d.Name())
}
