package seed

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// dryRunMySQL renders statements with the mysql dialect without a server.
func dryRunMySQL(t *testing.T) (*gorm.DB, func() []string) {
	t.Helper()
	conn, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "workdesk:workdesk@tcp(127.0.0.1:3306)/workdesk?parseTime=True",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		inserts []string
	)
	require.NoError(t, conn.Callback().Create().After("gorm:create").Register("test:capture", func(db *gorm.DB) {
		mu.Lock()
		defer mu.Unlock()
		inserts = append(inserts, db.Statement.SQL.String())
	}))
	return conn, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), inserts...)
	}
}

func TestReferenceInsertsUseMySQLUpsertSyntax(t *testing.T) {
	conn, captured := dryRunMySQL(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, ensureAllDepartmentTx(ctx, conn, 3))
	require.NoError(t, ensureTaxRatesTx(ctx, conn, node))

	inserts := captured()
	require.NotEmpty(t, inserts)
	assert.Contains(t, inserts[0], "INSERT INTO `departments`")
	assert.Contains(t, inserts[0], "ON DUPLICATE KEY UPDATE")
	for _, stmt := range inserts {
		assert.NotContains(t, stmt, "ON CONFLICT")
		assert.NotContains(t, stmt, "RETURNING")
	}
}

func TestAllDepartmentIsOptional(t *testing.T) {
	conn, captured := dryRunMySQL(t)
	require.NoError(t, ensureAllDepartmentTx(context.Background(), conn, 0))
	assert.Empty(t, captured())
}
