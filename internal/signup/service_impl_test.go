package signup

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workdesk/internal/auth/token"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/clock"
	"github.com/smallbiznis/workdesk/internal/config"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	directoryrepo "github.com/smallbiznis/workdesk/internal/directory/repository"
	directoryservice "github.com/smallbiznis/workdesk/internal/directory/service"
	"github.com/smallbiznis/workdesk/internal/signup/domain"
	"github.com/smallbiznis/workdesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *token.Manager) {
	t.Helper()
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&directorydomain.Department{}, &directorydomain.Company{}, &directorydomain.Employee{}, &directorydomain.Admin{}))

	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, conn.Create(&directorydomain.Department{ID: 3, Name: "All Departments", CreatedAt: now, UpdatedAt: now}).Error)

	cfg := config.Config{AllDepartmentID: 3}
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	clk := clock.NewFakeClock(now)

	directory := directoryservice.New(directoryservice.Params{
		Cfg:   cfg,
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  directoryrepo.Provide(),
		Authz: authorization.NewService(authorization.Params{Cfg: cfg, Log: zap.NewNop(), Enforcer: enforcer}),
		Clock: clk,
	})
	tokens, err := token.NewManager([]byte("secret"), time.Hour, clk)
	require.NoError(t, err)

	return NewService(Params{
		Cfg:       cfg,
		Log:       zap.NewNop(),
		Registrar: directory,
		Tokens:    tokens,
	}), tokens
}

func TestSignupAssignsAllDepartmentAndSignsIn(t *testing.T) {
	svc, tokens := newTestService(t)

	result, err := svc.Signup(context.Background(), domain.Request{Name: "Acme", Email: "ops@acme.io", Password: "s3cretpass"})
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(3), result.Company.DepartmentID)

	actor, err := tokens.Parse(result.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, authorization.ActorCompany, actor.Kind)
	assert.Equal(t, result.Company.ID, actor.ID)
	assert.Equal(t, result.Company.ID, actor.CompanyID)
}

func TestSignupRejectsDuplicateAndMalformedEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, domain.Request{Name: "Acme", Email: "ops@acme.io", Password: "s3cretpass"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, domain.Request{Name: "Acme Two", Email: "OPS@acme.io", Password: "s3cretpass"})
	assert.ErrorIs(t, err, directorydomain.ErrEmailTaken)

	_, err = svc.Signup(ctx, domain.Request{Name: "Acme", Email: "ops@acme", Password: "s3cretpass"})
	assert.ErrorIs(t, err, directorydomain.ErrInvalidEmail)

	_, err = svc.Signup(ctx, domain.Request{Name: " ", Email: "x@acme.io", Password: "s3cretpass"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
