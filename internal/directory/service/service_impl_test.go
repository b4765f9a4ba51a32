package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workdesk/internal/auth/password"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/clock"
	"github.com/smallbiznis/workdesk/internal/config"
	"github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/smallbiznis/workdesk/internal/directory/repository"
	"github.com/smallbiznis/workdesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const allDepartmentID = snowflake.ID(3)

type fixture struct {
	svc   *Service
	conn  *gorm.DB
	admin authorization.Actor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Department{}, &domain.Company{}, &domain.Employee{}, &domain.Admin{}))
	require.NoError(t, conn.Exec(`CREATE TABLE work_orders (id INTEGER PRIMARY KEY, department_id INTEGER NOT NULL)`).Error)

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, conn.Create(&domain.Department{ID: allDepartmentID, Name: "All Departments", CreatedAt: now, UpdatedAt: now}).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	cfg := config.Config{AllDepartmentID: int64(allDepartmentID)}

	svc := New(Params{
		Cfg:   cfg,
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Authz: authorization.NewService(authorization.Params{Cfg: cfg, Log: zap.NewNop(), Enforcer: enforcer}),
		Clock: clock.NewFakeClock(now),
	})

	return fixture{
		svc:   svc,
		conn:  conn,
		admin: authorization.Actor{Kind: authorization.ActorAdmin, ID: 1, DepartmentID: allDepartmentID},
	}
}

func companyActor(c domain.Company) authorization.Actor {
	return authorization.Actor{Kind: authorization.ActorCompany, ID: c.ID, CompanyID: c.ID, DepartmentID: c.DepartmentID}
}

func TestCompanyCreatesAndListsOwnEmployees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plumbing, err := f.svc.CreateDepartment(ctx, f.admin, domain.CreateDepartmentRequest{Name: "Plumbing"})
	require.NoError(t, err)

	acme, err := f.svc.RegisterCompany(ctx, domain.NewAccount{Name: "Acme", Email: "ops@acme.io", Password: "s3cretpass", DepartmentID: allDepartmentID})
	require.NoError(t, err)
	globex, err := f.svc.RegisterCompany(ctx, domain.NewAccount{Name: "Globex", Email: "ops@globex.io", Password: "s3cretpass", DepartmentID: allDepartmentID})
	require.NoError(t, err)

	emp, err := f.svc.CreateEmployee(ctx, companyActor(acme), domain.CreateEmployeeRequest{
		Name:         "Jane",
		Email:        "Jane@Acme.io",
		Password:     "s3cretpass",
		DepartmentID: plumbing.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, acme.ID, emp.CompanyID)
	assert.Equal(t, "jane@acme.io", emp.Email)
	assert.True(t, password.Verify("s3cretpass", emp.PasswordHash))

	_, err = f.svc.CreateEmployee(ctx, companyActor(globex), domain.CreateEmployeeRequest{
		Name:         "John",
		Email:        "john@globex.io",
		Password:     "s3cretpass",
		DepartmentID: plumbing.ID,
	})
	require.NoError(t, err)

	own, err := f.svc.ListEmployees(ctx, companyActor(acme))
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, emp.ID, own[0].ID)

	all, err := f.svc.ListEmployees(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.GetEmployee(ctx, companyActor(globex), emp.ID)
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = f.svc.CreateEmployee(ctx, f.admin, domain.CreateEmployeeRequest{
		Name:         "Nope",
		Email:        "nope@acme.io",
		Password:     "s3cretpass",
		DepartmentID: plumbing.ID,
	})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestEmailIsUniqueAcrossActorKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterCompany(ctx, domain.NewAccount{Name: "Acme", Email: "shared@acme.io", Password: "s3cretpass", DepartmentID: allDepartmentID})
	require.NoError(t, err)

	_, err = f.svc.CreateAdmin(ctx, f.admin, domain.CreateAdminRequest{
		Name:         "Admin",
		Email:        "SHARED@acme.io",
		Password:     "s3cretpass",
		DepartmentID: allDepartmentID,
	})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	inUse, err := f.svc.EmailInUse(ctx, nil, "shared@acme.io")
	require.NoError(t, err)
	assert.True(t, inUse)
}

func TestAccountValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterCompany(ctx, domain.NewAccount{Name: "Acme", Email: "not-an-email", Password: "s3cretpass", DepartmentID: allDepartmentID})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.RegisterCompany(ctx, domain.NewAccount{Name: "Acme", Email: "ops@acme.io", Password: "short", DepartmentID: allDepartmentID})
	assert.ErrorIs(t, err, domain.ErrInvalidPassword)

	_, err = f.svc.RegisterCompany(ctx, domain.NewAccount{Name: "Acme", Email: "ops@acme.io", Password: "s3cretpass", DepartmentID: 999})
	assert.ErrorIs(t, err, domain.ErrInvalidDepartment)
}

func TestDeleteDepartmentGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.DeleteDepartment(ctx, f.admin, allDepartmentID)
	assert.ErrorIs(t, err, domain.ErrProtectedDepartment)

	dept, err := f.svc.CreateDepartment(ctx, f.admin, domain.CreateDepartmentRequest{Name: "Electrical"})
	require.NoError(t, err)
	require.NoError(t, f.conn.Exec(`INSERT INTO work_orders (id, department_id) VALUES (?, ?)`, 10, dept.ID).Error)

	err = f.svc.DeleteDepartment(ctx, f.admin, dept.ID)
	assert.ErrorIs(t, err, domain.ErrDepartmentInUse)

	require.NoError(t, f.conn.Exec(`DELETE FROM work_orders`).Error)
	require.NoError(t, f.svc.DeleteDepartment(ctx, f.admin, dept.ID))

	_, err = f.svc.GetDepartment(ctx, f.admin, dept.ID)
	assert.ErrorIs(t, err, domain.ErrDepartmentNotFound)

	_, err = f.svc.CreateDepartment(ctx, f.admin, domain.CreateDepartmentRequest{Name: "All Departments"})
	assert.ErrorIs(t, err, domain.ErrDepartmentExists)
}

func TestFindAccountAndEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, created, err := f.svc.EnsureAdmin(ctx, domain.NewAccount{Name: "Root", Email: "root@workdesk.io", Password: "s3cretpass", DepartmentID: allDepartmentID})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := f.svc.EnsureAdmin(ctx, domain.NewAccount{Name: "Root", Email: "root@workdesk.io", Password: "s3cretpass", DepartmentID: allDepartmentID})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)

	account, err := f.svc.FindAccount(ctx, authorization.ActorAdmin, "ROOT@workdesk.io")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, account.ID)
	assert.Equal(t, "All Departments", account.DepartmentName)

	_, err = f.svc.FindAccount(ctx, authorization.ActorCompany, "root@workdesk.io")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestUpdateEmployeeByOwningCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acme, err := f.svc.RegisterCompany(ctx, domain.NewAccount{Name: "Acme", Email: "ops@acme.io", Password: "s3cretpass", DepartmentID: allDepartmentID})
	require.NoError(t, err)
	emp, err := f.svc.CreateEmployee(ctx, companyActor(acme), domain.CreateEmployeeRequest{
		Name:         "Jane",
		Email:        "jane@acme.io",
		Password:     "s3cretpass",
		DepartmentID: allDepartmentID,
	})
	require.NoError(t, err)

	name := "Jane Doe"
	updated, err := f.svc.UpdateEmployee(ctx, companyActor(acme), emp.ID, domain.UpdateEmployeeRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", updated.Name)

	taken := "ops@acme.io"
	_, err = f.svc.UpdateEmployee(ctx, f.admin, emp.ID, domain.UpdateEmployeeRequest{Email: &taken})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	contact, err := f.svc.EmployeeContact(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.io", contact.Email)
}
