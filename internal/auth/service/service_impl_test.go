package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/workdesk/internal/auth/domain"
	"github.com/smallbiznis/workdesk/internal/auth/password"
	"github.com/smallbiznis/workdesk/internal/auth/token"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/clock"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type lookupMock struct {
	mock.Mock
}

func (m *lookupMock) FindAccount(ctx context.Context, kind authorization.ActorKind, email string) (*directorydomain.Account, error) {
	args := m.Called(ctx, kind, email)
	account, _ := args.Get(0).(*directorydomain.Account)
	return account, args.Error(1)
}

func (m *lookupMock) EmailInUse(ctx context.Context, db *gorm.DB, email string) (bool, error) {
	args := m.Called(ctx, db, email)
	return args.Bool(0), args.Error(1)
}

func (m *lookupMock) EmployeeContact(ctx context.Context, id snowflake.ID) (*directorydomain.Contact, error) {
	args := m.Called(ctx, id)
	contact, _ := args.Get(0).(*directorydomain.Contact)
	return contact, args.Error(1)
}

func (m *lookupMock) CompanyContact(ctx context.Context, id snowflake.ID) (*directorydomain.Contact, error) {
	args := m.Called(ctx, id)
	contact, _ := args.Get(0).(*directorydomain.Contact)
	return contact, args.Error(1)
}

func (m *lookupMock) DepartmentExists(ctx context.Context, id snowflake.ID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func newTestService(t *testing.T, lookup directorydomain.Lookup, limiter authdomain.AttemptLimiter) authdomain.Service {
	t.Helper()
	tokens, err := token.NewManager([]byte("secret"), time.Hour, clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	return NewService(Params{
		Log:     zap.NewNop(),
		Lookup:  lookup,
		Tokens:  tokens,
		Limiter: limiter,
	})
}

func TestLoginIssuesCredentialForCompany(t *testing.T) {
	hash, err := password.Hash("correct-horse")
	require.NoError(t, err)

	lookup := &lookupMock{}
	lookup.On("FindAccount", mock.Anything, authorization.ActorCompany, "ops@acme.io").Return(&directorydomain.Account{
		Kind:           "company",
		ID:             77,
		Name:           "Acme",
		Email:          "ops@acme.io",
		CompanyID:      77,
		DepartmentID:   3,
		DepartmentName: "All Departments",
		PasswordHash:   hash,
	}, nil)

	svc := newTestService(t, lookup, nil)
	result, err := svc.Login(context.Background(), authorization.ActorCompany, authdomain.LoginRequest{Email: " OPS@acme.io ", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(77), result.ID)
	assert.NotEmpty(t, result.Token)

	actor, err := svc.Authenticate(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, authorization.ActorCompany, actor.Kind)
	assert.Equal(t, snowflake.ID(77), actor.CompanyID)
	assert.Equal(t, snowflake.ID(3), actor.DepartmentID)
	lookup.AssertExpectations(t)
}

func TestLoginRejectsWrongPasswordAndUnknownAccount(t *testing.T) {
	hash, err := password.Hash("correct-horse")
	require.NoError(t, err)

	lookup := &lookupMock{}
	lookup.On("FindAccount", mock.Anything, authorization.ActorAdmin, "root@workdesk.io").Return(&directorydomain.Account{ID: 1, PasswordHash: hash}, nil)
	lookup.On("FindAccount", mock.Anything, authorization.ActorAdmin, "ghost@workdesk.io").Return(nil, directorydomain.ErrAccountNotFound)

	svc := newTestService(t, lookup, nil)
	_, err = svc.Login(context.Background(), authorization.ActorAdmin, authdomain.LoginRequest{Email: "root@workdesk.io", Password: "wrong"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), authorization.ActorAdmin, authdomain.LoginRequest{Email: "ghost@workdesk.io", Password: "whatever"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestLoginRejectsUnknownKindAndThrottledCaller(t *testing.T) {
	lookup := &lookupMock{}
	svc := newTestService(t, lookup, denyAll{})

	_, err := svc.Login(context.Background(), authorization.ActorKind("root"), authdomain.LoginRequest{Email: "a@b.io", Password: "x"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidActorKind)

	_, err = svc.Login(context.Background(), authorization.ActorAdmin, authdomain.LoginRequest{Email: "a@b.io", Password: "x"})
	assert.ErrorIs(t, err, authdomain.ErrTooManyAttempts)
	lookup.AssertNotCalled(t, "FindAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthenticateRejectsEmptyCredential(t *testing.T) {
	svc := newTestService(t, &lookupMock{}, nil)
	_, err := svc.Authenticate(context.Background(), "  ")
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)
}
