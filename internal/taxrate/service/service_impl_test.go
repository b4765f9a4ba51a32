package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/clock"
	"github.com/smallbiznis/workdesk/internal/config"
	"github.com/smallbiznis/workdesk/internal/taxrate/domain"
	"github.com/smallbiznis/workdesk/internal/taxrate/repository"
	"github.com/smallbiznis/workdesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var admin = authorization.Actor{Kind: authorization.ActorAdmin, ID: 900, DepartmentID: 3}

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	return newTestServiceWith(t, repository.Provide(), time.UTC)
}

func newTestServiceWith(t *testing.T, repo domain.Repository, loc *time.Location) (domain.Service, *clock.FakeClock) {
	t.Helper()
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.TaxRate{}, &domain.TaxRateVersion{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 1, 10, 8, 0, 0, 0, loc))
	var svcClock clock.Clock = clk
	if loc != time.UTC {
		svcClock = zonedClock{FakeClock: clk, loc: loc}
	}
	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repo,
		Authz: authorization.NewService(authorization.Params{
			Cfg:      config.Config{AllDepartmentID: 3},
			Log:      zap.NewNop(),
			Enforcer: enforcer,
		}),
		Clock: svcClock,
	})
	return svc, clk
}

func TestGetRateDefaultsToZero(t *testing.T) {
	svc, _ := newTestService(t)

	rate, err := svc.GetRate(context.Background(), domain.TaxTypeVAT)
	require.NoError(t, err)
	assert.True(t, rate.IsZero())
}

func TestSetRateKeepsVersionHistory(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	first, err := svc.SetRate(ctx, admin, domain.TaxTypeVAT, decimal.NewFromInt(15))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	clk.Advance(24 * time.Hour)
	second, err := svc.SetRate(ctx, admin, domain.TaxTypeVAT, decimal.NewFromInt(20))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	rate, err := svc.GetRate(ctx, domain.TaxTypeVAT)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(20)))

	history, err := svc.History(ctx, admin, domain.TaxTypeVAT)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Version)
	assert.Nil(t, history[0].EffectiveTo)
	assert.Equal(t, 1, history[1].Version)
	require.NotNil(t, history[1].EffectiveTo)

	before, err := svc.RateAt(ctx, admin, domain.TaxTypeVAT, clk.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, before.Rate.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 1, before.Version)

	unset, err := svc.RateAt(ctx, admin, domain.TaxTypeVAT, clk.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	assert.True(t, unset.Rate.IsZero())
	assert.Equal(t, 0, unset.Version)

	_, err = svc.RateAt(ctx, authorization.Actor{Kind: authorization.ActorCompany, ID: 101}, domain.TaxTypeVAT, clk.Now())
	require.ErrorIs(t, err, authorization.ErrForbidden)
}

// zonedClock reports the fake time in a fixed non-UTC zone.
type zonedClock struct {
	*clock.FakeClock
	loc *time.Location
}

func (c zonedClock) Now() time.Time { return c.FakeClock.Now().In(c.loc) }

// racingRepo bumps the stored version inside the caller's transaction just before the
// conditional update, as a competing writer committing first would.
type racingRepo struct {
	domain.Repository
}

func (r racingRepo) UpdateRate(ctx context.Context, tx *gorm.DB, rate *domain.TaxRate, expectedVersion int) (bool, error) {
	if err := tx.WithContext(ctx).Exec(`UPDATE tax_rates SET version = version + 1 WHERE type = ?`, rate.Type).Error; err != nil {
		return false, err
	}
	return r.Repository.UpdateRate(ctx, tx, rate, expectedVersion)
}

func TestSetRateLosingVersionRaceRollsBack(t *testing.T) {
	svc, _ := newTestServiceWith(t, racingRepo{repository.Provide()}, time.UTC)
	ctx := context.Background()

	_, err := svc.SetRate(ctx, admin, domain.TaxTypeVAT, decimal.NewFromInt(15))
	require.NoError(t, err)

	_, err = svc.SetRate(ctx, admin, domain.TaxTypeVAT, decimal.NewFromInt(20))
	require.ErrorIs(t, err, domain.ErrConcurrentUpdate)

	rate, err := svc.GetRate(ctx, domain.TaxTypeVAT)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(15)))

	history, err := svc.History(ctx, admin, domain.TaxTypeVAT)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].EffectiveTo)
}

func TestRateAtWithNonUTCClock(t *testing.T) {
	svc, clk := newTestServiceWith(t, repository.Provide(), time.FixedZone("WIB", 7*60*60))
	ctx := context.Background()

	first, err := svc.SetRate(ctx, admin, domain.TaxTypeVAT, decimal.NewFromInt(15))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, first.UpdatedAt.Location())

	clk.Advance(time.Hour)
	_, err = svc.SetRate(ctx, admin, domain.TaxTypeVAT, decimal.NewFromInt(20))
	require.NoError(t, err)

	between, err := svc.RateAt(ctx, admin, domain.TaxTypeVAT, clk.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.True(t, between.Rate.Equal(decimal.NewFromInt(15)), between.Rate.String())

	latest, err := svc.RateAt(ctx, admin, domain.TaxTypeVAT, clk.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, latest.Rate.Equal(decimal.NewFromInt(20)), latest.Rate.String())
}

func TestSetRateRejectsOutOfRangeAndUnknownType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetRate(ctx, admin, domain.TaxTypeVAT, decimal.NewFromInt(101))
	assert.ErrorIs(t, err, domain.ErrInvalidTaxRate)

	_, err = svc.SetRate(ctx, admin, domain.TaxTypeVAT, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, domain.ErrInvalidTaxRate)

	_, err = svc.SetRate(ctx, admin, domain.TaxType("SALES"), decimal.NewFromInt(5))
	assert.ErrorIs(t, err, domain.ErrInvalidTaxType)
}

func TestSetRateRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	employee := authorization.Actor{Kind: authorization.ActorEmployee, ID: 5, DepartmentID: 1}

	_, err := svc.SetRate(context.Background(), employee, domain.TaxTypeVAT, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestSnapshotAndListCoverAllTypes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetRate(ctx, admin, domain.TaxTypeStampDuty, decimal.RequireFromString("0.5"))
	require.NoError(t, err)

	rates, err := svc.SnapshotTx(ctx, nil)
	require.NoError(t, err)
	assert.True(t, rates.StampDuty.Rate.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, 1, rates.StampDuty.Version)
	assert.True(t, rates.VAT.Rate.IsZero())
	assert.Equal(t, 0, rates.VAT.Version)

	items, err := svc.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, domain.TaxTypeVAT, items[0].Type)
}

func TestParseTaxTypeAcceptsLooseSpelling(t *testing.T) {
	got, err := domain.ParseTaxType("stamp duty")
	require.NoError(t, err)
	assert.Equal(t, domain.TaxTypeStampDuty, got)

	got, err = domain.ParseTaxType("withholding")
	require.NoError(t, err)
	assert.Equal(t, domain.TaxTypeWithholding, got)
}
