package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	authdomain "github.com/smallbiznis/workdesk/internal/auth/domain"
	"github.com/smallbiznis/workdesk/internal/auth/password"
	"github.com/smallbiznis/workdesk/internal/authorization"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/smallbiznis/workdesk/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeLimited = "rate_limited"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Lookup  directorydomain.Lookup
	Tokens  authdomain.TokenIssuer
	Limiter authdomain.AttemptLimiter `optional:"true"`
	Metrics *metrics.Metrics          `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	lookup  directorydomain.Lookup
	tokens  authdomain.TokenIssuer
	limiter authdomain.AttemptLimiter
	metrics *metrics.Metrics

	dummyOnce sync.Once
	dummyHash string
}

func NewService(p Params) authdomain.Service {
	return &Service{
		log:     p.Log.Named("auth.service"),
		lookup:  p.Lookup,
		tokens:  p.Tokens,
		limiter: p.Limiter,
		metrics: p.Metrics,
	}
}

func (s *Service) Login(ctx context.Context, kind authorization.ActorKind, req authdomain.LoginRequest) (authdomain.LoginResult, error) {
	if _, ok := authorization.ParseActorKind(string(kind)); !ok {
		return authdomain.LoginResult{}, authdomain.ErrInvalidActorKind
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return authdomain.LoginResult{}, authdomain.ErrInvalidCredentials
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, string(kind)+":"+email)
		if err != nil {
			s.log.Warn("login limiter unavailable", zap.Error(err))
		} else if !allowed {
			s.metrics.RecordLoginAttempt(ctx, string(kind), outcomeLimited)
			s.metrics.RecordRateLimitDenied(ctx, "login", string(kind))
			return authdomain.LoginResult{}, authdomain.ErrTooManyAttempts
		}
	}

	account, err := s.lookup.FindAccount(ctx, kind, email)
	if err != nil {
		if errors.Is(err, directorydomain.ErrAccountNotFound) {
			// same cost as a wrong password
			password.Verify(req.Password, s.fallbackHash())
			s.metrics.RecordLoginAttempt(ctx, string(kind), outcomeFailure)
			return authdomain.LoginResult{}, authdomain.ErrInvalidCredentials
		}
		return authdomain.LoginResult{}, err
	}

	if !password.Verify(req.Password, account.PasswordHash) {
		s.metrics.RecordLoginAttempt(ctx, string(kind), outcomeFailure)
		s.log.Info("login rejected", zap.String("actor_kind", string(kind)), zap.String("actor_id", account.ID.String()))
		return authdomain.LoginResult{}, authdomain.ErrInvalidCredentials
	}

	actor := authorization.Actor{
		Kind:           kind,
		ID:             account.ID,
		CompanyID:      account.CompanyID,
		DepartmentID:   account.DepartmentID,
		DepartmentName: account.DepartmentName,
		Email:          account.Email,
		Name:           account.Name,
	}
	raw, expiresAt, err := s.tokens.Issue(actor)
	if err != nil {
		return authdomain.LoginResult{}, err
	}

	s.metrics.RecordLoginAttempt(ctx, string(kind), outcomeSuccess)
	s.log.Info("login succeeded", zap.String("actor_kind", string(kind)), zap.String("actor_id", account.ID.String()))

	return authdomain.LoginResult{
		Token:        raw,
		ExpiresAt:    expiresAt,
		Kind:         kind,
		ID:           account.ID,
		Name:         account.Name,
		Email:        account.Email,
		CompanyID:    account.CompanyID,
		DepartmentID: account.DepartmentID,
		Department:   account.DepartmentName,
	}, nil
}

func (s *Service) Authenticate(ctx context.Context, raw string) (authorization.Actor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return authorization.Actor{}, authdomain.ErrInvalidToken
	}
	return s.tokens.Parse(raw)
}

func (s *Service) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := password.Hash("workdesk-unknown-account")
		if err != nil {
			s.log.Warn("failed to prepare fallback hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
