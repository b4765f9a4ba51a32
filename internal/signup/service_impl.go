package signup

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/workdesk/internal/auth/domain"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/config"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/smallbiznis/workdesk/internal/signup/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	Registrar directorydomain.Registrar
	Tokens    authdomain.TokenIssuer
	AuditSvc  auditdomain.Service `optional:"true"`
}

type service struct {
	log             *zap.Logger
	registrar       directorydomain.Registrar
	tokens          authdomain.TokenIssuer
	auditSvc        auditdomain.Service
	allDepartmentID snowflake.ID
}

func NewService(p Params) domain.Service {
	return &service{
		log:             p.Log.Named("signup.service"),
		registrar:       p.Registrar,
		tokens:          p.Tokens,
		auditSvc:        p.AuditSvc,
		allDepartmentID: snowflake.ID(p.Cfg.AllDepartmentID),
	}
}

// Signup registers a company in the all-department department and signs it in.
func (s *service) Signup(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, domain.ErrInvalidRequest
	}

	company, err := s.registrar.RegisterCompany(ctx, directorydomain.NewAccount{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		DepartmentID: s.allDepartmentID,
	})
	if err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		companyID := company.ID.String()
		if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeCompany), &companyID, auditdomain.ActionCompanyRegistered, "company", &companyID, map[string]any{
			"email": company.Email,
		}); err != nil {
			s.log.Warn("failed to audit registration", zap.Error(err))
		}
	}

	actor := authorization.Actor{
		Kind:         authorization.ActorCompany,
		ID:           company.ID,
		CompanyID:    company.ID,
		DepartmentID: company.DepartmentID,
		Email:        company.Email,
		Name:         company.Name,
	}
	raw, expiresAt, err := s.tokens.Issue(actor)
	if err != nil {
		return nil, err
	}

	s.log.Info("company registered", zap.String("company_id", company.ID.String()))

	return &domain.Result{
		Company: company,
		Session: authdomain.LoginResult{
			Token:        raw,
			ExpiresAt:    expiresAt,
			Kind:         authorization.ActorCompany,
			ID:           company.ID,
			Name:         company.Name,
			Email:        company.Email,
			CompanyID:    company.ID,
			DepartmentID: company.DepartmentID,
		},
	}, nil
}
