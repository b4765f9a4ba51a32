package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	"github.com/smallbiznis/workdesk/internal/auth/password"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/clock"
	"github.com/smallbiznis/workdesk/internal/config"
	"github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/smallbiznis/workdesk/internal/providers/email"
	pkgdb "github.com/smallbiznis/workdesk/pkg/db"
	"github.com/smallbiznis/workdesk/pkg/db/option"
	"github.com/smallbiznis/workdesk/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg      config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Authz    authorization.Service
	AuditSvc auditdomain.Service `optional:"true"`
	Clock    clock.Clock         `optional:"true"`
}

// Service implements domain.Service, domain.Lookup and domain.Registrar.
type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	repo            domain.Repository
	authz           authorization.Service
	auditSvc        auditdomain.Service
	clock           clock.Clock
	allDepartmentID snowflake.ID

	departments repository.Repository[domain.Department]
	companies   repository.Repository[domain.Company]
	employees   repository.Repository[domain.Employee]
	admins      repository.Repository[domain.Admin]
}

func New(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("directory.service"),
		genID:           p.GenID,
		repo:            p.Repo,
		authz:           p.Authz,
		auditSvc:        p.AuditSvc,
		clock:           clk,
		allDepartmentID: snowflake.ID(p.Cfg.AllDepartmentID),

		departments: repository.ProvideStore[domain.Department](p.DB),
		companies:   repository.ProvideStore[domain.Company](p.DB),
		employees:   repository.ProvideStore[domain.Employee](p.DB),
		admins:      repository.ProvideStore[domain.Admin](p.DB),
	}
}

func (s *Service) ListDepartments(ctx context.Context, actor authorization.Actor) ([]domain.Department, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionDepartmentView, authorization.Collection()); err != nil {
		return nil, err
	}
	items, err := s.departments.Find(ctx, &domain.Department{}, option.WithSortBy("name", false, "name"))
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) GetDepartment(ctx context.Context, actor authorization.Actor, id snowflake.ID) (domain.Department, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionDepartmentView, authorization.Collection()); err != nil {
		return domain.Department{}, err
	}
	if id == 0 {
		return domain.Department{}, domain.ErrDepartmentNotFound
	}
	item, err := s.departments.FindOne(ctx, &domain.Department{ID: id})
	if err != nil {
		return domain.Department{}, err
	}
	if item == nil {
		return domain.Department{}, domain.ErrDepartmentNotFound
	}
	return *item, nil
}

func (s *Service) CreateDepartment(ctx context.Context, actor authorization.Actor, req domain.CreateDepartmentRequest) (domain.Department, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionDepartmentCreate, authorization.Collection()); err != nil {
		return domain.Department{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Department{}, domain.ErrInvalidName
	}

	now := s.clock.Now()
	item := domain.Department{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.departments.Create(ctx, &item); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Department{}, domain.ErrDepartmentExists
		}
		return domain.Department{}, err
	}

	s.log.Info("department created", zap.String("department_id", item.ID.String()))
	return item, nil
}

func (s *Service) UpdateDepartment(ctx context.Context, actor authorization.Actor, id snowflake.ID, req domain.UpdateDepartmentRequest) (domain.Department, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionDepartmentUpdate, authorization.Collection()); err != nil {
		return domain.Department{}, err
	}
	if id == 0 {
		return domain.Department{}, domain.ErrDepartmentNotFound
	}
	item, err := s.departments.FindOne(ctx, &domain.Department{ID: id})
	if err != nil {
		return domain.Department{}, err
	}
	if item == nil {
		return domain.Department{}, domain.ErrDepartmentNotFound
	}
	if req.Name == nil {
		return *item, nil
	}

	name := strings.TrimSpace(*req.Name)
	if name == "" {
		return domain.Department{}, domain.ErrInvalidName
	}
	item.Name = name
	item.UpdatedAt = s.clock.Now()
	if err := s.departments.Update(ctx, id, map[string]any{
		"name":       item.Name,
		"updated_at": item.UpdatedAt,
	}); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Department{}, domain.ErrDepartmentExists
		}
		return domain.Department{}, err
	}
	return *item, nil
}

// DeleteDepartment refuses the all-department and any department still referenced by accounts or work orders.
func (s *Service) DeleteDepartment(ctx context.Context, actor authorization.Actor, id snowflake.ID) error {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionDepartmentDelete, authorization.Collection()); err != nil {
		return err
	}
	if id != 0 && id == s.allDepartmentID {
		return domain.ErrProtectedDepartment
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members, err := s.repo.CountDepartmentMembers(ctx, tx, id)
		if err != nil {
			return err
		}
		if members > 0 {
			return domain.ErrDepartmentInUse
		}
		if err := s.departments.WithTrx(tx).Delete(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrDepartmentNotFound
			}
			return err
		}
		return nil
	})
}

func (s *Service) FindAccount(ctx context.Context, kind authorization.ActorKind, email string) (*domain.Account, error) {
	return s.repo.FindAccount(ctx, s.db, kind, email)
}

func (s *Service) EmailInUse(ctx context.Context, db *gorm.DB, email string) (bool, error) {
	if db == nil {
		db = s.db
	}
	return s.repo.EmailInUse(ctx, db, email, 0)
}

func (s *Service) EmployeeContact(ctx context.Context, id snowflake.ID) (*domain.Contact, error) {
	if id == 0 {
		return nil, domain.ErrEmployeeNotFound
	}
	item, err := s.employees.FindOne(ctx, &domain.Employee{ID: id})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrEmployeeNotFound
	}
	return &domain.Contact{Name: item.Name, Email: item.Email}, nil
}

func (s *Service) CompanyContact(ctx context.Context, id snowflake.ID) (*domain.Contact, error) {
	if id == 0 {
		return nil, domain.ErrCompanyNotFound
	}
	item, err := s.companies.FindOne(ctx, &domain.Company{ID: id})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrCompanyNotFound
	}
	return &domain.Contact{Name: item.Name, Email: item.Email}, nil
}

func (s *Service) DepartmentExists(ctx context.Context, id snowflake.ID) (bool, error) {
	return s.departmentExists(ctx, s.db, id)
}

func (s *Service) departmentExists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	if id == 0 {
		return false, nil
	}
	item, err := s.departments.WithTrx(db).FindOne(ctx, &domain.Department{ID: id})
	if err != nil {
		return false, err
	}
	return item != nil, nil
}

type credentials struct {
	name  string
	email string
	hash  string
}

// prepareCredentials normalizes and validates a new account and checks e-mail uniqueness within db.
func (s *Service) prepareCredentials(ctx context.Context, db *gorm.DB, name, address, secret string, departmentID snowflake.ID) (credentials, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return credentials{}, domain.ErrInvalidName
	}
	address = strings.ToLower(strings.TrimSpace(address))
	if err := email.ValidateAddress(address); err != nil {
		return credentials{}, domain.ErrInvalidEmail
	}
	if err := password.Validate(secret); err != nil {
		return credentials{}, domain.ErrInvalidPassword
	}

	exists, err := s.departmentExists(ctx, db, departmentID)
	if err != nil {
		return credentials{}, err
	}
	if !exists {
		return credentials{}, domain.ErrInvalidDepartment
	}

	inUse, err := s.repo.EmailInUse(ctx, db, address, 0)
	if err != nil {
		return credentials{}, err
	}
	if inUse {
		return credentials{}, domain.ErrEmailTaken
	}

	hash, err := password.Hash(secret)
	if err != nil {
		return credentials{}, err
	}
	return credentials{name: name, email: address, hash: hash}, nil
}

// applyAccountPatch validates patched account fields and collects the column updates.
func (s *Service) applyAccountPatch(ctx context.Context, db *gorm.DB, id snowflake.ID, name, address, secret *string, departmentID *snowflake.ID) (map[string]any, error) {
	updates := map[string]any{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, domain.ErrInvalidName
		}
		updates["name"] = trimmed
	}
	if address != nil {
		normalized := strings.ToLower(strings.TrimSpace(*address))
		if err := email.ValidateAddress(normalized); err != nil {
			return nil, domain.ErrInvalidEmail
		}
		inUse, err := s.repo.EmailInUse(ctx, db, normalized, id)
		if err != nil {
			return nil, err
		}
		if inUse {
			return nil, domain.ErrEmailTaken
		}
		updates["email"] = normalized
	}
	if secret != nil {
		if err := password.Validate(*secret); err != nil {
			return nil, domain.ErrInvalidPassword
		}
		hash, err := password.Hash(*secret)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}
	if departmentID != nil {
		exists, err := s.departmentExists(ctx, db, *departmentID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrInvalidDepartment
		}
		updates["department_id"] = *departmentID
	}
	if len(updates) > 0 {
		updates["updated_at"] = s.clock.Now()
	}
	return updates, nil
}

func (s *Service) audit(ctx context.Context, actorKind, actorID, action, targetType string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	target := targetID.String()
	var actorRef *string
	if actorID != "" {
		actorRef = &actorID
	}
	if err := s.auditSvc.AuditLog(ctx, actorKind, actorRef, action, targetType, &target, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func mapWriteErr(err error) error {
	if pkgdb.IsDuplicateKeyErr(err) {
		return domain.ErrEmailTaken
	}
	return err
}

func deref[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}
