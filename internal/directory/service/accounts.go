package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/smallbiznis/workdesk/pkg/db/option"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) ListCompanies(ctx context.Context, actor authorization.Actor) ([]domain.Company, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionCompanyView, authorization.Collection()); err != nil {
		return nil, err
	}
	items, err := s.companies.Find(ctx, &domain.Company{}, option.WithSortBy("name", false, "name"))
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) GetCompany(ctx context.Context, actor authorization.Actor, id snowflake.ID) (domain.Company, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionCompanyView, authorization.Collection()); err != nil {
		return domain.Company{}, err
	}
	item, err := s.findCompany(ctx, s.db, id)
	if err != nil {
		return domain.Company{}, err
	}
	return *item, nil
}

func (s *Service) CreateCompany(ctx context.Context, actor authorization.Actor, req domain.CreateCompanyRequest) (domain.Company, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionCompanyCreate, authorization.Collection()); err != nil {
		return domain.Company{}, err
	}
	item, err := s.insertCompany(ctx, domain.NewAccount{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		return domain.Company{}, err
	}
	s.audit(ctx, string(actor.Kind), actor.IDString(), auditdomain.ActionAccountCreated, "company", item.ID, nil)
	return item, nil
}

func (s *Service) UpdateCompany(ctx context.Context, actor authorization.Actor, id snowflake.ID, req domain.UpdateCompanyRequest) (domain.Company, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionCompanyUpdate, authorization.Collection()); err != nil {
		return domain.Company{}, err
	}

	var updated domain.Company
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.findCompany(ctx, tx, id); err != nil {
			return err
		}
		updates, err := s.applyAccountPatch(ctx, tx, id, req.Name, req.Email, req.Password, req.DepartmentID)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := s.companies.WithTrx(tx).Update(ctx, id, updates); err != nil {
				return mapWriteErr(err)
			}
		}
		item, err := s.findCompany(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = *item
		return nil
	})
	if err != nil {
		return domain.Company{}, err
	}
	s.audit(ctx, string(actor.Kind), actor.IDString(), auditdomain.ActionAccountUpdated, "company", id, nil)
	return updated, nil
}

func (s *Service) DeleteCompany(ctx context.Context, actor authorization.Actor, id snowflake.ID) error {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionCompanyDelete, authorization.Collection()); err != nil {
		return err
	}
	if err := s.companies.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrCompanyNotFound
		}
		return err
	}
	s.audit(ctx, string(actor.Kind), actor.IDString(), auditdomain.ActionAccountDeleted, "company", id, nil)
	return nil
}

// ListEmployees returns every employee for admins and only its own employees for a company.
func (s *Service) ListEmployees(ctx context.Context, actor authorization.Actor) ([]domain.Employee, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionEmployeeView, authorization.Collection()); err != nil {
		return nil, err
	}
	filter := &domain.Employee{}
	if actor.Kind == authorization.ActorCompany {
		filter.CompanyID = actor.ID
	}
	items, err := s.employees.Find(ctx, filter, option.WithSortBy("name", false, "name"))
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) GetEmployee(ctx context.Context, actor authorization.Actor, id snowflake.ID) (domain.Employee, error) {
	item, err := s.findEmployee(ctx, s.db, id)
	if err != nil {
		return domain.Employee{}, err
	}
	if err := s.authz.Authorize(ctx, actor, authorization.ActionEmployeeView, employeeResource(item)); err != nil {
		return domain.Employee{}, err
	}
	return *item, nil
}

// CreateEmployee is reserved to companies; the employee always joins the calling company.
func (s *Service) CreateEmployee(ctx context.Context, actor authorization.Actor, req domain.CreateEmployeeRequest) (domain.Employee, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionEmployeeCreate, authorization.Collection()); err != nil {
		return domain.Employee{}, err
	}

	var item domain.Employee
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		creds, err := s.prepareCredentials(ctx, tx, req.Name, req.Email, req.Password, req.DepartmentID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		item = domain.Employee{
			ID:           s.genID.Generate(),
			Name:         creds.name,
			Email:        creds.email,
			CompanyID:    actor.ID,
			DepartmentID: req.DepartmentID,
			PasswordHash: creds.hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return mapWriteErr(s.employees.WithTrx(tx).Create(ctx, &item))
	})
	if err != nil {
		return domain.Employee{}, err
	}

	s.log.Info("employee created",
		zap.String("employee_id", item.ID.String()),
		zap.String("company_id", item.CompanyID.String()),
	)
	s.audit(ctx, string(actor.Kind), actor.IDString(), auditdomain.ActionAccountCreated, "employee", item.ID, nil)
	return item, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, actor authorization.Actor, id snowflake.ID, req domain.UpdateEmployeeRequest) (domain.Employee, error) {
	current, err := s.findEmployee(ctx, s.db, id)
	if err != nil {
		return domain.Employee{}, err
	}
	if err := s.authz.Authorize(ctx, actor, authorization.ActionEmployeeUpdate, employeeResource(current)); err != nil {
		return domain.Employee{}, err
	}

	var updated domain.Employee
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates, err := s.applyAccountPatch(ctx, tx, id, req.Name, req.Email, req.Password, req.DepartmentID)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := s.employees.WithTrx(tx).Update(ctx, id, updates); err != nil {
				return mapWriteErr(err)
			}
		}
		item, err := s.findEmployee(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = *item
		return nil
	})
	if err != nil {
		return domain.Employee{}, err
	}
	s.audit(ctx, string(actor.Kind), actor.IDString(), auditdomain.ActionAccountUpdated, "employee", id, nil)
	return updated, nil
}

func (s *Service) DeleteEmployee(ctx context.Context, actor authorization.Actor, id snowflake.ID) error {
	current, err := s.findEmployee(ctx, s.db, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, actor, authorization.ActionEmployeeDelete, employeeResource(current)); err != nil {
		return err
	}
	if err := s.employees.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrEmployeeNotFound
		}
		return err
	}
	s.audit(ctx, string(actor.Kind), actor.IDString(), auditdomain.ActionAccountDeleted, "employee", id, nil)
	return nil
}

func (s *Service) ListAdmins(ctx context.Context, actor authorization.Actor) ([]domain.Admin, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionAdminView, authorization.Collection()); err != nil {
		return nil, err
	}
	items, err := s.admins.Find(ctx, &domain.Admin{}, option.WithSortBy("name", false, "name"))
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) GetAdmin(ctx context.Context, actor authorization.Actor, id snowflake.ID) (domain.Admin, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionAdminView, authorization.Collection()); err != nil {
		return domain.Admin{}, err
	}
	item, err := s.findAdmin(ctx, s.db, id)
	if err != nil {
		return domain.Admin{}, err
	}
	return *item, nil
}

func (s *Service) CreateAdmin(ctx context.Context, actor authorization.Actor, req domain.CreateAdminRequest) (domain.Admin, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionAdminCreate, authorization.Collection()); err != nil {
		return domain.Admin{}, err
	}
	item, err := s.insertAdmin(ctx, domain.NewAccount{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		return domain.Admin{}, err
	}
	s.audit(ctx, string(actor.Kind), actor.IDString(), auditdomain.ActionAccountCreated, "admin", item.ID, nil)
	return item, nil
}

func (s *Service) UpdateAdmin(ctx context.Context, actor authorization.Actor, id snowflake.ID, req domain.UpdateAdminRequest) (domain.Admin, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionAdminUpdate, authorization.Collection()); err != nil {
		return domain.Admin{}, err
	}

	var updated domain.Admin
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.findAdmin(ctx, tx, id); err != nil {
			return err
		}
		updates, err := s.applyAccountPatch(ctx, tx, id, req.Name, req.Email, req.Password, req.DepartmentID)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := s.admins.WithTrx(tx).Update(ctx, id, updates); err != nil {
				return mapWriteErr(err)
			}
		}
		item, err := s.findAdmin(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = *item
		return nil
	})
	if err != nil {
		return domain.Admin{}, err
	}
	s.audit(ctx, string(actor.Kind), actor.IDString(), auditdomain.ActionAccountUpdated, "admin", id, nil)
	return updated, nil
}

func (s *Service) DeleteAdmin(ctx context.Context, actor authorization.Actor, id snowflake.ID) error {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionAdminDelete, authorization.Collection()); err != nil {
		return err
	}
	if err := s.admins.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrAdminNotFound
		}
		return err
	}
	s.audit(ctx, string(actor.Kind), actor.IDString(), auditdomain.ActionAccountDeleted, "admin", id, nil)
	return nil
}

// RegisterCompany creates a company without an authenticated caller.
func (s *Service) RegisterCompany(ctx context.Context, account domain.NewAccount) (domain.Company, error) {
	return s.insertCompany(ctx, account)
}

func (s *Service) EnsureAdmin(ctx context.Context, account domain.NewAccount) (domain.Admin, bool, error) {
	existing, err := s.repo.FindAccount(ctx, s.db, authorization.ActorAdmin, account.Email)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return domain.Admin{}, false, err
	}
	if existing != nil {
		item, err := s.findAdmin(ctx, s.db, existing.ID)
		if err != nil {
			return domain.Admin{}, false, err
		}
		return *item, false, nil
	}

	item, err := s.insertAdmin(ctx, account)
	if err != nil {
		return domain.Admin{}, false, err
	}
	return item, true, nil
}

func (s *Service) insertCompany(ctx context.Context, account domain.NewAccount) (domain.Company, error) {
	var item domain.Company
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		creds, err := s.prepareCredentials(ctx, tx, account.Name, account.Email, account.Password, account.DepartmentID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		item = domain.Company{
			ID:           s.genID.Generate(),
			Name:         creds.name,
			Email:        creds.email,
			DepartmentID: account.DepartmentID,
			PasswordHash: creds.hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return mapWriteErr(s.companies.WithTrx(tx).Create(ctx, &item))
	})
	if err != nil {
		return domain.Company{}, err
	}
	s.log.Info("company created", zap.String("company_id", item.ID.String()))
	return item, nil
}

func (s *Service) insertAdmin(ctx context.Context, account domain.NewAccount) (domain.Admin, error) {
	var item domain.Admin
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		creds, err := s.prepareCredentials(ctx, tx, account.Name, account.Email, account.Password, account.DepartmentID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		item = domain.Admin{
			ID:           s.genID.Generate(),
			Name:         creds.name,
			Email:        creds.email,
			DepartmentID: account.DepartmentID,
			PasswordHash: creds.hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return mapWriteErr(s.admins.WithTrx(tx).Create(ctx, &item))
	})
	if err != nil {
		return domain.Admin{}, err
	}
	s.log.Info("admin created",
		zap.String("admin_id", item.ID.String()),
		zap.String("department_id", item.DepartmentID.String()),
	)
	return item, nil
}

func (s *Service) findCompany(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Company, error) {
	if id == 0 {
		return nil, domain.ErrCompanyNotFound
	}
	item, err := s.companies.WithTrx(db).FindOne(ctx, &domain.Company{ID: id})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrCompanyNotFound
	}
	return item, nil
}

func (s *Service) findEmployee(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Employee, error) {
	if id == 0 {
		return nil, domain.ErrEmployeeNotFound
	}
	item, err := s.employees.WithTrx(db).FindOne(ctx, &domain.Employee{ID: id})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrEmployeeNotFound
	}
	return item, nil
}

func (s *Service) findAdmin(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Admin, error) {
	if id == 0 {
		return nil, domain.ErrAdminNotFound
	}
	item, err := s.admins.WithTrx(db).FindOne(ctx, &domain.Admin{ID: id})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrAdminNotFound
	}
	return item, nil
}

// employeeResource scopes an employee row by its owning company only.
func employeeResource(item *domain.Employee) authorization.Resource {
	companyID := item.CompanyID
	return authorization.Owned(0, &companyID, nil)
}
