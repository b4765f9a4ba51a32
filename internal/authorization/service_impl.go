package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	"github.com/smallbiznis/workdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log             *zap.Logger
	enforcer        *casbin.SyncedEnforcer
	auditSvc        auditdomain.Service
	allDepartmentID snowflake.ID
}

// NewEnforcer loads persisted policies through the gorm adapter and seeds the built-in roles.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds an enforcer with the seeded policies and no persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:             p.Log.Named("authorization.service"),
		enforcer:        p.Enforcer,
		auditSvc:        p.AuditSvc,
		allDepartmentID: snowflake.ID(p.Cfg.AllDepartmentID),
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, action string, resource Resource) error {
	if !actor.Valid() {
		return ErrInvalidActor
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}
	object, _, ok := strings.Cut(action, ".")
	if !ok || object == "" {
		return ErrInvalidObject
	}

	allowed, err := s.enforcer.Enforce(s.roleFor(actor), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actor, object, action, "capability")
		return ErrForbidden
	}

	if !s.inScope(actor, action, resource) {
		s.auditDenied(ctx, actor, object, action, "scope")
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) IsAllDepartmentAdmin(actor Actor) bool {
	return actor.Kind == ActorAdmin && s.allDepartmentID != 0 && actor.DepartmentID == s.allDepartmentID
}

func (s *ServiceImpl) roleFor(actor Actor) string {
	switch actor.Kind {
	case ActorAdmin:
		if s.IsAllDepartmentAdmin(actor) {
			return RoleAllDepartmentAdmin
		}
		return RoleAdmin
	case ActorCompany:
		return RoleCompany
	default:
		return RoleEmployee
	}
}

// inScope applies ownership rules on top of the role capability.
func (s *ServiceImpl) inScope(actor Actor, action string, resource Resource) bool {
	switch actor.Kind {
	case ActorAdmin:
		if s.IsAllDepartmentAdmin(actor) || resource.DepartmentID == 0 {
			return true
		}
		return resource.DepartmentID == actor.DepartmentID
	case ActorCompany:
		if !resource.owned {
			return true
		}
		return resource.CompanyID != nil && *resource.CompanyID == actor.ID
	case ActorEmployee:
		if action == ActionWorkOrderCreate && resource.DepartmentID != actor.DepartmentID {
			return false
		}
		if !resource.owned {
			return true
		}
		return resource.EmployeeID != nil && *resource.EmployeeID == actor.ID
	default:
		return false
	}
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor Actor, object, action, layer string) {
	s.log.Debug("authorization denied",
		zap.String("actor_kind", string(actor.Kind)),
		zap.String("actor_id", actor.IDString()),
		zap.String("action", action),
		zap.String("layer", layer),
	)
	if s.auditSvc == nil {
		return
	}
	actorID := actor.IDString()
	targetID := layer
	_ = s.auditSvc.AuditLog(ctx, string(actor.Kind), &actorID, auditdomain.ActionAuthorizationDenied, "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"role":   s.roleFor(actor),
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Employees and companies submit and follow their own work.
		{RoleEmployee, ObjectWorkOrder, ActionWorkOrderCreate},
		{RoleEmployee, ObjectWorkOrder, ActionWorkOrderView},
		{RoleEmployee, ObjectInvoice, ActionInvoiceView},
		{RoleEmployee, ObjectInvoice, ActionInvoiceDownload},
		{RoleEmployee, ObjectDepartment, ActionDepartmentView},

		{RoleCompany, ObjectWorkOrder, ActionWorkOrderCreate},
		{RoleCompany, ObjectWorkOrder, ActionWorkOrderView},
		{RoleCompany, ObjectInvoice, ActionInvoiceView},
		{RoleCompany, ObjectInvoice, ActionInvoiceDownload},
		{RoleCompany, ObjectDepartment, ActionDepartmentView},
		{RoleCompany, ObjectEmployee, ActionEmployeeView},
		{RoleCompany, ObjectEmployee, ActionEmployeeCreate},
		{RoleCompany, ObjectEmployee, ActionEmployeeUpdate},
		{RoleCompany, ObjectEmployee, ActionEmployeeDelete},

		// Admins process work within their department.
		{RoleAdmin, ObjectWorkOrder, ActionWorkOrderView},
		{RoleAdmin, ObjectWorkOrder, ActionWorkOrderUpdate},
		{RoleAdmin, ObjectWorkOrder, ActionWorkOrderComplete},
		{RoleAdmin, ObjectWorkOrder, ActionWorkOrderDelete},
		{RoleAdmin, ObjectInvoice, ActionInvoiceView},
		{RoleAdmin, ObjectInvoice, ActionInvoiceDownload},
		{RoleAdmin, ObjectInvoice, ActionInvoiceUpdatePayment},
		{RoleAdmin, ObjectTaxRate, ActionTaxRateView},
		{RoleAdmin, ObjectTaxRate, ActionTaxRateUpdate},
		{RoleAdmin, ObjectDepartment, ActionDepartmentView},
		{RoleAdmin, ObjectDepartment, ActionDepartmentCreate},
		{RoleAdmin, ObjectDepartment, ActionDepartmentUpdate},
		{RoleAdmin, ObjectDepartment, ActionDepartmentDelete},
		{RoleAdmin, ObjectCompany, ActionCompanyView},
		{RoleAdmin, ObjectCompany, ActionCompanyCreate},
		{RoleAdmin, ObjectCompany, ActionCompanyUpdate},
		{RoleAdmin, ObjectCompany, ActionCompanyDelete},
		{RoleAdmin, ObjectEmployee, ActionEmployeeView},
		{RoleAdmin, ObjectEmployee, ActionEmployeeUpdate},
		{RoleAdmin, ObjectEmployee, ActionEmployeeDelete},
		{RoleAdmin, ObjectAdmin, ActionAdminView},
		{RoleAdmin, ObjectAdmin, ActionAdminCreate},
		{RoleAdmin, ObjectAdmin, ActionAdminUpdate},
		{RoleAdmin, ObjectAdmin, ActionAdminDelete},

		// All-department admins additionally decline work and read the audit trail.
		{RoleAllDepartmentAdmin, ObjectWorkOrder, ActionWorkOrderDecline},
		{RoleAllDepartmentAdmin, ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	if _, err := enforcer.AddGroupingPolicy(RoleAllDepartmentAdmin, RoleAdmin); err != nil {
		return err
	}
	return nil
}
