package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/clock"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	invoicedomain "github.com/smallbiznis/workdesk/internal/invoice/domain"
	"github.com/smallbiznis/workdesk/internal/notification"
	obslogger "github.com/smallbiznis/workdesk/internal/observability/logger"
	"github.com/smallbiznis/workdesk/internal/observability/metrics"
	"github.com/smallbiznis/workdesk/internal/workorder/domain"
	"github.com/smallbiznis/workdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Authz      authorization.Service
	Lookup     directorydomain.Lookup
	Invoices   invoicedomain.Service
	Dispatcher *notification.Dispatcher
	Guard      domain.CompletionGuard   `optional:"true"`
	AuditSvc   auditdomain.Service      `optional:"true"`
	Metrics    *metrics.Metrics         `optional:"true"`
	Workflow   *metrics.WorkflowMetrics `optional:"true"`
	Clock      clock.Clock              `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	authz      authorization.Service
	lookup     directorydomain.Lookup
	invoices   invoicedomain.Service
	dispatcher *notification.Dispatcher
	guard      domain.CompletionGuard
	auditSvc   auditdomain.Service
	metrics    *metrics.Metrics
	workflow   *metrics.WorkflowMetrics
	clock      clock.Clock
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("workorder.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		authz:      p.Authz,
		lookup:     p.Lookup,
		invoices:   p.Invoices,
		dispatcher: p.Dispatcher,
		guard:      p.Guard,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
		workflow:   p.Workflow,
		clock:      clk,
	}
}

func (s *Service) Create(ctx context.Context, actor authorization.Actor, req domain.CreateRequest) (domain.WorkOrder, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.WorkOrder{}, domain.ErrInvalidTitle
	}
	if req.DepartmentID == 0 {
		return domain.WorkOrder{}, domain.ErrInvalidDepartment
	}
	if err := s.authz.Authorize(ctx, actor, authorization.ActionWorkOrderCreate, authorization.Resource{DepartmentID: req.DepartmentID}); err != nil {
		return domain.WorkOrder{}, err
	}
	exists, err := s.lookup.DepartmentExists(ctx, req.DepartmentID)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if !exists {
		return domain.WorkOrder{}, domain.ErrInvalidDepartment
	}

	now := s.clock.Now().UTC()
	order := domain.WorkOrder{
		ID:           s.genID.Generate(),
		Title:        title,
		Description:  strings.TrimSpace(req.Description),
		Status:       domain.StatusPending,
		DepartmentID: req.DepartmentID,
		PriorityID:   req.PriorityID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch actor.Kind {
	case authorization.ActorCompany:
		companyID := actor.ID
		order.CompanyID = &companyID
	case authorization.ActorEmployee:
		employeeID := actor.ID
		order.EmployeeID = &employeeID
		if actor.CompanyID != 0 {
			companyID := actor.CompanyID
			order.CompanyID = &companyID
		}
	default:
		return domain.WorkOrder{}, authorization.ErrForbidden
	}

	if err := s.repo.Insert(ctx, s.db, &order); err != nil {
		return domain.WorkOrder{}, err
	}

	s.audit(ctx, actor, auditdomain.ActionWorkOrderCreated, order.ID, map[string]any{
		"department_id": order.DepartmentID.String(),
		"status":        string(order.Status),
	})
	return order, nil
}

func (s *Service) List(ctx context.Context, actor authorization.Actor, req domain.ListRequest) (domain.ListResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionWorkOrderView, authorization.Collection()); err != nil {
		return domain.ListResponse{}, err
	}

	var filter domain.ListFilter
	switch actor.Kind {
	case authorization.ActorAdmin:
		filter.DepartmentID = req.DepartmentID
	case authorization.ActorCompany:
		filter.CompanyID = &actor.ID
	case authorization.ActorEmployee:
		filter.EmployeeID = &actor.ID
		companyID := actor.CompanyID
		filter.CompanyID = &companyID
	default:
		return domain.ListResponse{}, authorization.ErrForbidden
	}

	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.Status = &status
	}

	position, err := pagination.ParsePosition(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, domain.ErrInvalidPageToken
	}
	if position != nil {
		filter.Cursor = &domain.Cursor{ID: position.ID, CreatedAt: position.CreatedAt}
	}
	filter.Limit = pagination.Limit(req.PageSize)

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	orders, pageInfo := pagination.Page(items, filter.Limit, func(o *domain.WorkOrder) (snowflake.ID, time.Time) {
		return o.ID, o.CreatedAt
	})
	return domain.ListResponse{PageInfo: pageInfo, WorkOrders: orders}, nil
}

// Get applies the List scope: admins read every department, companies and employees their own orders.
func (s *Service) Get(ctx context.Context, actor authorization.Actor, id snowflake.ID) (domain.WorkOrder, error) {
	order, err := s.find(ctx, s.db, id)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	resource := authorization.Owned(0, order.CompanyID, order.EmployeeID)
	if err := s.authz.Authorize(ctx, actor, authorization.ActionWorkOrderView, resource); err != nil {
		return domain.WorkOrder{}, err
	}
	if actor.Kind == authorization.ActorEmployee && (order.CompanyID == nil || *order.CompanyID != actor.CompanyID) {
		return domain.WorkOrder{}, authorization.ErrForbidden
	}
	return *order, nil
}

func (s *Service) Update(ctx context.Context, actor authorization.Actor, id snowflake.ID, req domain.UpdateRequest) (domain.Result, error) {
	order, err := s.find(ctx, s.db, id)
	if err != nil {
		return domain.Result{}, err
	}
	if err := s.authz.Authorize(ctx, actor, authorization.ActionWorkOrderUpdate, ownedResource(order)); err != nil {
		return domain.Result{}, err
	}

	target := order.Status
	if req.Status != nil {
		target, err = domain.ParseStatus(*req.Status)
		if err != nil {
			return domain.Result{}, err
		}
	}
	// Declining requires a message and only goes through Decline.
	if target == domain.StatusDeclined && order.Status != domain.StatusDeclined {
		s.workflow.IncStageError(metrics.StageUpdate, domain.ErrInvalidTransition)
		return domain.Result{}, domain.ErrInvalidTransition
	}

	patched := *order
	if err := applyPatch(&patched, req); err != nil {
		return domain.Result{}, err
	}

	if target == domain.StatusCompleted {
		return s.complete(ctx, actor, order, patched)
	}

	from := order.Status
	if err := domain.CanTransition(from, target); err != nil {
		s.workflow.IncStageError(metrics.StageUpdate, err)
		return domain.Result{}, err
	}
	patched.Status = target
	if target == domain.StatusPending || target == domain.StatusInProgress {
		patched.DeclineMessage = nil
	}
	patched.UpdatedAt = s.clock.Now().UTC()

	ok, err := s.repo.UpdateIfStatus(ctx, s.db, &patched, []domain.Status{from})
	if err != nil {
		s.workflow.IncStageError(metrics.StageUpdate, err)
		return domain.Result{}, err
	}
	if !ok {
		err := s.staleError(ctx, id)
		s.workflow.IncStageError(metrics.StageUpdate, err)
		return domain.Result{}, err
	}

	if from != target {
		s.recordTransition(ctx, from, target)
	}
	s.audit(ctx, actor, auditdomain.ActionWorkOrderUpdated, patched.ID, map[string]any{
		"from_status": string(from),
		"to_status":   string(target),
	})

	result := domain.Result{WorkOrder: patched}
	recipient, found := s.primaryRecipient(ctx, &patched)
	if !found {
		return result, domain.ErrRecipientNotFound
	}
	report := s.dispatcher.WorkUpdated(ctx, notification.Message{
		WorkOrderID: patched.ID.String(),
		Title:       patched.Title,
	}, recipient)
	result.Notification = s.report(ctx, actor, patched.ID, report)
	return result, nil
}

func (s *Service) Complete(ctx context.Context, actor authorization.Actor, id snowflake.ID) (domain.Result, error) {
	order, err := s.find(ctx, s.db, id)
	if err != nil {
		return domain.Result{}, err
	}
	return s.complete(ctx, actor, order, *order)
}

// complete moves order to Completed together with the patched fields and issues the invoice in
// the same transaction. Rendering and delivery happen after commit and never undo it.
func (s *Service) complete(ctx context.Context, actor authorization.Actor, order *domain.WorkOrder, patched domain.WorkOrder) (domain.Result, error) {
	started := s.clock.Now()
	if err := s.authz.Authorize(ctx, actor, authorization.ActionWorkOrderComplete, ownedResource(order)); err != nil {
		return domain.Result{}, err
	}
	if err := domain.CanTransition(order.Status, domain.StatusCompleted); err != nil {
		s.workflow.IncStageError(metrics.StageComplete, err)
		return domain.Result{}, err
	}

	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, order.ID)
		if err != nil {
			s.workflow.IncStageError(metrics.StageComplete, err)
			return domain.Result{}, err
		}
		defer release()
	}

	now := s.clock.Now().UTC()
	patched.Status = domain.StatusCompleted
	patched.DeclineMessage = nil
	patched.CompletedAt = &now
	patched.UpdatedAt = now

	var invoice invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.UpdateIfStatus(ctx, tx, &patched, domain.Completable())
		if err != nil {
			return err
		}
		if !ok {
			return s.staleErrorTx(ctx, tx, order.ID)
		}

		invoice, err = s.invoices.CreateTx(ctx, tx, invoicedomain.CreateRequest{
			WorkOrderID:    patched.ID,
			WorkOrderTitle: patched.Title,
			CompanyID:      patched.CompanyID,
			EmployeeID:     patched.EmployeeID,
			DepartmentID:   patched.DepartmentID,
			AdminID:        actor.ID,
			BaseAmount:     patched.Price,
		})
		if err != nil {
			s.workflow.IncStageError(metrics.StageInvoice, err)
			if errors.Is(err, invoicedomain.ErrInvoiceExists) {
				return domain.ErrAlreadyCompleted
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.workflow.IncStageError(metrics.StageComplete, err)
		return domain.Result{}, err
	}

	s.recordTransition(ctx, order.Status, domain.StatusCompleted)
	s.audit(ctx, actor, auditdomain.ActionWorkOrderCompleted, patched.ID, map[string]any{
		"from_status":    string(order.Status),
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.InvoiceNumber,
		"total_amount":   invoice.TotalAmount.StringFixed(2),
	})
	obslogger.WithContext(ctx, s.log).Info("work order completed",
		zap.String("work_order_id", patched.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
	)

	s.invoices.NotifyCreated(ctx, invoice)
	report := s.deliverCompletion(ctx, &patched, invoice)
	s.workflow.ObserveCompletion(s.clock.Now().Sub(started))

	return domain.Result{
		WorkOrder:    patched,
		Invoice:      &invoice,
		Notification: s.report(ctx, actor, patched.ID, report),
	}, nil
}

func (s *Service) deliverCompletion(ctx context.Context, order *domain.WorkOrder, invoice invoicedomain.Invoice) notification.Report {
	var recipients []notification.Recipient
	if order.EmployeeID != nil {
		recipients = append(recipients, s.recipient(ctx, notification.RoleEmployee, *order.EmployeeID))
	}
	if order.CompanyID != nil {
		recipients = append(recipients, s.recipient(ctx, notification.RoleCompany, *order.CompanyID))
	}

	msg := notification.Message{
		WorkOrderID:   order.ID.String(),
		Title:         order.Title,
		InvoiceNumber: invoice.InvoiceNumber,
		TotalAmount:   invoice.TotalAmount.StringFixed(2),
	}

	doc, err := s.invoices.Render(ctx, invoice)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("invoice render failed", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
		s.workflow.IncStageError(metrics.StageNotification, err)
		report := notification.Report{Kind: notification.KindWorkCompleted}
		for _, r := range recipients {
			report.Outcomes = append(report.Outcomes, notification.Outcome{
				Role:      r.Role,
				Recipient: r.Email,
				Status:    metrics.NotificationOutcomeFailed,
				Error:     "document_render_failed",
			})
		}
		return report
	}

	return s.dispatcher.WorkCompleted(ctx, msg, recipients, &notification.Attachment{
		Filename: notification.DefaultAttachmentName,
		Content:  doc,
	})
}

func (s *Service) Decline(ctx context.Context, actor authorization.Actor, id snowflake.ID, req domain.DeclineRequest) (domain.Result, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return domain.Result{}, domain.ErrDeclineMessageRequired
	}
	order, err := s.find(ctx, s.db, id)
	if err != nil {
		return domain.Result{}, err
	}
	if err := s.authz.Authorize(ctx, actor, authorization.ActionWorkOrderDecline, ownedResource(order)); err != nil {
		return domain.Result{}, err
	}
	if order.Status == domain.StatusDeclined {
		return domain.Result{WorkOrder: *order}, nil
	}
	if err := domain.CanTransition(order.Status, domain.StatusDeclined); err != nil {
		s.workflow.IncStageError(metrics.StageDecline, err)
		return domain.Result{}, err
	}

	declined := *order
	declined.Status = domain.StatusDeclined
	declined.DeclineMessage = &message
	declined.UpdatedAt = s.clock.Now().UTC()

	ok, err := s.repo.UpdateIfStatus(ctx, s.db, &declined, domain.Completable())
	if err != nil {
		s.workflow.IncStageError(metrics.StageDecline, err)
		return domain.Result{}, err
	}
	if !ok {
		err := s.staleError(ctx, id)
		s.workflow.IncStageError(metrics.StageDecline, err)
		return domain.Result{}, err
	}

	s.recordTransition(ctx, order.Status, domain.StatusDeclined)
	s.audit(ctx, actor, auditdomain.ActionWorkOrderDeclined, declined.ID, map[string]any{
		"from_status": string(order.Status),
	})

	result := domain.Result{WorkOrder: declined}
	recipient, found := s.primaryRecipient(ctx, &declined)
	if !found {
		return result, domain.ErrRecipientNotFound
	}
	report := s.dispatcher.WorkDeclined(ctx, notification.Message{
		WorkOrderID: declined.ID.String(),
		Title:       declined.Title,
		Message:     message,
	}, recipient)
	result.Notification = s.report(ctx, actor, declined.ID, report)
	return result, nil
}

func (s *Service) Delete(ctx context.Context, actor authorization.Actor, id snowflake.ID) error {
	order, err := s.find(ctx, s.db, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, actor, authorization.ActionWorkOrderDelete, ownedResource(order)); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, order.ID); err != nil {
		return err
	}
	s.audit(ctx, actor, auditdomain.ActionWorkOrderDeleted, order.ID, map[string]any{
		"status": string(order.Status),
	})
	return nil
}

func (s *Service) find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.WorkOrder, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	order, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) staleError(ctx context.Context, id snowflake.ID) error {
	return s.staleErrorTx(ctx, s.db, id)
}

// staleErrorTx explains why a conditional update matched no row.
func (s *Service) staleErrorTx(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	current, err := s.find(ctx, db, id)
	if err != nil {
		return err
	}
	switch current.Status {
	case domain.StatusCompleted:
		return domain.ErrAlreadyCompleted
	case domain.StatusDeclined:
		return domain.ErrInvalidTransition
	default:
		return domain.ErrConcurrentUpdate
	}
}

// primaryRecipient is the employee when there is one, otherwise the company.
func (s *Service) primaryRecipient(ctx context.Context, order *domain.WorkOrder) (notification.Recipient, bool) {
	if order.EmployeeID != nil {
		if contact, err := s.lookup.EmployeeContact(ctx, *order.EmployeeID); err == nil && contact != nil {
			return notification.Recipient{Role: notification.RoleEmployee, Name: contact.Name, Email: contact.Email}, true
		}
	}
	if order.CompanyID != nil {
		if contact, err := s.lookup.CompanyContact(ctx, *order.CompanyID); err == nil && contact != nil {
			return notification.Recipient{Role: notification.RoleCompany, Name: contact.Name, Email: contact.Email}, true
		}
	}
	return notification.Recipient{}, false
}

// recipient resolves a contact; an unresolved contact yields an empty address, reported as skipped.
func (s *Service) recipient(ctx context.Context, role notification.Role, id snowflake.ID) notification.Recipient {
	var (
		contact *directorydomain.Contact
		err     error
	)
	if role == notification.RoleEmployee {
		contact, err = s.lookup.EmployeeContact(ctx, id)
	} else {
		contact, err = s.lookup.CompanyContact(ctx, id)
	}
	if err != nil || contact == nil {
		obslogger.WithContext(ctx, s.log).Warn("notification recipient unresolved", zap.String("role", string(role)), zap.String("recipient_id", id.String()), zap.Error(err))
		return notification.Recipient{Role: role}
	}
	return notification.Recipient{Role: role, Name: contact.Name, Email: contact.Email}
}

// report converts the dispatcher report and audits failed deliveries.
func (s *Service) report(ctx context.Context, actor authorization.Actor, orderID snowflake.ID, report notification.Report) *domain.NotificationReport {
	out := &domain.NotificationReport{Kind: string(report.Kind), Deliveries: make([]domain.Delivery, 0, len(report.Outcomes))}
	for _, o := range report.Outcomes {
		out.Deliveries = append(out.Deliveries, domain.Delivery{
			Role:      string(o.Role),
			Recipient: o.Recipient,
			Status:    o.Status,
			Error:     o.Error,
		})
		if o.Status == metrics.NotificationOutcomeFailed {
			s.audit(ctx, actor, auditdomain.ActionWorkOrderNotificationFailed, orderID, map[string]any{
				"kind":  string(report.Kind),
				"role":  string(o.Role),
				"error": o.Error,
			})
		}
	}
	return out
}

func (s *Service) recordTransition(ctx context.Context, from, to domain.Status) {
	s.workflow.IncTransition(string(from), string(to))
	s.metrics.RecordWorkOrderTransition(ctx, string(from), string(to))
}

func (s *Service) audit(ctx context.Context, actor authorization.Actor, action string, orderID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorID := actor.IDString()
	targetID := orderID.String()
	if err := s.auditSvc.AuditLog(ctx, string(actor.Kind), &actorID, action, "work_order", &targetID, metadata); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("failed to audit work order event", zap.String("action", action), zap.Error(err))
	}
}

func ownedResource(order *domain.WorkOrder) authorization.Resource {
	return authorization.Owned(order.DepartmentID, order.CompanyID, order.EmployeeID)
}

func applyPatch(order *domain.WorkOrder, req domain.UpdateRequest) error {
	if req.StagingID != nil {
		staging := *req.StagingID
		order.StagingID = &staging
	}
	if req.Hours != nil {
		if req.Hours.IsNegative() {
			return domain.ErrInvalidAmount
		}
		order.Hours = *req.Hours
	}
	if req.WorkerCount != nil {
		if *req.WorkerCount < 0 {
			return domain.ErrInvalidAmount
		}
		order.WorkerCount = *req.WorkerCount
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return domain.ErrInvalidAmount
		}
		order.Price = req.Price.Round(2)
	}
	if req.StartAt != nil {
		start := req.StartAt.UTC()
		order.StartAt = &start
	}
	if req.FinishAt != nil {
		finish := req.FinishAt.UTC()
		order.FinishAt = &finish
	}
	return nil
}
