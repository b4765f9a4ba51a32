package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/clock"
	"github.com/smallbiznis/workdesk/internal/config"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/smallbiznis/workdesk/internal/invoice/calculator"
	"github.com/smallbiznis/workdesk/internal/invoice/domain"
	"github.com/smallbiznis/workdesk/internal/invoice/format"
	"github.com/smallbiznis/workdesk/internal/notification"
	obslogger "github.com/smallbiznis/workdesk/internal/observability/logger"
	"github.com/smallbiznis/workdesk/internal/observability/metrics"
	"github.com/smallbiznis/workdesk/internal/providers/pdf"
	taxdomain "github.com/smallbiznis/workdesk/internal/taxrate/domain"
	pkgdb "github.com/smallbiznis/workdesk/pkg/db"
	"github.com/smallbiznis/workdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const issueDateLayout = "2006-01-02"

type Params struct {
	fx.In

	Cfg        config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Authz      authorization.Service
	TaxRates   taxdomain.Service
	Lookup     directorydomain.Lookup
	Renderer   pdf.Renderer
	Dispatcher *notification.Dispatcher
	AuditSvc   auditdomain.Service `optional:"true"`
	Metrics    *metrics.Metrics    `optional:"true"`
	Clock      clock.Clock         `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	repo           domain.Repository
	authz          authorization.Service
	taxRates       taxdomain.Service
	lookup         directorydomain.Lookup
	renderer       pdf.Renderer
	dispatcher     *notification.Dispatcher
	auditSvc       auditdomain.Service
	metrics        *metrics.Metrics
	clock          clock.Clock
	numberTemplate string
	issuerName     string
	notifyCompany  bool
	timeout        time.Duration

	// async sends the invoice summary on its own goroutine.
	async bool
}

func NewService(p Params) domain.Service {
	return New(p)
}

func New(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	template := strings.TrimSpace(p.Cfg.Invoice.NumberTemplate)
	if template == "" {
		template = format.DefaultInvoiceNumberTemplate
	}
	timeout := p.Cfg.Notification.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("invoice.service"),
		genID:          p.GenID,
		repo:           p.Repo,
		authz:          p.Authz,
		taxRates:       p.TaxRates,
		lookup:         p.Lookup,
		renderer:       p.Renderer,
		dispatcher:     p.Dispatcher,
		auditSvc:       p.AuditSvc,
		metrics:        p.Metrics,
		clock:          clk,
		numberTemplate: template,
		issuerName:     p.Cfg.Invoice.IssuerName,
		notifyCompany:  p.Cfg.Notification.NotifyCompanyOnInvoice,
		timeout:        timeout,
		async:          true,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Invoice, error) {
	var invoice domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.CreateTx(ctx, tx, req)
		if err != nil {
			return err
		}
		invoice = created
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.audit(ctx, auditdomain.ActionInvoiceGenerated, invoice.ID, map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"work_order_id":  invoice.WorkOrderID.String(),
	})
	s.NotifyCreated(ctx, invoice)
	return invoice, nil
}

func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, req domain.CreateRequest) (domain.Invoice, error) {
	if req.WorkOrderID == 0 || req.AdminID == 0 {
		return domain.Invoice{}, domain.ErrInvalidWorkOrder
	}
	if req.EmployeeID != nil && *req.EmployeeID == 0 {
		req.EmployeeID = nil
	}
	if req.CompanyID != nil && *req.CompanyID == 0 {
		req.CompanyID = nil
	}

	existing, err := s.repo.FindByWorkOrder(ctx, tx, req.WorkOrderID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if existing != nil {
		return domain.Invoice{}, domain.ErrInvoiceExists
	}

	rates, err := s.taxRates.SnapshotTx(ctx, tx)
	if err != nil {
		return domain.Invoice{}, err
	}
	breakdown, err := calculator.Calculate(req.BaseAmount, calculator.Rates{
		VAT:         rates.VAT.Rate,
		Withholding: rates.Withholding.Rate,
		StampDuty:   rates.StampDuty.Rate,
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now().UTC()
	seq, err := s.repo.NextSequence(ctx, tx, format.DayKey(now))
	if err != nil {
		return domain.Invoice{}, err
	}
	number, err := format.FormatInvoiceNumber(s.numberTemplate, now, seq)
	if err != nil {
		return domain.Invoice{}, err
	}

	invoice := domain.Invoice{
		ID:                     s.genID.Generate(),
		InvoiceNumber:          number,
		WorkOrderID:            req.WorkOrderID,
		WorkOrderTitle:         strings.TrimSpace(req.WorkOrderTitle),
		CompanyID:              req.CompanyID,
		EmployeeID:             req.EmployeeID,
		DepartmentID:           req.DepartmentID,
		AdminID:                req.AdminID,
		BaseAmount:             breakdown.Base,
		VATAmount:              breakdown.VAT,
		WithholdingAmount:      breakdown.Withholding,
		StampDutyAmount:        breakdown.StampDuty,
		TaxAmount:              breakdown.Tax,
		TotalAmount:            breakdown.Total,
		VATRate:                rates.VAT.Rate,
		VATRateVersion:         rates.VAT.Version,
		WithholdingRate:        rates.Withholding.Rate,
		WithholdingRateVersion: rates.Withholding.Version,
		StampDutyRate:          rates.StampDuty.Rate,
		StampDutyRateVersion:   rates.StampDuty.Version,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Invoice{}, domain.ErrInvoiceExists
		}
		return domain.Invoice{}, err
	}

	s.metrics.RecordInvoiceGenerated(ctx, string(authorization.ActorAdmin))
	obslogger.WithContext(ctx, s.log).Info("invoice generated",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("work_order_id", invoice.WorkOrderID.String()),
	)
	return invoice, nil
}

// NotifyCreated e-mails the amount summary. Delivery problems are logged and audited, never returned.
func (s *Service) NotifyCreated(ctx context.Context, invoice domain.Invoice) {
	if s.dispatcher == nil {
		return
	}
	if !s.async {
		s.notifyCreated(ctx, invoice)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		s.notifyCreated(ctx, invoice)
	}()
}

func (s *Service) notifyCreated(ctx context.Context, invoice domain.Invoice) {
	var recipients []notification.Recipient
	if invoice.EmployeeID != nil {
		if contact := s.contact(ctx, s.lookup.EmployeeContact, *invoice.EmployeeID); contact != nil {
			recipients = append(recipients, notification.Recipient{Role: notification.RoleEmployee, Name: contact.Name, Email: contact.Email})
		}
	}
	if s.notifyCompany && invoice.CompanyID != nil {
		if contact := s.contact(ctx, s.lookup.CompanyContact, *invoice.CompanyID); contact != nil {
			recipients = append(recipients, notification.Recipient{Role: notification.RoleCompany, Name: contact.Name, Email: contact.Email})
		}
	}
	if len(recipients) == 0 {
		return
	}

	report := s.dispatcher.InvoiceCreated(ctx, SummaryMessage(invoice), recipients)
	for _, outcome := range report.Outcomes {
		if outcome.Status != metrics.NotificationOutcomeFailed {
			continue
		}
		s.audit(ctx, auditdomain.ActionInvoiceNotificationFailed, invoice.ID, map[string]any{
			"role":  string(outcome.Role),
			"error": outcome.Error,
		})
	}
}

func (s *Service) contact(ctx context.Context, find func(context.Context, snowflake.ID) (*directorydomain.Contact, error), id snowflake.ID) *directorydomain.Contact {
	contact, err := find(ctx, id)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("failed to resolve invoice recipient", zap.String("recipient_id", id.String()), zap.Error(err))
		return nil
	}
	return contact
}

// SummaryMessage is the template data describing an invoice.
func SummaryMessage(invoice domain.Invoice) notification.Message {
	return notification.Message{
		WorkOrderID:       invoice.WorkOrderID.String(),
		Title:             invoice.WorkOrderTitle,
		InvoiceNumber:     invoice.InvoiceNumber,
		BaseAmount:        invoice.BaseAmount.StringFixed(2),
		VATAmount:         invoice.VATAmount.StringFixed(2),
		WithholdingAmount: invoice.WithholdingAmount.StringFixed(2),
		StampDutyAmount:   invoice.StampDutyAmount.StringFixed(2),
		TaxAmount:         invoice.TaxAmount.StringFixed(2),
		TotalAmount:       invoice.TotalAmount.StringFixed(2),
		IssueDate:         invoice.CreatedAt.UTC().Format(issueDateLayout),
	}
}

func (s *Service) List(ctx context.Context, actor authorization.Actor, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ActionInvoiceView, authorization.Collection()); err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	filter := domain.ListFilter{
		WorkOrderID: req.WorkOrderID,
		Paid:        req.Paid,
	}
	switch actor.Kind {
	case authorization.ActorCompany:
		filter.CompanyID = &actor.ID
	case authorization.ActorEmployee:
		filter.EmployeeID = &actor.ID
	case authorization.ActorAdmin:
		if s.authz.IsAllDepartmentAdmin(actor) {
			filter.DepartmentID = req.DepartmentID
		} else {
			departmentID := actor.DepartmentID
			filter.DepartmentID = &departmentID
		}
	default:
		return domain.ListInvoiceResponse{}, authorization.ErrForbidden
	}

	position, err := pagination.ParsePosition(req.PageToken)
	if err != nil {
		return domain.ListInvoiceResponse{}, domain.ErrInvalidPageToken
	}
	if position != nil {
		filter.Cursor = &domain.Cursor{ID: position.ID, CreatedAt: position.CreatedAt}
	}
	filter.Limit = pagination.Limit(req.PageSize)

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	invoices, pageInfo := pagination.Page(items, filter.Limit, func(inv *domain.Invoice) (snowflake.ID, time.Time) {
		return inv.ID, inv.CreatedAt
	})
	return domain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

func (s *Service) Get(ctx context.Context, actor authorization.Actor, id snowflake.ID) (domain.Invoice, error) {
	return s.authorized(ctx, actor, authorization.ActionInvoiceView, id)
}

func (s *Service) MarkPaid(ctx context.Context, actor authorization.Actor, id snowflake.ID, paid bool) (domain.Invoice, error) {
	invoice, err := s.authorized(ctx, actor, authorization.ActionInvoiceUpdatePayment, id)
	if err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now().UTC()
	invoice.PaymentPaid = paid
	invoice.PaidAt = nil
	if paid {
		invoice.PaidAt = &now
	}
	invoice.UpdatedAt = now
	if err := s.repo.UpdatePayment(ctx, s.db, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	s.audit(ctx, auditdomain.ActionInvoicePaymentUpdated, invoice.ID, map[string]any{
		"payment_paid": paid,
		"actor_kind":   string(actor.Kind),
		"actor_id":     actor.IDString(),
	})
	return invoice, nil
}

func (s *Service) Download(ctx context.Context, actor authorization.Actor, id snowflake.ID) ([]byte, domain.Invoice, error) {
	invoice, err := s.authorized(ctx, actor, authorization.ActionInvoiceDownload, id)
	if err != nil {
		return nil, domain.Invoice{}, err
	}
	doc, err := s.Render(ctx, invoice)
	if err != nil {
		return nil, domain.Invoice{}, err
	}
	return doc, invoice, nil
}

func (s *Service) Render(ctx context.Context, invoice domain.Invoice) ([]byte, error) {
	doc := pdf.InvoiceDocument{
		IssuerName:        s.issuerName,
		InvoiceNumber:     invoice.InvoiceNumber,
		IssueDate:         invoice.CreatedAt.UTC().Format(issueDateLayout),
		WorkOrderID:       invoice.WorkOrderID.String(),
		WorkTitle:         invoice.WorkOrderTitle,
		BaseAmount:        invoice.BaseAmount.StringFixed(2),
		VATRate:           invoice.VATRate.String(),
		VATAmount:         invoice.VATAmount.StringFixed(2),
		WithholdingRate:   invoice.WithholdingRate.String(),
		WithholdingAmount: invoice.WithholdingAmount.StringFixed(2),
		StampDutyRate:     invoice.StampDutyRate.String(),
		StampDutyAmount:   invoice.StampDutyAmount.StringFixed(2),
		TaxAmount:         invoice.TaxAmount.StringFixed(2),
		TotalAmount:       invoice.TotalAmount.StringFixed(2),
		Paid:              invoice.PaymentPaid,
	}
	if invoice.PaidAt != nil {
		doc.PaidAt = invoice.PaidAt.UTC().Format(issueDateLayout)
	}
	if invoice.CompanyID != nil {
		if contact := s.contact(ctx, s.lookup.CompanyContact, *invoice.CompanyID); contact != nil {
			doc.CompanyName, doc.CompanyEmail = contact.Name, contact.Email
		}
	}
	if invoice.EmployeeID != nil {
		if contact := s.contact(ctx, s.lookup.EmployeeContact, *invoice.EmployeeID); contact != nil {
			doc.EmployeeName, doc.EmployeeEmail = contact.Name, contact.Email
		}
	}
	return s.renderer.RenderInvoice(ctx, doc)
}

func (s *Service) authorized(ctx context.Context, actor authorization.Actor, action string, id snowflake.ID) (domain.Invoice, error) {
	if id == 0 {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	resource := authorization.Owned(invoice.DepartmentID, invoice.CompanyID, invoice.EmployeeID)
	if err := s.authz.Authorize(ctx, actor, action, resource); err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) audit(ctx context.Context, action string, invoiceID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := invoiceID.String()
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, "invoice", &targetID, metadata); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("failed to audit invoice event", zap.String("action", action), zap.Error(err))
	}
}

var _ domain.Service = (*Service)(nil)

