// Package notification composes workflow e-mails from the configured templates and delivers them.
package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/smallbiznis/workdesk/internal/config"
	"github.com/smallbiznis/workdesk/internal/observability/metrics"
	"github.com/smallbiznis/workdesk/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Kind string

const (
	KindWorkCompleted  Kind = "work_completed"
	KindWorkUpdated    Kind = "work_updated"
	KindWorkDeclined   Kind = "work_declined"
	KindInvoiceCreated Kind = "invoice_created"
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleCompany  Role = "company"
)

const DefaultAttachmentName = "Invoice.pdf"

var ErrTemplate = errors.New("notification_template_invalid")

type Recipient struct {
	Role  Role
	Name  string
	Email string
}

// Outcome is the delivery result for one recipient.
type Outcome struct {
	Role      Role   `json:"role"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	Kind     Kind      `json:"kind"`
	Outcomes []Outcome `json:"outcomes"`
}

func (r Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == metrics.NotificationOutcomeFailed {
			return true
		}
	}
	return false
}

// Message is the template data shared by every notification kind.
type Message struct {
	RecipientName string
	WorkOrderID   string
	Title         string
	Message       string

	InvoiceNumber     string
	BaseAmount        string
	VATAmount         string
	WithholdingAmount string
	StampDutyAmount   string
	TaxAmount         string
	TotalAmount       string
	IssueDate         string
}

type Attachment struct {
	Filename string
	Content  []byte
}

type Params struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	Provider  email.Provider
	Templates *config.TemplateHolder
	Workflow  *metrics.WorkflowMetrics `optional:"true"`
	Metrics   *metrics.Metrics         `optional:"true"`
}

type Dispatcher struct {
	log       *zap.Logger
	provider  email.Provider
	templates *config.TemplateHolder
	workflow  *metrics.WorkflowMetrics
	metrics   *metrics.Metrics
	timeout   time.Duration
}

func NewDispatcher(p Params) *Dispatcher {
	timeout := p.Cfg.Notification.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		log:       p.Log.Named("notification.dispatcher"),
		provider:  p.Provider,
		templates: p.Templates,
		workflow:  p.Workflow,
		metrics:   p.Metrics,
		timeout:   timeout,
	}
}

// WorkCompleted sends the completion mail with the invoice attached to every recipient.
func (d *Dispatcher) WorkCompleted(ctx context.Context, msg Message, recipients []Recipient, attachment *Attachment) Report {
	tmpls := d.templates.Get()
	return d.dispatch(ctx, KindWorkCompleted, msg, recipients, attachment, func(r Recipient) config.MessageTemplate {
		if r.Role == RoleCompany {
			return tmpls.WorkCompletedCompany
		}
		return tmpls.WorkCompletedEmployee
	})
}

func (d *Dispatcher) WorkUpdated(ctx context.Context, msg Message, recipient Recipient) Report {
	tmpl := d.templates.Get().WorkUpdated
	return d.dispatch(ctx, KindWorkUpdated, msg, []Recipient{recipient}, nil, func(Recipient) config.MessageTemplate { return tmpl })
}

func (d *Dispatcher) WorkDeclined(ctx context.Context, msg Message, recipient Recipient) Report {
	tmpl := d.templates.Get().WorkDeclined
	return d.dispatch(ctx, KindWorkDeclined, msg, []Recipient{recipient}, nil, func(Recipient) config.MessageTemplate { return tmpl })
}

func (d *Dispatcher) InvoiceCreated(ctx context.Context, msg Message, recipients []Recipient) Report {
	tmpl := d.templates.Get().InvoiceCreated
	return d.dispatch(ctx, KindInvoiceCreated, msg, recipients, nil, func(Recipient) config.MessageTemplate { return tmpl })
}

func (d *Dispatcher) dispatch(ctx context.Context, kind Kind, msg Message, recipients []Recipient, attachment *Attachment, pick func(Recipient) config.MessageTemplate) Report {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	report := Report{Kind: kind, Outcomes: make([]Outcome, 0, len(recipients))}
	for _, recipient := range recipients {
		outcome := Outcome{Role: recipient.Role, Recipient: recipient.Email}

		if strings.TrimSpace(recipient.Email) == "" {
			outcome.Status = metrics.NotificationOutcomeSkipped
			report.Outcomes = append(report.Outcomes, outcome)
			d.record(ctx, kind, outcome.Status)
			continue
		}

		data := msg
		data.RecipientName = recipient.Name
		subject, body, err := render(pick(recipient), data)
		if err == nil {
			if attachment != nil {
				err = d.provider.SendWithAttachment(ctx, recipient.Email, subject, body, attachment.Content, attachment.Filename)
			} else {
				err = d.provider.Send(ctx, recipient.Email, subject, body)
			}
		}

		if err != nil {
			outcome.Status = metrics.NotificationOutcomeFailed
			outcome.Error = errorCode(err)
			d.log.Warn("notification delivery failed",
				zap.String("kind", string(kind)),
				zap.String("role", string(recipient.Role)),
				zap.String("work_order_id", msg.WorkOrderID),
				zap.Error(err),
			)
		} else {
			outcome.Status = metrics.NotificationOutcomeSent
		}
		d.record(ctx, kind, outcome.Status)
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report
}

func (d *Dispatcher) record(ctx context.Context, kind Kind, outcome string) {
	d.workflow.IncNotification(string(kind), outcome)
	d.metrics.RecordNotification(ctx, string(kind), outcome)
}

func render(tmpl config.MessageTemplate, data Message) (string, string, error) {
	subject, err := execute("subject", tmpl.Subject, data)
	if err != nil {
		return "", "", err
	}
	body, err := execute("body", tmpl.Body, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func execute(name, text string, data Message) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: %s template: %v", ErrTemplate, name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %s template: %v", ErrTemplate, name, err)
	}
	return buf.String(), nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, email.ErrInvalidAddress):
		return email.ErrInvalidAddress.Error()
	case errors.Is(err, ErrTemplate):
		return ErrTemplate.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return email.ErrDelivery.Error()
	}
}
