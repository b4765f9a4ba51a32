package notification

import (
	"context"
	"sync"
	"testing"

	"github.com/smallbiznis/workdesk/internal/config"
	"github.com/smallbiznis/workdesk/internal/observability/metrics"
	"github.com/smallbiznis/workdesk/internal/providers/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMail struct {
	to         string
	subject    string
	body       string
	attachment string
}

type recordingProvider struct {
	mu   sync.Mutex
	sent []sentMail
}

func (p *recordingProvider) Send(ctx context.Context, to, subject, body string) error {
	if err := email.ValidateAddress(to); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (p *recordingProvider) SendWithAttachment(ctx context.Context, to, subject, body string, attachment []byte, filename string) error {
	if err := email.ValidateAddress(to); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMail{to: to, subject: subject, body: body, attachment: filename})
	return nil
}

func newTestDispatcher(provider email.Provider, templates config.NotificationTemplates) *Dispatcher {
	return NewDispatcher(Params{
		Cfg:       config.Config{},
		Log:       zap.NewNop(),
		Provider:  provider,
		Templates: config.NewStaticTemplateHolder(templates),
	})
}

func TestWorkCompletedUsesRoleTemplatesAndAttachment(t *testing.T) {
	provider := &recordingProvider{}
	d := newTestDispatcher(provider, config.DefaultNotificationTemplates())

	report := d.WorkCompleted(context.Background(), Message{WorkOrderID: "10", Title: "Fix boiler"}, []Recipient{
		{Role: RoleEmployee, Name: "Jane", Email: "jane@acme.io"},
		{Role: RoleCompany, Name: "Acme", Email: "ops@acme.io"},
	}, &Attachment{Filename: DefaultAttachmentName, Content: []byte("%PDF")})

	require.Len(t, report.Outcomes, 2)
	assert.False(t, report.Failed())
	require.Len(t, provider.sent, 2)

	assert.Equal(t, "Work Completed and Invoice Generated", provider.sent[0].subject)
	assert.Contains(t, provider.sent[0].body, "Hello Jane,")
	assert.Contains(t, provider.sent[0].body, "'Fix boiler'")
	assert.Equal(t, DefaultAttachmentName, provider.sent[0].attachment)
	assert.NotContains(t, provider.sent[1].body, "Acme,")
}

func TestDispatchReportsInvalidAndMissingRecipients(t *testing.T) {
	provider := &recordingProvider{}
	d := newTestDispatcher(provider, config.DefaultNotificationTemplates())

	report := d.InvoiceCreated(context.Background(), Message{InvoiceNumber: "INV-20260101-000001"}, []Recipient{
		{Role: RoleEmployee, Name: "Jane", Email: "jane@@acme"},
		{Role: RoleCompany, Name: "Acme"},
	})

	require.Len(t, report.Outcomes, 2)
	assert.True(t, report.Failed())
	assert.Equal(t, metrics.NotificationOutcomeFailed, report.Outcomes[0].Status)
	assert.Equal(t, email.ErrInvalidAddress.Error(), report.Outcomes[0].Error)
	assert.Equal(t, metrics.NotificationOutcomeSkipped, report.Outcomes[1].Status)
	assert.Empty(t, provider.sent)
}

func TestDeclinedMessageCarriesReason(t *testing.T) {
	provider := &recordingProvider{}
	d := newTestDispatcher(provider, config.DefaultNotificationTemplates())

	report := d.WorkDeclined(context.Background(), Message{WorkOrderID: "55", Message: "Out of scope"}, Recipient{Role: RoleCompany, Email: "ops@acme.io"})
	assert.False(t, report.Failed())
	require.Len(t, provider.sent, 1)
	assert.Equal(t, "Your Work Request Has Been Declined", provider.sent[0].subject)
	assert.Contains(t, provider.sent[0].body, "ID 55")
	assert.Contains(t, provider.sent[0].body, "Message: Out of scope")
}

func TestBrokenTemplateIsReportedNotPanicked(t *testing.T) {
	templates := config.DefaultNotificationTemplates()
	templates.WorkUpdated.Body = "Hello {{.Nope}}"
	provider := &recordingProvider{}
	d := newTestDispatcher(provider, templates)

	report := d.WorkUpdated(context.Background(), Message{Title: "x"}, Recipient{Role: RoleEmployee, Email: "jane@acme.io"})
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, ErrTemplate.Error(), report.Outcomes[0].Error)
	assert.Empty(t, provider.sent)
}
