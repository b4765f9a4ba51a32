package email

import (
	"context"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	valid := []string{"ana@corp.io", "first.last-1@mail.example.com", "a_b@x-y.org"}
	for _, addr := range valid {
		assert.NoError(t, ValidateAddress(addr), addr)
	}

	invalid := []string{"", " ana@corp.io", "ana", "ana@corp", "Ana <ana@corp.io>", "ana@corp.toolongtld", "ana@@corp.io"}
	for _, addr := range invalid {
		assert.ErrorIs(t, ValidateAddress(addr), ErrInvalidAddress, addr)
	}
}

func TestSMTPRejectsMalformedRecipientBeforeDialing(t *testing.T) {
	p := NewSMTP(Config{Host: "127.0.0.1", Port: 1, From: "noreply@workdesk.io"})
	ctx := context.Background()

	assert.ErrorIs(t, p.Send(ctx, "not-an-address", "s", "b"), ErrInvalidAddress)
	assert.ErrorIs(t, p.SendWithAttachment(ctx, "not-an-address", "s", "b", []byte("%PDF"), "Invoice.pdf"), ErrInvalidAddress)
}

func TestNoOpRejectsMalformedRecipient(t *testing.T) {
	p := &NoOpProvider{}
	assert.ErrorIs(t, p.Send(context.Background(), "bad", "s", "b"), ErrInvalidAddress)
	assert.NoError(t, p.SendWithAttachment(context.Background(), "ok@corp.io", "s", "b", nil, "x.pdf"))
}

func TestComposeWithAttachmentIsMultipart(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.workdesk.io", From: "noreply@workdesk.io"})
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	raw, err := p.compose("ana@corp.io", "Work Completed and Invoice Generated", "Hello", []byte("%PDF-1.4"), "Invoice.pdf")
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "ana@corp.io", msg.Header.Get("To"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(msg.Body, params["boundary"])
	text, err := reader.NextPart()
	require.NoError(t, err)
	assert.Contains(t, text.Header.Get("Content-Type"), "text/plain")

	file, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "Invoice.pdf", file.FileName())
	assert.Equal(t, "application/pdf", file.Header.Get("Content-Type"))
}
