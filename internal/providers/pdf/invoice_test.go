package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderInvoiceProducesPDF(t *testing.T) {
	out, err := New().RenderInvoice(context.Background(), InvoiceDocument{
		IssuerName:    "Workdesk",
		InvoiceNumber: "INV-20260102-000001",
		IssueDate:     "2026-01-02",
		WorkOrderID:   "42",
		CompanyName:   "Acme",
		BaseAmount:    "1000.00",
		VATRate:       "20",
		VATAmount:     "200.00",
		TaxAmount:     "200.00",
		TotalAmount:   "1200.00",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderInvoiceRequiresNumber(t *testing.T) {
	_, err := New().RenderInvoice(context.Background(), InvoiceDocument{})
	assert.ErrorIs(t, err, ErrRender)
}
