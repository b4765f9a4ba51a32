package pdf

import (
	"context"
	"errors"
)

var ErrRender = errors.New("document_render_failed")

// Renderer turns an invoice into a printable document.
type Renderer interface {
	RenderInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error)
}
