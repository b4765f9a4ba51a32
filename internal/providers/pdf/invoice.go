package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

// InvoiceDocument is the pre-formatted view of an invoice; amounts are already rendered strings.
type InvoiceDocument struct {
	IssuerName    string
	InvoiceNumber string
	IssueDate     string
	WorkOrderID   string
	WorkTitle     string

	CompanyName   string
	CompanyEmail  string
	EmployeeName  string
	EmployeeEmail string

	BaseAmount        string
	VATRate           string
	VATAmount         string
	WithholdingRate   string
	WithholdingAmount string
	StampDutyRate     string
	StampDutyAmount   string
	TaxAmount         string
	TotalAmount       string

	Paid   bool
	PaidAt string
}

type MarotoRenderer struct{}

func New() Renderer {
	return &MarotoRenderer{}
}

func (r *MarotoRenderer) RenderInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc.InvoiceNumber == "" {
		return nil, fmt.Errorf("%w: missing invoice number", ErrRender)
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, doc.IssuerName, props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, "INVOICE", props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Right}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+doc.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+doc.IssueDate, props.Text{Top: 5}),
			text.New("Work order: "+doc.WorkOrderID, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New(doc.WorkTitle, props.Text{Style: fontstyle.Italic, Align: align.Right}),
		),
	)

	m.AddRow(28,
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(doc.CompanyName, props.Text{Top: 5}),
			text.New(doc.CompanyEmail, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Requested by", props.Text{Style: fontstyle.Bold}),
			text.New(orDash(doc.EmployeeName), props.Text{Top: 5}),
			text.New(doc.EmployeeEmail, props.Text{Top: 10}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Rate", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	lines := []struct {
		label  string
		rate   string
		amount string
	}{
		{"Base amount", "", doc.BaseAmount},
		{"VAT", percent(doc.VATRate), doc.VATAmount},
		{"Withholding tax", percent(doc.WithholdingRate), doc.WithholdingAmount},
		{"Stamp duty", percent(doc.StampDutyRate), doc.StampDutyAmount},
	}
	for _, line := range lines {
		m.AddRow(8,
			text.NewCol(6, line.label, props.Text{Size: 9}),
			text.NewCol(3, line.rate, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, line.amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(8,
		col.New(6),
		text.NewCol(3, "Tax", props.Text{Size: 9}),
		text.NewCol(3, doc.TaxAmount, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(6),
		text.NewCol(3, "Total", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(3, doc.TotalAmount, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
	)

	status := "Payment status: unpaid"
	if doc.Paid {
		status = "Payment status: paid"
		if doc.PaidAt != "" {
			status += " on " + doc.PaidAt
		}
	}
	m.AddRow(12,
		text.NewCol(12, status, props.Text{Size: 9, Top: 4}),
	)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return out.GetBytes(), nil
}

func percent(rate string) string {
	if rate == "" {
		return ""
	}
	return rate + "%"
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
