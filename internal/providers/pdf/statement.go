package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// StatementItem is one dated transaction on the statement. Amounts are
// preformatted strings: fees positive, payments negative, fee adjustments
// signed as received from eLicensing.
type StatementItem struct {
	Date         string
	Description  string
	Type         string
	Amount       string
	RunningTotal string
}

type StatementData struct {
	OperatorName  string
	ObligationID  string
	ReportingYear string
	InvoiceNumber string
	GeneratedAt   string
	DueDate       string

	Items []StatementItem

	FeeTotal           string
	PaymentsTotal      string
	AdjustmentsTotal   string
	OutstandingBalance string
}

func (p *PDFProvider) GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Statement of Account", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, "B.C. Output-Based Pricing System", props.Text{Size: 10}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New(data.OperatorName, props.Text{Style: fontstyle.Bold}),
			text.New("Obligation ID: "+data.ObligationID, props.Text{Top: 5}),
			text.New("Reporting year: "+data.ReportingYear, props.Text{Top: 9}),
		),
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Align: align.Right}),
			text.New("Statement date: "+data.GeneratedAt, props.Text{Top: 5, Align: align.Right}),
			text.New("Payment due: "+data.DueDate, props.Text{Top: 9, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(2, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Type", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Balance", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range data.Items {
		m.AddRow(8,
			text.NewCol(2, item.Date, props.Text{Size: 9}),
			text.NewCol(4, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.Type, props.Text{Size: 9}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.RunningTotal, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Fees", props.Text{Size: 9}),
		text.NewCol(2, data.FeeTotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Payments", props.Text{Size: 9}),
		text.NewCol(2, data.PaymentsTotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Adjustments", props.Text{Size: 9}),
		text.NewCol(2, data.AdjustmentsTotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Amount owing", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.OutstandingBalance, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
