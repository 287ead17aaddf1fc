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

type PenaltyNoticeData struct {
	OperatorName  string
	ObligationID  string
	InvoiceNumber string
	GeneratedAt   string

	PenaltyAmount    string
	AccrualStartDate string
	AccrualEndDate   string
	AccrualDays      string
	FeeAmount        string
	PaymentDueDate   string
}

func (p *PDFProvider) GeneratePenaltyNotice(ctx context.Context, data PenaltyNoticeData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Automatic Overdue Penalty Notice", props.Text{
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
		),
		col.New(6).Add(
			text.New("Penalty invoice: "+data.InvoiceNumber, props.Text{Align: align.Right}),
			text.New("Notice date: "+data.GeneratedAt, props.Text{Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, data.PenaltyAmount+" due "+data.PaymentDueDate, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Detail", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(6, "Value", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	details := []struct{ label, value string }{
		{"Obligation fee", data.FeeAmount},
		{"Accrual start", data.AccrualStartDate},
		{"Accrual end", data.AccrualEndDate},
		{"Days accrued", data.AccrualDays},
		{"Penalty amount", data.PenaltyAmount},
	}
	for _, d := range details {
		m.AddRow(8,
			text.NewCol(6, d.label, props.Text{Size: 9}),
			text.NewCol(6, d.value, props.Text{Size: 9, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
