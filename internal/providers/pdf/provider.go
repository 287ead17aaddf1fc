// Package pdf renders printable documents for compliance billing: the
// invoice statement an operator downloads, and the notice that accompanies
// an automatic overdue penalty.
package pdf

import (
	"context"
	"io"
)

type Provider interface {
	GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error)
	GeneratePenaltyNotice(ctx context.Context, data PenaltyNoticeData) (io.Reader, error)
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}
