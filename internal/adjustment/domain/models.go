// Package domain models the decreased-obligation reconciliation strategy:
// how a supplementary report's lower obligation nets out against money
// already invoiced across the version chain, oldest invoice first.
package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceAdjustment is one planned external fee adjustment. Applied carries
// a negative sign: dollars removed from the invoice.
type InvoiceAdjustment struct {
	ComplianceReportVersionID snowflake.ID
	InvoiceID                 snowflake.ID
	InvoiceNumber             string
	Applied                   decimal.Decimal
	NetOutstandingAfter       decimal.Decimal
	MarkFullyMet              bool
	// ShouldVoidInvoice only when the adjustment zeroes an invoice that
	// never received cash; an invoice with real payments stays as a paid
	// record.
	ShouldVoidInvoice bool
}

// Strategy is the computed plan plus whatever could not be resolved by
// invoice adjustment alone.
type Strategy struct {
	TotalDecrease decimal.Decimal
	Adjustments   []InvoiceAdjustment

	// Refund pool converted back to tonnes at the current charge rate,
	// plus genuinely new credited tonnes from the latest version.
	EarnedTonnesRefundable decimal.Decimal
	EarnedTonnesCreditable decimal.Decimal

	// ShouldRecordEarnedTonnes hands the outcome to manual handling:
	// refunds and credit revisions need human sign-off.
	ShouldRecordEarnedTonnes bool
}

// Empty reports the common fully-absorbed case: every adjusted dollar landed
// on an outstanding balance with nothing left over. Must not flag manual
// handling.
func (s Strategy) Empty() bool {
	return len(s.Adjustments) == 0 &&
		s.EarnedTonnesRefundable.IsZero() &&
		s.EarnedTonnesCreditable.IsZero() &&
		!s.ShouldRecordEarnedTonnes
}
