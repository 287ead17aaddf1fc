// Package domain mirrors eLicensing billing state locally. The mirror is a
// cache, not a source of truth: it is only ever overwritten wholesale by the
// refresh service, never recomputed locally.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceRole distinguishes the obligation invoice from a penalty invoice
// for the same obligation.
type InvoiceRole string

const (
	RoleObligation InvoiceRole = "OBLIGATION"
	RolePenalty    InvoiceRole = "PENALTY"
)

type ElicensingInvoice struct {
	ID                        snowflake.ID    `gorm:"primaryKey"`
	InvoiceNumber             string          `gorm:"type:text;not null;uniqueIndex"`
	ElicensingClientOperatorID snowflake.ID   `gorm:"not null;index"`
	Role                      InvoiceRole     `gorm:"type:text;not null;default:'OBLIGATION'"`
	DueDate                   time.Time       `gorm:"not null"`
	OutstandingBalance        decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	InvoiceFeeBalance         decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	InvoiceInterestBalance    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	IsVoid                    bool            `gorm:"not null;default:false"`
	LastRefreshed             time.Time       `gorm:"not null"`
	CreatedAt                 time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ElicensingInvoice) TableName() string { return "elicensing_invoices" }

// Fresh reports whether the mirror can be served without re-querying
// eLicensing. Void invoices never change again and are always fresh.
func (i ElicensingInvoice) Fresh(now time.Time, window time.Duration) bool {
	if i.IsVoid {
		return true
	}
	return now.Sub(i.LastRefreshed) < window
}

type ElicensingLineItem struct {
	ID                  snowflake.ID    `gorm:"primaryKey"`
	ElicensingInvoiceID snowflake.ID    `gorm:"not null;index"`
	ObjectID            string          `gorm:"type:text;not null"`
	LineItemType        string          `gorm:"type:text;not null"`
	FeeDate             time.Time       `gorm:"not null"`
	BaseAmount          decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Description         string          `gorm:"type:text"`
}

func (ElicensingLineItem) TableName() string { return "elicensing_line_items" }

// Payment transaction types. Payment adjustments from eLicensing are
// normalized into payment rows distinguished by this tag.
const (
	TransactionTypePayment           = "PAYMENT"
	TransactionTypePaymentAdjustment = "PAYMENT_ADJUSTMENT"
)

type ElicensingPayment struct {
	ID                   snowflake.ID    `gorm:"primaryKey"`
	ElicensingLineItemID snowflake.ID    `gorm:"not null;index"`
	PaymentObjectID      string          `gorm:"type:text;not null"`
	TransactionType      string          `gorm:"type:text;not null"`
	Amount               decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	ReceivedDate         time.Time       `gorm:"not null"`
	Method               string          `gorm:"type:text"`
	ReceiptNumber        string          `gorm:"type:text"`
}

func (ElicensingPayment) TableName() string { return "elicensing_payments" }

type ElicensingAdjustment struct {
	ID                   snowflake.ID    `gorm:"primaryKey"`
	ElicensingLineItemID snowflake.ID    `gorm:"not null;index"`
	AdjustmentObjectID   string          `gorm:"type:text;not null"`
	Amount               decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	AdjustmentDate       time.Time       `gorm:"not null"`
	Reason               string          `gorm:"type:text"`
	Type                 string          `gorm:"type:text"`
}

func (ElicensingAdjustment) TableName() string { return "elicensing_adjustments" }

// ElicensingInterestRate is an interest-rate period used for penalty
// accrual. Periods must not overlap and at most one row may be current;
// both are enforced at save time, not only by the database.
type ElicensingInterestRate struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	InterestRate  decimal.Decimal `gorm:"type:numeric(10,6);not null"`
	StartDate     time.Time       `gorm:"not null"`
	EndDate       time.Time       `gorm:"not null"`
	IsCurrentRate bool            `gorm:"not null;default:false"`
}

func (ElicensingInterestRate) TableName() string { return "elicensing_interest_rates" }

// Covers reports whether the period contains date, boundaries inclusive.
func (r ElicensingInterestRate) Covers(date time.Time) bool {
	return !date.Before(r.StartDate) && !date.After(r.EndDate)
}
