// Package domain models automatic overdue penalties. A penalty accrues
// daily interest on the outstanding obligation balance for each day past
// the obligation deadline, using the interest-rate period in effect on that
// day.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CompliancePenalty struct {
	ID snowflake.ID `gorm:"primaryKey"`
	// One penalty per obligation; the unique index is the idempotency
	// guard against double-creation.
	ComplianceObligationID snowflake.ID    `gorm:"not null;uniqueIndex"`
	PenaltyAmountDollars   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	// Accrual window: the day after the obligation deadline through the
	// day the outstanding balance reached zero (or the computation date
	// for a still-unpaid obligation).
	AccrualStartDate time.Time `gorm:"not null"`
	AccrualEndDate   time.Time `gorm:"not null"`
	AccrualDays      int       `gorm:"not null"`

	// Set once the penalty invoice exists in eLicensing and is mirrored.
	ElicensingInvoiceID *snowflake.ID `gorm:"uniqueIndex"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CompliancePenalty) TableName() string { return "compliance_penalties" }
