// Package domain models compliance obligations: the financial liability
// created when a report version shows excess emissions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PenaltyStatus tracks the automatic overdue penalty lifecycle for an
// obligation.
type PenaltyStatus string

const (
	PenaltyNone    PenaltyStatus = "NONE"
	PenaltyNotPaid PenaltyStatus = "NOT_PAID"
	PenaltyAccruing PenaltyStatus = "ACCRUING"
	PenaltyPaid    PenaltyStatus = "PAID"
)

type ComplianceObligation struct {
	ID snowflake.ID `gorm:"primaryKey"`
	// One obligation per report version, enforced by the unique index; a
	// second factory invocation for the same version fails the insert and
	// is treated as a no-op.
	ComplianceReportVersionID snowflake.ID `gorm:"not null;uniqueIndex"`
	OperatorID                snowflake.ID `gorm:"not null;index"`
	// ObligationID is the human-readable composite key
	// "{boroID}-{reportID}-{versionNumber}".
	ObligationID       string          `gorm:"type:text;not null;uniqueIndex"`
	ReportingYear      int             `gorm:"not null"`
	FeeAmountDollars   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	FeeDate            time.Time       `gorm:"not null"`
	ObligationDeadline time.Time       `gorm:"not null"`
	PenaltyStatus      PenaltyStatus   `gorm:"type:text;not null;default:'NONE'"`

	// Set once the eLicensing invoice exists and is mirrored locally.
	ElicensingInvoiceID *snowflake.ID `gorm:"uniqueIndex"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ComplianceObligation) TableName() string { return "compliance_obligations" }
