// Package domain models compliance report versions, the anchor entity of the
// compliance core. Supplementary submissions form a chain through
// previous_version_id; each version resolves to exactly one of an obligation,
// an earned credit, or neither.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ComplianceStatus is the derived compliance outcome of a report version.
type ComplianceStatus string

const (
	StatusNoObligationOrEarnedCredits     ComplianceStatus = "NO_OBLIGATION_OR_EARNED_CREDITS"
	StatusObligationPendingInvoiceCreation ComplianceStatus = "OBLIGATION_PENDING_INVOICE_CREATION"
	StatusObligationNotMet                ComplianceStatus = "OBLIGATION_NOT_MET"
	StatusObligationAccruingPenalty       ComplianceStatus = "OBLIGATION_ACCRUING_PENALTY"
	StatusObligationFullyMet              ComplianceStatus = "OBLIGATION_FULLY_MET"
	StatusEarnedCredits                   ComplianceStatus = "EARNED_CREDITS"
)

type ComplianceReportVersion struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	ReportID    snowflake.ID `gorm:"not null;index"`
	OperationID snowflake.ID `gorm:"not null;index"`
	// VersionNumber is 1 for the initial submission and increments per
	// supplementary report.
	VersionNumber int              `gorm:"not null"`
	ReportingYear int              `gorm:"not null"`
	Status        ComplianceStatus `gorm:"type:text;not null"`

	// Ground-truth emissions from the reporting subsystem, in tonnes.
	ExcessEmissions   decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	CreditedEmissions decimal.Decimal `gorm:"type:numeric(20,4);not null"`

	// Deltas against the previous version; zero for initial submissions.
	ExcessEmissionsDelta   decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	CreditedEmissionsDelta decimal.Decimal `gorm:"type:numeric(20,4);not null"`

	IsSupplementary        bool          `gorm:"not null;default:false"`
	RequiresManualHandling bool          `gorm:"not null;default:false"`
	PreviousVersionID      *snowflake.ID `gorm:"index"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ComplianceReportVersion) TableName() string { return "compliance_report_versions" }
