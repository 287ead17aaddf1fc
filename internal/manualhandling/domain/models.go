// Package domain models manual-handling records: the human-review handoff
// for outcomes the reconciliation engine cannot auto-resolve, like cash
// refunds or revising previously approved credits. Analyst and director
// own disjoint fields; once a director resolves the issue, analyst edits
// are rejected to prevent lost updates between the two roles.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type HandlingType string

const (
	HandlingObligation    HandlingType = "OBLIGATION"
	HandlingEarnedCredits HandlingType = "EARNED_CREDITS"
)

// HandlingContext is the reason a record exists.
type HandlingContext string

const (
	ContextObligationRefundPoolCash        HandlingContext = "OBLIGATION_REFUND_POOL_CASH"
	ContextEarnedCreditsPreviouslyApproved HandlingContext = "EARNED_CREDITS_PREVIOUSLY_APPROVED"
)

type DirectorDecision string

const (
	DecisionPendingManualHandling DirectorDecision = "PENDING_MANUAL_HANDLING"
	DecisionIssueResolved         DirectorDecision = "ISSUE_RESOLVED"
)

type ComplianceReportVersionManualHandling struct {
	ID                        snowflake.ID    `gorm:"primaryKey"`
	ComplianceReportVersionID snowflake.ID    `gorm:"not null;uniqueIndex"`
	HandlingType              HandlingType    `gorm:"type:text;not null"`
	Context                   HandlingContext `gorm:"type:text;not null"`

	AnalystComment string     `gorm:"type:text"`
	AnalystName    string     `gorm:"type:text"`
	AnalystDate    *time.Time

	DirectorDecision DirectorDecision `gorm:"type:text;not null;default:'PENDING_MANUAL_HANDLING'"`
	DirectorComment  string           `gorm:"type:text"`
	DirectorName     string           `gorm:"type:text"`
	DirectorDate     *time.Time

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ComplianceReportVersionManualHandling) TableName() string {
	return "compliance_report_version_manual_handlings"
}
