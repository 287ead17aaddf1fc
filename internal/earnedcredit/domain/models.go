// Package domain models earned credits: tonnage owed to an operator whose
// emissions came in under their limit, eligible for issuance in the BC
// Carbon Registry.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// IssuanceStatus is the earned-credit issuance state machine. The operator
// requests issuance; submitting for approval requires the CAS analyst
// capability, approve/decline the CAS director capability. CHANGES_REQUIRED
// loops back through a fresh issuance request.
type IssuanceStatus string

const (
	StatusCreditsNotIssued  IssuanceStatus = "CREDITS_NOT_ISSUED"
	StatusIssuanceRequested IssuanceStatus = "ISSUANCE_REQUESTED"
	StatusAwaitingApproval  IssuanceStatus = "AWAITING_APPROVAL"
	StatusApproved          IssuanceStatus = "APPROVED"
	StatusCreditsIssued     IssuanceStatus = "CREDITS_ISSUED"
	StatusChangesRequired   IssuanceStatus = "CHANGES_REQUIRED"
	StatusDeclined          IssuanceStatus = "DECLINED"
)

type ComplianceEarnedCredit struct {
	ID                        snowflake.ID `gorm:"primaryKey"`
	ComplianceReportVersionID snowflake.ID `gorm:"not null;uniqueIndex"`
	// EarnedCreditsAmount is whole tonnes; fractional credited emissions
	// are floored at creation and never issued.
	EarnedCreditsAmount int64          `gorm:"not null"`
	IssuanceStatus      IssuanceStatus `gorm:"type:text;not null;default:'CREDITS_NOT_ISSUED'"`

	// BCCRTradingName is the registry account the credits will be issued
	// under, captured when the operator requests issuance.
	BCCRTradingName string `gorm:"type:text"`

	AnalystComment string     `gorm:"type:text"`
	AnalystName    string     `gorm:"type:text"`
	DirectorComment string    `gorm:"type:text"`
	IssuedDate     *time.Time
	IssuedBy       string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ComplianceEarnedCredit) TableName() string { return "compliance_earned_credits" }
