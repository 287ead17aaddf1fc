// Package domain models compliance periods and charge rates. One period per
// reporting year, created lazily and never mutated afterwards; one charge
// rate per year, configured by an administrator.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CompliancePeriod struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	Year               int          `gorm:"not null;uniqueIndex"`
	StartDate          time.Time    `gorm:"not null"`
	EndDate            time.Time    `gorm:"not null"`
	ComplianceDeadline time.Time    `gorm:"not null"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CompliancePeriod) TableName() string { return "compliance_periods" }

// ComplianceChargeRate is the per-tonne dollar rate for a reporting year.
type ComplianceChargeRate struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	ReportingYear int             `gorm:"not null;uniqueIndex"`
	Rate          decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ComplianceChargeRate) TableName() string { return "compliance_charge_rates" }
