// Package domain holds the read-only reference entities the compliance core
// consumes: operators, operations, and submitted-report emissions data.
// Registration and editing of these rows happens in a separate subsystem.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Address struct {
	Street     string `gorm:"type:text"`
	City       string `gorm:"type:text"`
	Province   string `gorm:"type:text"`
	PostalCode string `gorm:"type:text"`
}

func (a Address) IsZero() bool {
	return a.Street == "" && a.City == "" && a.Province == "" && a.PostalCode == ""
}

// Operator is the legal entity billed for compliance obligations.
type Operator struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	LegalName      string       `gorm:"type:text;not null"`
	TradeName      string       `gorm:"type:text"`
	RegistryNumber string       `gorm:"type:text"`
	ContactEmail   string       `gorm:"type:text"`
	PhysicalStreet     string   `gorm:"type:text"`
	PhysicalCity       string   `gorm:"type:text"`
	PhysicalProvince   string   `gorm:"type:text"`
	PhysicalPostalCode string   `gorm:"type:text"`
	MailingStreet      string   `gorm:"type:text"`
	MailingCity        string   `gorm:"type:text"`
	MailingProvince    string   `gorm:"type:text"`
	MailingPostalCode  string   `gorm:"type:text"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Operator) TableName() string { return "operators" }

func (o Operator) PhysicalAddress() Address {
	return Address{Street: o.PhysicalStreet, City: o.PhysicalCity, Province: o.PhysicalProvince, PostalCode: o.PhysicalPostalCode}
}

func (o Operator) MailingAddress() Address {
	return Address{Street: o.MailingStreet, City: o.MailingCity, Province: o.MailingProvince, PostalCode: o.MailingPostalCode}
}

// Operation is a regulated industrial facility. An operation without a BORO
// id cannot receive a compliance obligation.
type Operation struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OperatorID snowflake.ID `gorm:"not null;index"`
	Name       string       `gorm:"type:text;not null"`
	BoroID     *string      `gorm:"type:text;uniqueIndex"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Operation) TableName() string { return "operations" }

// CalculatedComplianceData is the reporting subsystem's ground-truth output
// for a submitted report version. The compliance core never recomputes
// emissions itself.
type CalculatedComplianceData struct {
	ExcessEmissions                   decimal.Decimal
	CreditedEmissions                 decimal.Decimal
	EmissionsAttributableForReporting decimal.Decimal
	EmissionsLimit                    decimal.Decimal
	ReductionFactor                   decimal.Decimal
	TighteningRate                    decimal.Decimal
}
