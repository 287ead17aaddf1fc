package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// CreatePenalty computes and records the overdue penalty for an
	// obligation past its deadline with an outstanding balance, then queues
	// the penalty invoice through the eLicensing integration path.
	// Idempotent: an obligation with an existing penalty is left untouched.
	CreatePenalty(ctx context.Context, obligationID snowflake.ID) (CompliancePenalty, error)

	GetByObligationID(ctx context.Context, obligationID snowflake.ID) (CompliancePenalty, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, penalty *CompliancePenalty) error
	FindByObligationID(ctx context.Context, db *gorm.DB, obligationID snowflake.ID) (*CompliancePenalty, error)
	LinkInvoice(ctx context.Context, db *gorm.DB, penaltyID, invoiceID snowflake.ID) error
}

var (
	ErrPenaltyNotFound = errors.New("penalty_not_found")
	// ErrNoRateForDate means an accrual day falls outside every configured
	// interest-rate period. A configuration gap, never retried.
	ErrNoRateForDate = errors.New("no_interest_rate_for_date")
	ErrNotOverdue    = errors.New("obligation_not_overdue")
)
