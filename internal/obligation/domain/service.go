package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Outcome reports what the factory resolved a report version into.
type Outcome string

const (
	OutcomeObligation   Outcome = "OBLIGATION"
	OutcomeEarnedCredit Outcome = "EARNED_CREDITS"
	OutcomeNone         Outcome = "NO_OBLIGATION_OR_EARNED_CREDITS"
)

type Service interface {
	// CreateForReportVersion resolves a freshly submitted report version
	// into exactly one of {obligation, earned credit, neither}. Re-invoking
	// for an already-resolved version is a no-op.
	CreateForReportVersion(ctx context.Context, versionID snowflake.ID) (Outcome, error)

	GetByID(ctx context.Context, id snowflake.ID) (ComplianceObligation, error)
	GetByReportVersionID(ctx context.Context, versionID snowflake.ID) (ComplianceObligation, error)
	LinkInvoice(ctx context.Context, obligationID, invoiceID snowflake.ID) error
	SetPenaltyStatus(ctx context.Context, obligationID snowflake.ID, status PenaltyStatus) error
}

// IntegrationEnqueuer queues the asynchronous eLicensing integration for a
// new obligation. Implemented by the integration queue; defined here so the
// factory does not depend on the queue package.
type IntegrationEnqueuer interface {
	QueueObligationIntegration(ctx context.Context, db *gorm.DB, obligationID snowflake.ID) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, obligation *ComplianceObligation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ComplianceObligation, error)
	FindByReportVersionID(ctx context.Context, db *gorm.DB, versionID snowflake.ID) (*ComplianceObligation, error)
	// FindByIDForUpdate locks the row for the duration of the surrounding
	// transaction on dialects that support it.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ComplianceObligation, error)
	LinkInvoice(ctx context.Context, db *gorm.DB, obligationID, invoiceID snowflake.ID) error
	UpdatePenaltyStatus(ctx context.Context, db *gorm.DB, obligationID snowflake.ID, status PenaltyStatus) error
	// ListOverdueUnpaid returns obligations past their deadline that still
	// have an outstanding balance mirrored locally.
	ListOverdueUnpaid(ctx context.Context, db *gorm.DB, limit int) ([]ComplianceObligation, error)
	// ListActiveReportVersionIDs returns report versions whose compliance
	// outcome can still change: an invoiced obligation not yet fully met,
	// or a penalty not yet settled.
	ListActiveReportVersionIDs(ctx context.Context, db *gorm.DB, limit int) ([]snowflake.ID, error)
}

var (
	ErrObligationNotFound = errors.New("obligation_not_found")
	// ErrMissingBoroID is a configuration error: an operation cannot be
	// regulated without a BORO id. Never retried.
	ErrMissingBoroID = errors.New("operation_missing_boro_id")
)
