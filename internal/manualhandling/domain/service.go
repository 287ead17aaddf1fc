package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Actor mirrors the earned-credit actor shape: name plus role capability.
type Actor struct {
	Name string
	Role string
}

type Service interface {
	// GetOrCreate lazily creates the record the first time any analyst or
	// director touches a flagged version. Idempotent; an existing record's
	// type and context are left unchanged.
	GetOrCreate(ctx context.Context, versionID snowflake.ID, handlingType HandlingType, handlingContext HandlingContext) (ComplianceReportVersionManualHandling, error)

	GetByReportVersionID(ctx context.Context, versionID snowflake.ID) (ComplianceReportVersionManualHandling, error)

	// UpdateAnalyst records the analyst's assessment. Rejected once the
	// director has marked ISSUE_RESOLVED.
	UpdateAnalyst(ctx context.Context, versionID snowflake.ID, actor Actor, comment string) error

	// UpdateDirector records the director's decision. A resolving decision
	// requires a comment.
	UpdateDirector(ctx context.Context, versionID snowflake.ID, actor Actor, decision DirectorDecision, comment string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *ComplianceReportVersionManualHandling) error
	FindByReportVersionID(ctx context.Context, db *gorm.DB, versionID snowflake.ID) (*ComplianceReportVersionManualHandling, error)
	Update(ctx context.Context, db *gorm.DB, record *ComplianceReportVersionManualHandling) error
}

var (
	ErrManualHandlingNotFound = errors.New("manual_handling_not_found")
	ErrAlreadyResolved        = errors.New("manual_handling_already_resolved")
	ErrDecisionNeedsComment   = errors.New("resolving_decision_requires_comment")
	ErrForbiddenRole          = errors.New("actor_role_forbidden")
)
