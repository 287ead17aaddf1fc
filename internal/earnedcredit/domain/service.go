package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Actor identifies who is driving a transition; the role is checked against
// the transition's required capability before any state changes.
type Actor struct {
	Name string
	Role string
}

type Service interface {
	GetByReportVersionID(ctx context.Context, versionID snowflake.ID) (ComplianceEarnedCredit, error)

	// RequestIssuance moves CREDITS_NOT_ISSUED (or DECLINED, a reset) to
	// ISSUANCE_REQUESTED and records the BCCR trading name the credits
	// should issue under. Industry-user transition.
	RequestIssuance(ctx context.Context, creditID snowflake.ID, actor Actor, bccrTradingName string) error

	// SubmitForApproval moves ISSUANCE_REQUESTED or CHANGES_REQUIRED to
	// AWAITING_APPROVAL. Analyst transition.
	SubmitForApproval(ctx context.Context, creditID snowflake.ID, actor Actor, comment string) error

	// Approve moves AWAITING_APPROVAL to APPROVED, creates the issuance in
	// the BC Carbon Registry, and on success marks CREDITS_ISSUED. Director
	// transition.
	Approve(ctx context.Context, creditID snowflake.ID, actor Actor) error

	// RequestChanges moves AWAITING_APPROVAL to CHANGES_REQUIRED; the
	// analyst resubmits after addressing the comment. Director transition.
	RequestChanges(ctx context.Context, creditID snowflake.ID, actor Actor, comment string) error

	// Decline moves AWAITING_APPROVAL to DECLINED. The operator may start
	// over with a fresh RequestIssuance. Director transition.
	Decline(ctx context.Context, creditID snowflake.ID, actor Actor, comment string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, credit *ComplianceEarnedCredit) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ComplianceEarnedCredit, error)
	FindByReportVersionID(ctx context.Context, db *gorm.DB, versionID snowflake.ID) (*ComplianceEarnedCredit, error)
	Update(ctx context.Context, db *gorm.DB, credit *ComplianceEarnedCredit) error
}

var (
	ErrEarnedCreditNotFound = errors.New("earned_credit_not_found")
	ErrInvalidTransition    = errors.New("invalid_issuance_transition")
	ErrForbiddenRole        = errors.New("actor_role_forbidden")
)
