package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	"gorm.io/gorm"
)

// Backoff maps a completed attempt count to a delay before the next try.
// Injectable so tests can pin it.
type Backoff func(retryCount int) time.Duration

// ExponentialBackoff doubles from base per attempt, capped.
func ExponentialBackoff(base, cap time.Duration) Backoff {
	return func(retryCount int) time.Duration {
		delay := base
		for i := 0; i < retryCount; i++ {
			delay *= 2
			if delay >= cap {
				return cap
			}
		}
		if delay > cap {
			return cap
		}
		return delay
	}
}

// Summary aggregates one queue drain for logging and metrics.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
	Exhausted int
}

type Service interface {
	// QueueObligationIntegration is a get-or-create by obligation id; safe
	// to call from inside the factory transaction.
	QueueObligationIntegration(ctx context.Context, db *gorm.DB, obligationID snowflake.ID) error

	// QueuePenaltyIntegration enqueues the penalty-invoice integration for
	// an obligation whose penalty has been computed.
	QueuePenaltyIntegration(ctx context.Context, db *gorm.DB, obligationID snowflake.ID) error

	// ProcessObligationIntegration runs one integration end to end: ensure
	// client, create fee, create invoice, mirror, link, advance status. On
	// failure the report version status reverts and the error propagates to
	// the queue for retry bookkeeping.
	ProcessObligationIntegration(ctx context.Context, jobID snowflake.ID) error

	// ProcessPendingIntegrations drains due rows. A failing row never
	// aborts the rest of the batch.
	ProcessPendingIntegrations(ctx context.Context) (Summary, error)
}

type Repository interface {
	// GetOrCreate returns the existing row for (obligation, role) or
	// inserts a fresh PENDING one. The bool reports whether a row was
	// created.
	GetOrCreate(ctx context.Context, db *gorm.DB, job *IntegrationJob) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*IntegrationJob, error)
	// ListDue returns rows in {PENDING, FAILED} with retry budget left and
	// next_retry_at <= now, oldest first.
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, maxRetries, limit int) ([]IntegrationJob, error)
	Update(ctx context.Context, db *gorm.DB, job *IntegrationJob) error
}

var (
	ErrJobNotFound = errors.New("integration_job_not_found")
	// ErrUnknownRole guards against queue rows whose role no handler
	// recognizes.
	ErrUnknownRole = errors.New("unknown_invoice_role")
)

// RoleObligation and RolePenalty re-export the invoice roles the queue
// distinguishes.
const (
	RoleObligation = invoicedomain.RoleObligation
	RolePenalty    = invoicedomain.RolePenalty
)
