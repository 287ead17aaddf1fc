package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// FailedAdjustment records a per-invoice commit failure. Earlier successes
// in the same batch stand; the external system has no multi-invoice
// transaction.
type FailedAdjustment struct {
	Adjustment InvoiceAdjustment
	Err        string
}

type ApplyResult struct {
	Applied []InvoiceAdjustment
	Failed  []FailedAdjustment
}

type Service interface {
	// ComputeStrategy plans how a decreased obligation nets out against the
	// chain's outstanding invoices. Pure planning: no external calls, no
	// mutations beyond mirror refreshes.
	ComputeStrategy(ctx context.Context, versionID snowflake.ID) (Strategy, error)

	// ApplyStrategy commits the plan: one external fee adjustment per
	// invoice, forced mirror refresh, then status and void flags. Restart-
	// safe per invoice; a failed invoice is reported and the rest proceed.
	ApplyStrategy(ctx context.Context, versionID snowflake.ID, strategy Strategy) (ApplyResult, error)
}

var ErrNotDecreased = errors.New("obligation_not_decreased")
