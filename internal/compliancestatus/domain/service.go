package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// RunPass refreshes the version's invoices and applies the handler
	// chain to each. Safe to re-run at any time; the returned effects
	// report what actually changed this pass.
	RunPass(ctx context.Context, versionID snowflake.ID) ([]Effect, error)
}
