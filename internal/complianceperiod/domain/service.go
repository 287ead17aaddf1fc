package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type Service interface {
	// GetOrCreatePeriod returns the period for year, lazily creating it with
	// start Jan 1, end Dec 31 and a compliance deadline of June 30 the
	// following year. Idempotent.
	GetOrCreatePeriod(ctx context.Context, year int) (CompliancePeriod, error)

	// RateForYear is an exact lookup. A missing rate is a configuration gap,
	// surfaced as ErrChargeRateNotFound and never retried.
	RateForYear(ctx context.Context, year int) (decimal.Decimal, error)
}

var ErrChargeRateNotFound = errors.New("charge_rate_not_found")
