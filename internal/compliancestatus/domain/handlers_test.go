package domain

import (
	"testing"
	"time"

	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func snapshot() Snapshot {
	return Snapshot{
		Invoice: invoicedomain.ElicensingInvoice{
			Role:               invoicedomain.RoleObligation,
			DueDate:            time.Date(2025, 11, 30, 23, 59, 59, 0, time.UTC),
			OutstandingBalance: decimal.RequireFromString("500.00"),
		},
		Obligation: obligationdomain.ComplianceObligation{
			PenaltyStatus: obligationdomain.PenaltyNone,
		},
		Version: compliancereportdomain.ComplianceReportVersion{
			Status: compliancereportdomain.StatusObligationNotMet,
		},
		Now: now,
	}
}

// applyEffect folds one effect back into the snapshot, the way the service
// persists it, so a second pass sees the postcondition.
func applyEffect(s Snapshot, e *Effect) Snapshot {
	if e == nil {
		return s
	}
	if e.SetPenaltyStatus != nil {
		s.Obligation.PenaltyStatus = *e.SetPenaltyStatus
	}
	if e.SetVersionStatus != nil {
		s.Version.Status = *e.SetVersionStatus
	}
	if e.CreatePenalty {
		s.HasPenaltyInvoice = true
	}
	return s
}

func TestPenaltyPaidHandler(t *testing.T) {
	s := snapshot()
	s.Invoice.Role = invoicedomain.RolePenalty
	s.Invoice.OutstandingBalance = decimal.Zero
	s.Obligation.PenaltyStatus = obligationdomain.PenaltyNotPaid
	s.HasPenaltyInvoice = true

	effect := Evaluate(s)
	require.NotNil(t, effect)
	assert.Equal(t, "penalty_paid", effect.Handler)
	require.NotNil(t, effect.SetPenaltyStatus)
	assert.Equal(t, obligationdomain.PenaltyPaid, *effect.SetPenaltyStatus)
}

func TestPenaltyAccruingHandler(t *testing.T) {
	s := snapshot()

	effect := Evaluate(s)
	require.NotNil(t, effect)
	assert.Equal(t, "penalty_accruing", effect.Handler)
	require.NotNil(t, effect.SetPenaltyStatus)
	assert.Equal(t, obligationdomain.PenaltyAccruing, *effect.SetPenaltyStatus)
	require.NotNil(t, effect.SetVersionStatus)
	assert.Equal(t, compliancereportdomain.StatusObligationAccruingPenalty, *effect.SetVersionStatus)
	// Penalty creation is the sweep's job, not this handler's.
	assert.False(t, effect.CreatePenalty)
}

func TestObligationPaidAfterAccrual(t *testing.T) {
	// A payment landing after the version entered its accruing state must
	// still close it out.
	s := snapshot()
	s.Version.Status = compliancereportdomain.StatusObligationAccruingPenalty
	s.Obligation.PenaltyStatus = obligationdomain.PenaltyAccruing
	s.Invoice.OutstandingBalance = decimal.Zero

	effect := Evaluate(s)
	require.NotNil(t, effect)
	assert.Equal(t, "obligation_paid", effect.Handler)
	require.NotNil(t, effect.SetVersionStatus)
	assert.Equal(t, compliancereportdomain.StatusObligationFullyMet, *effect.SetVersionStatus)
}

func TestPenaltyAccruingNotBeforeDueDate(t *testing.T) {
	s := snapshot()
	s.Now = time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, Evaluate(s))
}

func TestObligationPaidOnTime(t *testing.T) {
	s := snapshot()
	s.Invoice.OutstandingBalance = decimal.Zero
	s.Now = time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	effect := Evaluate(s)
	require.NotNil(t, effect)
	assert.Equal(t, "obligation_paid", effect.Handler)
	require.NotNil(t, effect.SetVersionStatus)
	assert.Equal(t, compliancereportdomain.StatusObligationFullyMet, *effect.SetVersionStatus)
	assert.False(t, effect.CreatePenalty)
}

func TestObligationPaidLateOwesPenalty(t *testing.T) {
	s := snapshot()
	s.Invoice.OutstandingBalance = decimal.Zero

	effect := Evaluate(s)
	require.NotNil(t, effect)
	assert.Equal(t, "obligation_paid", effect.Handler)
	assert.True(t, effect.CreatePenalty)
}

func TestFirstApplicableHandlerWins(t *testing.T) {
	// A zero-balance penalty invoice with NOT_PAID status matches the
	// penalty-paid handler even if the version is still OBLIGATION_NOT_MET.
	s := snapshot()
	s.Invoice.Role = invoicedomain.RolePenalty
	s.Invoice.OutstandingBalance = decimal.Zero
	s.Obligation.PenaltyStatus = obligationdomain.PenaltyNotPaid
	s.HasPenaltyInvoice = true

	effect := Evaluate(s)
	require.NotNil(t, effect)
	assert.Equal(t, "penalty_paid", effect.Handler)
}

// Each handler's guard excludes its own postcondition: applying an effect
// and re-evaluating must reach a fixed point.
func TestPassIsIdempotent(t *testing.T) {
	cases := map[string]func() Snapshot{
		"penalty accruing": func() Snapshot { return snapshot() },
		"obligation paid late": func() Snapshot {
			s := snapshot()
			s.Invoice.OutstandingBalance = decimal.Zero
			return s
		},
		"penalty paid": func() Snapshot {
			s := snapshot()
			s.Invoice.Role = invoicedomain.RolePenalty
			s.Invoice.OutstandingBalance = decimal.Zero
			s.Obligation.PenaltyStatus = obligationdomain.PenaltyNotPaid
			s.HasPenaltyInvoice = true
			return s
		},
	}

	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			s := build()
			first := Evaluate(s)
			require.NotNil(t, first)

			s = applyEffect(s, first)
			second := Evaluate(s)
			if second != nil {
				s = applyEffect(s, second)
				assert.Nil(t, Evaluate(s), "chain did not reach a fixed point")
			}
		})
	}
}
