// Package domain holds the compliance status handler chain. Handlers are
// pure functions of a snapshot of (invoice, obligation, report version);
// each handler's guard excludes its own postcondition, so re-running a pass
// never changes an already-settled state.
package domain

import (
	"time"

	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
)

// Snapshot is everything a handler may look at. Now comes from the caller's
// clock so the pass is a pure function of its inputs.
type Snapshot struct {
	Invoice           invoicedomain.ElicensingInvoice
	Obligation        obligationdomain.ComplianceObligation
	Version           compliancereportdomain.ComplianceReportVersion
	HasPenaltyInvoice bool
	Now               time.Time
}

// Effect is the state change a handler decided on. Nil pointers mean "leave
// unchanged".
type Effect struct {
	Handler          string
	SetPenaltyStatus *obligationdomain.PenaltyStatus
	SetVersionStatus *compliancereportdomain.ComplianceStatus
	// CreatePenalty asks the caller to compute an overdue penalty now; the
	// handler itself never touches external systems.
	CreatePenalty bool
}

type Handler struct {
	Name    string
	Applies func(Snapshot) bool
	Apply   func(Snapshot) Effect
}

// Chain returns the handlers in evaluation order. Only the first applicable
// handler fires per invoice per pass.
func Chain() []Handler {
	return []Handler{penaltyPaid(), penaltyAccruing(), obligationPaid()}
}

// Evaluate runs the chain and returns the first applicable handler's
// effect, or nil when nothing applies.
func Evaluate(s Snapshot) *Effect {
	for _, h := range Chain() {
		if h.Applies(s) {
			effect := h.Apply(s)
			return &effect
		}
	}
	return nil
}

// penaltyPaid settles a penalty once its invoice reaches a zero balance.
func penaltyPaid() Handler {
	return Handler{
		Name: "penalty_paid",
		Applies: func(s Snapshot) bool {
			return s.Invoice.Role == invoicedomain.RolePenalty &&
				s.Obligation.PenaltyStatus == obligationdomain.PenaltyNotPaid &&
				s.Invoice.OutstandingBalance.IsZero()
		},
		Apply: func(s Snapshot) Effect {
			paid := obligationdomain.PenaltyPaid
			return Effect{Handler: "penalty_paid", SetPenaltyStatus: &paid}
		},
	}
}

// penaltyAccruing flags an overdue unpaid obligation on both the obligation
// and its report version; penalty creation is triggered by the sweep, not
// here.
func penaltyAccruing() Handler {
	return Handler{
		Name: "penalty_accruing",
		Applies: func(s Snapshot) bool {
			return s.Invoice.Role == invoicedomain.RoleObligation &&
				!s.HasPenaltyInvoice &&
				s.Obligation.PenaltyStatus == obligationdomain.PenaltyNone &&
				s.Version.Status == compliancereportdomain.StatusObligationNotMet &&
				s.Invoice.OutstandingBalance.IsPositive() &&
				s.Now.After(s.Invoice.DueDate)
		},
		Apply: func(s Snapshot) Effect {
			accruing := obligationdomain.PenaltyAccruing
			version := compliancereportdomain.StatusObligationAccruingPenalty
			return Effect{
				Handler:          "penalty_accruing",
				SetPenaltyStatus: &accruing,
				SetVersionStatus: &version,
			}
		},
	}
}

// obligationPaid marks a fully paid obligation met; a payment that landed
// after the deadline still owes a penalty for the overdue window.
func obligationPaid() Handler {
	return Handler{
		Name: "obligation_paid",
		Applies: func(s Snapshot) bool {
			return s.Invoice.Role == invoicedomain.RoleObligation &&
				(s.Version.Status == compliancereportdomain.StatusObligationNotMet ||
					s.Version.Status == compliancereportdomain.StatusObligationAccruingPenalty) &&
				s.Invoice.OutstandingBalance.IsZero()
		},
		Apply: func(s Snapshot) Effect {
			met := compliancereportdomain.StatusObligationFullyMet
			return Effect{
				Handler:          "obligation_paid",
				SetVersionStatus: &met,
				CreatePenalty:    s.Now.After(s.Invoice.DueDate) && !s.HasPenaltyInvoice,
			}
		},
	}
}
