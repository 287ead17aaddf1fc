package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/clock"
	integrationdomain "github.com/cleanbc/obps/internal/elicensing/integration/domain"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	"github.com/cleanbc/obps/internal/metrics"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	"github.com/cleanbc/obps/internal/penalty/domain"
	"github.com/cleanbc/obps/pkg/db"
	"github.com/cleanbc/obps/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var daysPerYear = decimal.NewFromInt(365)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Obligations obligationdomain.Repository
	Invoices    invoicedomain.Service
	Queue       integrationdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	obligations obligationdomain.Repository
	invoices    invoicedomain.Service
	queue       integrationdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("penalty.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		obligations: p.Obligations,
		invoices:    p.Invoices,
		queue:       p.Queue,
	}
}

func (s *Service) CreatePenalty(ctx context.Context, obligationID snowflake.ID) (domain.CompliancePenalty, error) {
	if existing, err := s.repo.FindByObligationID(ctx, s.db, obligationID); err != nil {
		return domain.CompliancePenalty{}, err
	} else if existing != nil {
		return *existing, nil
	}

	obligation, err := s.obligations.FindByID(ctx, s.db, obligationID)
	if err != nil {
		return domain.CompliancePenalty{}, err
	}
	if obligation == nil {
		return domain.CompliancePenalty{}, obligationdomain.ErrObligationNotFound
	}
	if obligation.ElicensingInvoiceID == nil {
		return domain.CompliancePenalty{}, invoicedomain.ErrNoInvoiceForVersion
	}

	now := s.clock.Now()
	if !now.After(obligation.ObligationDeadline) {
		return domain.CompliancePenalty{}, domain.ErrNotOverdue
	}

	// Force a refresh so the accrual base is live external truth, not the
	// mirror.
	_, invoice, err := s.invoices.RefreshInvoice(ctx, *obligation.ElicensingInvoiceID, true)
	if err != nil {
		return domain.CompliancePenalty{}, err
	}

	rates, err := s.invoices.InterestRates(ctx)
	if err != nil {
		return domain.CompliancePenalty{}, err
	}

	// Accrual base and window. A still-unpaid obligation accrues on the
	// live outstanding balance up to today. An obligation paid in full
	// after the deadline accrues on the fee amount up to the final payment
	// date: the debt existed for the whole overdue window.
	start := dateOnly(obligation.ObligationDeadline.AddDate(0, 0, 1))
	end := dateOnly(now)
	base := invoice.OutstandingBalance
	if base.IsZero() {
		base = obligation.FeeAmountDollars
		if paidAt, ok := s.lastPaymentDate(ctx, invoice.ID); ok {
			end = dateOnly(paidAt)
		}
	}
	amount, days, err := accrue(base, rates, start, end)
	if err != nil {
		return domain.CompliancePenalty{}, err
	}

	penalty := &domain.CompliancePenalty{
		ID:                     s.genID.Generate(),
		ComplianceObligationID: obligationID,
		PenaltyAmountDollars:   amount,
		AccrualStartDate:       start,
		AccrualEndDate:         end,
		AccrualDays:            days,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, penalty); err != nil {
			return err
		}
		return s.queue.QueuePenaltyIntegration(ctx, tx, obligationID)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Concurrent sweep created it first.
			existing, findErr := s.repo.FindByObligationID(ctx, s.db, obligationID)
			if findErr != nil {
				return domain.CompliancePenalty{}, findErr
			}
			return *existing, nil
		}
		return domain.CompliancePenalty{}, err
	}

	metrics.PenaltiesCreated.Inc()
	s.log.Info("penalty created",
		zap.String("obligation_id", obligation.ObligationID),
		zap.String("amount", amount.StringFixed(2)),
		zap.Int("accrual_days", days),
	)
	return *penalty, nil
}

func (s *Service) GetByObligationID(ctx context.Context, obligationID snowflake.ID) (domain.CompliancePenalty, error) {
	penalty, err := s.repo.FindByObligationID(ctx, s.db, obligationID)
	if err != nil {
		return domain.CompliancePenalty{}, err
	}
	if penalty == nil {
		return domain.CompliancePenalty{}, domain.ErrPenaltyNotFound
	}
	return *penalty, nil
}

// lastPaymentDate finds the most recent payment received on the invoice.
func (s *Service) lastPaymentDate(ctx context.Context, invoiceID snowflake.ID) (time.Time, bool) {
	_, payments, _, err := s.invoices.LineItems(ctx, invoiceID)
	if err != nil || len(payments) == 0 {
		return time.Time{}, false
	}
	latest := payments[0].ReceivedDate
	for _, p := range payments[1:] {
		if p.ReceivedDate.After(latest) {
			latest = p.ReceivedDate
		}
	}
	return latest, true
}

// accrue sums simple daily interest on the outstanding balance over
// [start, end], using the interest-rate period covering each day. Rounding
// happens once at the end.
func accrue(outstanding decimal.Decimal, rates []invoicedomain.ElicensingInterestRate, start, end time.Time) (decimal.Decimal, int, error) {
	total := decimal.Zero
	days := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		rate, ok := rateFor(rates, day)
		if !ok {
			return decimal.Zero, 0, domain.ErrNoRateForDate
		}
		total = total.Add(outstanding.Mul(rate).Div(daysPerYear))
		days++
	}
	return money.RoundDollars(total), days, nil
}

func rateFor(rates []invoicedomain.ElicensingInterestRate, day time.Time) (decimal.Decimal, bool) {
	for _, r := range rates {
		if r.Covers(day) {
			return r.InterestRate, true
		}
	}
	return decimal.Zero, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
