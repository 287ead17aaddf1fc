package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/adjustment/domain"
	complianceperioddomain "github.com/cleanbc/obps/internal/complianceperiod/domain"
	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	"github.com/cleanbc/obps/internal/elicensing/api"
	clientsyncdomain "github.com/cleanbc/obps/internal/elicensing/clientsync/domain"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	manualhandlingdomain "github.com/cleanbc/obps/internal/manualhandling/domain"
	"github.com/cleanbc/obps/internal/metrics"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	"github.com/cleanbc/obps/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const adjustmentReason = "Supplementary report decreased obligation"

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	API            api.Client
	Versions       compliancereportdomain.Service
	Obligations    obligationdomain.Repository
	Invoices       invoicedomain.Service
	Periods        complianceperioddomain.Service
	ManualHandling manualhandlingdomain.Service
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	api            api.Client
	versions       compliancereportdomain.Service
	obligations    obligationdomain.Repository
	invoices       invoicedomain.Service
	periods        complianceperioddomain.Service
	manualHandling manualhandlingdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("adjustment.service"),
		api:            p.API,
		versions:       p.Versions,
		obligations:    p.Obligations,
		invoices:       p.Invoices,
		periods:        p.Periods,
		manualHandling: p.ManualHandling,
	}
}

func (s *Service) ComputeStrategy(ctx context.Context, versionID snowflake.ID) (domain.Strategy, error) {
	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return domain.Strategy{}, err
	}
	if !version.ExcessEmissionsDelta.IsNegative() {
		return domain.Strategy{}, domain.ErrNotDecreased
	}
	decreaseTonnes := version.ExcessEmissionsDelta.Neg()

	rate, err := s.periods.RateForYear(ctx, version.ReportingYear)
	if err != nil {
		return domain.Strategy{}, err
	}

	strategy := domain.Strategy{
		TotalDecrease:          money.RoundDollars(decreaseTonnes.Mul(rate)),
		EarnedTonnesRefundable: decimal.Zero,
		EarnedTonnesCreditable: decimal.Zero,
	}
	remaining := strategy.TotalDecrease

	chain, err := s.versions.PreviousVersions(ctx, versionID)
	if err != nil {
		return domain.Strategy{}, err
	}

	for _, previous := range chain {
		if !remaining.IsPositive() {
			break
		}
		obligation, err := s.obligations.FindByReportVersionID(ctx, s.db, previous.ID)
		if err != nil {
			return domain.Strategy{}, err
		}
		if obligation == nil || obligation.ElicensingInvoiceID == nil {
			continue
		}
		_, invoice, err := s.invoices.RefreshInvoice(ctx, *obligation.ElicensingInvoiceID, true)
		if err != nil {
			return domain.Strategy{}, err
		}
		if invoice.IsVoid || !invoice.OutstandingBalance.IsPositive() {
			continue
		}

		applied := money.Min(remaining, invoice.OutstandingBalance)
		net := invoice.OutstandingBalance.Sub(applied)

		hasCash, err := s.hasCashPayments(ctx, invoice.ID)
		if err != nil {
			return domain.Strategy{}, err
		}

		strategy.Adjustments = append(strategy.Adjustments, domain.InvoiceAdjustment{
			ComplianceReportVersionID: previous.ID,
			InvoiceID:                 invoice.ID,
			InvoiceNumber:             invoice.InvoiceNumber,
			Applied:                   applied.Neg(),
			NetOutstandingAfter:       net,
			MarkFullyMet:              net.IsZero(),
			ShouldVoidInvoice:         net.IsZero() && !hasCash,
		})
		remaining = remaining.Sub(applied)
	}

	// Leftover decrease means money already paid now exceeds the lower
	// obligation: a refund pool, expressed back in tonnes.
	if remaining.IsPositive() {
		strategy.EarnedTonnesRefundable = remaining.DivRound(rate, 4)
	}
	if version.CreditedEmissionsDelta.IsPositive() {
		strategy.EarnedTonnesCreditable = version.CreditedEmissionsDelta
	}
	strategy.ShouldRecordEarnedTonnes = strategy.EarnedTonnesRefundable.IsPositive() ||
		strategy.EarnedTonnesCreditable.IsPositive()

	return strategy, nil
}

func (s *Service) ApplyStrategy(ctx context.Context, versionID snowflake.ID, strategy domain.Strategy) (domain.ApplyResult, error) {
	var result domain.ApplyResult

	for _, adj := range strategy.Adjustments {
		if err := s.applyOne(ctx, adj); err != nil {
			metrics.AdjustmentsApplied.WithLabelValues("failed").Inc()
			s.log.Warn("invoice adjustment failed",
				zap.String("invoice_number", adj.InvoiceNumber),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, domain.FailedAdjustment{
				Adjustment: adj,
				Err:        err.Error(),
			})
			continue
		}
		metrics.AdjustmentsApplied.WithLabelValues("applied").Inc()
		result.Applied = append(result.Applied, adj)
	}

	if strategy.ShouldRecordEarnedTonnes {
		handlingType := manualhandlingdomain.HandlingEarnedCredits
		handlingContext := manualhandlingdomain.ContextEarnedCreditsPreviouslyApproved
		if strategy.EarnedTonnesRefundable.IsPositive() {
			handlingType = manualhandlingdomain.HandlingObligation
			handlingContext = manualhandlingdomain.ContextObligationRefundPoolCash
		}
		if _, err := s.manualHandling.GetOrCreate(ctx, versionID, handlingType, handlingContext); err != nil {
			return result, err
		}
		if err := s.versions.SetRequiresManualHandling(ctx, versionID); err != nil {
			return result, err
		}
	}
	return result, nil
}

// applyOne commits a single invoice adjustment: external call, forced
// refresh, then local status and void flags.
func (s *Service) applyOne(ctx context.Context, adj domain.InvoiceAdjustment) error {
	invoice, err := s.invoices.GetInvoice(ctx, adj.InvoiceID)
	if err != nil {
		return err
	}
	items, _, _, err := s.invoices.LineItems(ctx, adj.InvoiceID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return invoicedomain.ErrInvoiceNotFound
	}

	clientObjectID, err := s.clientObjectID(ctx, invoice.ElicensingClientOperatorID)
	if err != nil {
		return err
	}

	if err := s.api.AdjustFees(ctx, clientObjectID, api.AdjustFeesRequest{
		Adjustments: []api.FeeAdjustment{{
			FeeObjectID:    items[0].ObjectID,
			AdjustmentGUID: uuid.NewString(),
			Amount:         adj.Applied,
			Reason:         adjustmentReason,
		}},
	}); err != nil {
		return err
	}

	if _, _, err := s.invoices.RefreshInvoice(ctx, adj.InvoiceID, true); err != nil {
		return err
	}
	if adj.MarkFullyMet {
		if err := s.versions.SetStatus(ctx, adj.ComplianceReportVersionID,
			compliancereportdomain.StatusObligationFullyMet, "decreased_obligation_adjustment"); err != nil {
			return err
		}
	}
	if adj.ShouldVoidInvoice {
		if err := s.invoices.MarkVoid(ctx, adj.InvoiceID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) hasCashPayments(ctx context.Context, invoiceID snowflake.ID) (bool, error) {
	_, payments, _, err := s.invoices.LineItems(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	for _, p := range payments {
		if p.TransactionType == invoicedomain.TransactionTypePayment {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) clientObjectID(ctx context.Context, clientOperatorID snowflake.ID) (string, error) {
	var mapping clientsyncdomain.ElicensingClientOperator
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM elicensing_client_operators WHERE id = ?`, clientOperatorID,
	).Scan(&mapping).Error
	if err != nil {
		return "", err
	}
	// Scan reports no error on zero rows; an empty id must not be sent out.
	if mapping.ID == 0 {
		return "", clientsyncdomain.ErrClientMappingNotFound
	}
	return mapping.ClientObjectID, nil
}
