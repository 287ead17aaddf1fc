package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/clock"
	"github.com/cleanbc/obps/internal/config"
	"github.com/cleanbc/obps/internal/elicensing/api"
	clientsyncdomain "github.com/cleanbc/obps/internal/elicensing/clientsync/domain"
	"github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	"github.com/cleanbc/obps/internal/metrics"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Config         config.Config
	API            api.Client
	Repo           domain.Repository
	ObligationRepo obligationdomain.Repository
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	window         time.Duration
	api            api.Client
	repo           domain.Repository
	obligationRepo obligationdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("elicensing.invoice.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		window:         p.Config.InvoiceFreshnessWindow,
		api:            p.API,
		repo:           p.Repo,
		obligationRepo: p.ObligationRepo,
	}
}

func (s *Service) RefreshByComplianceReportVersionID(ctx context.Context, versionID snowflake.ID, forceRefresh bool) (bool, domain.ElicensingInvoice, error) {
	obligation, err := s.obligationRepo.FindByReportVersionID(ctx, s.db, versionID)
	if err != nil {
		return false, domain.ElicensingInvoice{}, err
	}
	if obligation == nil || obligation.ElicensingInvoiceID == nil {
		return false, domain.ElicensingInvoice{}, domain.ErrNoInvoiceForVersion
	}
	return s.RefreshInvoice(ctx, *obligation.ElicensingInvoiceID, forceRefresh)
}

func (s *Service) RefreshInvoice(ctx context.Context, invoiceID snowflake.ID, forceRefresh bool) (bool, domain.ElicensingInvoice, error) {
	invoice, err := s.repo.FindInvoiceByID(ctx, s.db, invoiceID)
	if err != nil {
		return false, domain.ElicensingInvoice{}, err
	}
	if invoice == nil {
		return false, domain.ElicensingInvoice{}, domain.ErrInvoiceNotFound
	}

	now := s.clock.Now()
	if !forceRefresh && invoice.Fresh(now, s.window) {
		metrics.InvoiceRefreshes.WithLabelValues("hit").Inc()
		return true, *invoice, nil
	}

	clientObjectID, err := s.clientObjectID(ctx, invoice.ElicensingClientOperatorID)
	if err != nil {
		return false, domain.ElicensingInvoice{}, err
	}

	resp, err := s.api.QueryInvoice(ctx, clientObjectID, invoice.InvoiceNumber)
	if err != nil {
		metrics.InvoiceRefreshes.WithLabelValues("error").Inc()
		// Stale-but-available: the caller keeps the mirror, annotated with
		// last_refreshed, rather than failing outright where tolerable.
		return false, *invoice, err
	}
	metrics.InvoiceRefreshes.WithLabelValues("miss").Inc()

	if err := s.applyResponse(ctx, invoice, resp, now); err != nil {
		return false, domain.ElicensingInvoice{}, err
	}
	return true, *invoice, nil
}

func (s *Service) MirrorInvoice(ctx context.Context, clientOperatorID snowflake.ID, invoiceNumber string, role domain.InvoiceRole) (domain.ElicensingInvoice, error) {
	if existing, err := s.repo.FindInvoiceByNumber(ctx, s.db, invoiceNumber); err != nil {
		return domain.ElicensingInvoice{}, err
	} else if existing != nil {
		// Already mirrored on a previous attempt; refresh instead of
		// duplicating.
		_, invoice, err := s.RefreshInvoice(ctx, existing.ID, true)
		return invoice, err
	}

	clientObjectID, err := s.clientObjectID(ctx, clientOperatorID)
	if err != nil {
		return domain.ElicensingInvoice{}, err
	}
	resp, err := s.api.QueryInvoice(ctx, clientObjectID, invoiceNumber)
	if err != nil {
		return domain.ElicensingInvoice{}, err
	}

	now := s.clock.Now()
	invoice := &domain.ElicensingInvoice{
		ID:                         s.genID.Generate(),
		InvoiceNumber:              resp.InvoiceNumber,
		ElicensingClientOperatorID: clientOperatorID,
		Role:                       role,
		DueDate:                    resp.PaymentDueDate,
		OutstandingBalance:         resp.InvoiceOutstandingBalance,
		InvoiceFeeBalance:          resp.InvoiceFeeBalance,
		InvoiceInterestBalance:     resp.InvoiceInterestBalance,
		LastRefreshed:              now,
	}
	if err := s.repo.InsertInvoice(ctx, s.db, invoice); err != nil {
		return domain.ElicensingInvoice{}, err
	}
	if err := s.replaceChildren(ctx, invoice.ID, resp); err != nil {
		return domain.ElicensingInvoice{}, err
	}
	s.log.Info("invoice mirrored",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("role", string(role)),
	)
	return *invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID snowflake.ID) (domain.ElicensingInvoice, error) {
	invoice, err := s.repo.FindInvoiceByID(ctx, s.db, invoiceID)
	if err != nil {
		return domain.ElicensingInvoice{}, err
	}
	if invoice == nil {
		return domain.ElicensingInvoice{}, domain.ErrInvoiceNotFound
	}
	return *invoice, nil
}

func (s *Service) LineItems(ctx context.Context, invoiceID snowflake.ID) ([]domain.ElicensingLineItem, []domain.ElicensingPayment, []domain.ElicensingAdjustment, error) {
	items, err := s.repo.LineItems(ctx, s.db, invoiceID)
	if err != nil {
		return nil, nil, nil, err
	}
	payments, err := s.repo.Payments(ctx, s.db, invoiceID)
	if err != nil {
		return nil, nil, nil, err
	}
	adjustments, err := s.repo.Adjustments(ctx, s.db, invoiceID)
	if err != nil {
		return nil, nil, nil, err
	}
	return items, payments, adjustments, nil
}

func (s *Service) MarkVoid(ctx context.Context, invoiceID snowflake.ID) error {
	return s.repo.MarkVoid(ctx, s.db, invoiceID)
}

func (s *Service) SaveInterestRate(ctx context.Context, rate domain.ElicensingInterestRate) (domain.ElicensingInterestRate, error) {
	existing, err := s.repo.ListInterestRates(ctx, s.db)
	if err != nil {
		return domain.ElicensingInterestRate{}, err
	}
	for _, other := range existing {
		// Inclusive boundaries: touching ranges are fine, shared days are not.
		if !rate.StartDate.After(other.EndDate) && !other.StartDate.After(rate.EndDate) {
			return domain.ElicensingInterestRate{}, domain.ErrInterestRateOverlap
		}
		if rate.IsCurrentRate && other.IsCurrentRate {
			return domain.ElicensingInterestRate{}, domain.ErrMultipleCurrentRates
		}
	}
	if rate.ID == 0 {
		rate.ID = s.genID.Generate()
	}
	if err := s.repo.InsertInterestRate(ctx, s.db, &rate); err != nil {
		return domain.ElicensingInterestRate{}, err
	}
	return rate, nil
}

func (s *Service) InterestRates(ctx context.Context) ([]domain.ElicensingInterestRate, error) {
	return s.repo.ListInterestRates(ctx, s.db)
}

func (s *Service) applyResponse(ctx context.Context, invoice *domain.ElicensingInvoice, resp api.InvoiceResponse, now time.Time) error {
	invoice.DueDate = resp.PaymentDueDate
	invoice.OutstandingBalance = resp.InvoiceOutstandingBalance
	invoice.InvoiceFeeBalance = resp.InvoiceFeeBalance
	invoice.InvoiceInterestBalance = resp.InvoiceInterestBalance
	invoice.LastRefreshed = now

	if err := s.repo.UpdateInvoice(ctx, s.db, invoice); err != nil {
		return err
	}
	return s.replaceChildren(ctx, invoice.ID, resp)
}

func (s *Service) replaceChildren(ctx context.Context, invoiceID snowflake.ID, resp api.InvoiceResponse) error {
	var (
		items       []domain.ElicensingLineItem
		payments    []domain.ElicensingPayment
		adjustments []domain.ElicensingAdjustment
	)
	for _, fee := range resp.Fees {
		item := domain.ElicensingLineItem{
			ID:                  s.genID.Generate(),
			ElicensingInvoiceID: invoiceID,
			ObjectID:            fee.FeeObjectID,
			LineItemType:        fee.FeeType,
			FeeDate:             fee.FeeDate,
			BaseAmount:          fee.BaseAmount,
			Description:         fee.Description,
		}
		items = append(items, item)

		for _, p := range fee.Payments {
			payments = append(payments, domain.ElicensingPayment{
				ID:                   s.genID.Generate(),
				ElicensingLineItemID: item.ID,
				PaymentObjectID:      p.PaymentObjectID,
				TransactionType:      domain.TransactionTypePayment,
				Amount:               p.Amount,
				ReceivedDate:         p.ReceivedDate,
				Method:               p.Method,
				ReceiptNumber:        p.ReceiptNumber,
			})
		}
		for _, p := range fee.PaymentAdjustments {
			payments = append(payments, domain.ElicensingPayment{
				ID:                   s.genID.Generate(),
				ElicensingLineItemID: item.ID,
				PaymentObjectID:      p.PaymentObjectID,
				TransactionType:      domain.TransactionTypePaymentAdjustment,
				Amount:               p.Amount,
				ReceivedDate:         p.ReceivedDate,
				Method:               p.Method,
				ReceiptNumber:        p.ReceiptNumber,
			})
		}
		for _, a := range fee.Adjustments {
			adjustments = append(adjustments, domain.ElicensingAdjustment{
				ID:                   s.genID.Generate(),
				ElicensingLineItemID: item.ID,
				AdjustmentObjectID:   a.AdjustmentObjectID,
				Amount:               a.Amount,
				AdjustmentDate:       a.AdjustmentDate,
				Reason:               a.Reason,
				Type:                 a.Type,
			})
		}
	}
	return s.repo.ReplaceLineItems(ctx, s.db, invoiceID, items, payments, adjustments)
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
