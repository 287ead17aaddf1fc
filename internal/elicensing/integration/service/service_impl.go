package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/clock"
	"github.com/cleanbc/obps/internal/config"
	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	"github.com/cleanbc/obps/internal/elicensing/api"
	clientsyncdomain "github.com/cleanbc/obps/internal/elicensing/clientsync/domain"
	"github.com/cleanbc/obps/internal/elicensing/integration/domain"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	"github.com/cleanbc/obps/internal/metrics"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	penaltydomain "github.com/cleanbc/obps/internal/penalty/domain"
	"github.com/cleanbc/obps/pkg/db"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const drainBatchSize = 50

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	Repo        domain.Repository
	API         api.Client
	Clients     clientsyncdomain.Service
	Invoices    invoicedomain.Service
	Obligations obligationdomain.Repository
	Penalties   penaltydomain.Repository
	Versions    compliancereportdomain.Repository
	Backoff     domain.Backoff `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	maxRetries  int
	backoff     domain.Backoff
	repo        domain.Repository
	api         api.Client
	clients     clientsyncdomain.Service
	invoices    invoicedomain.Service
	obligations obligationdomain.Repository
	penalties   penaltydomain.Repository
	versions    compliancereportdomain.Repository
}

func New(p Params) domain.Service {
	backoff := p.Backoff
	if backoff == nil {
		backoff = domain.ExponentialBackoff(p.Config.IntegrationRetryBase, p.Config.IntegrationRetryCap)
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("elicensing.integration"),
		genID:       p.GenID,
		clock:       p.Clock,
		maxRetries:  p.Config.IntegrationMaxRetries,
		backoff:     backoff,
		repo:        p.Repo,
		api:         p.API,
		clients:     p.Clients,
		invoices:    p.Invoices,
		obligations: p.Obligations,
		penalties:   p.Penalties,
		versions:    p.Versions,
	}
}

func (s *Service) QueueObligationIntegration(ctx context.Context, gdb *gorm.DB, obligationID snowflake.ID) error {
	return s.enqueue(ctx, gdb, obligationID, domain.RoleObligation)
}

func (s *Service) QueuePenaltyIntegration(ctx context.Context, gdb *gorm.DB, obligationID snowflake.ID) error {
	return s.enqueue(ctx, gdb, obligationID, domain.RolePenalty)
}

func (s *Service) enqueue(ctx context.Context, gdb *gorm.DB, obligationID snowflake.ID, role invoicedomain.InvoiceRole) error {
	job := &domain.IntegrationJob{
		ID:                     s.genID.Generate(),
		ComplianceObligationID: obligationID,
		InvoiceRole:            role,
		Status:                 domain.StatusPending,
		NextRetryAt:            s.clock.Now(),
	}
	created, err := s.repo.GetOrCreate(ctx, gdb, job)
	if err != nil {
		return err
	}
	if created {
		s.log.Info("integration queued",
			zap.Int64("obligation_id", int64(obligationID)),
			zap.String("role", string(role)),
		)
	}
	return nil
}

func (s *Service) ProcessObligationIntegration(ctx context.Context, jobID snowflake.ID) error {
	_, err := s.runJob(ctx, jobID)
	return err
}

func (s *Service) ProcessPendingIntegrations(ctx context.Context) (domain.Summary, error) {
	now := s.clock.Now()
	jobs, err := s.repo.ListDue(ctx, s.db, now, s.maxRetries, drainBatchSize)
	if err != nil {
		return domain.Summary{}, err
	}

	var summary domain.Summary
	for _, job := range jobs {
		summary.Processed++
		exhausted, err := s.runJob(ctx, job.ID)
		switch {
		case err == nil:
			summary.Succeeded++
			metrics.QueueBatchSummary.WithLabelValues("succeeded").Inc()
		case exhausted:
			summary.Exhausted++
			metrics.QueueBatchSummary.WithLabelValues("exhausted").Inc()
		default:
			summary.Failed++
			metrics.QueueBatchSummary.WithLabelValues("failed").Inc()
		}
	}

	s.log.Info("integration queue drained",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("exhausted", summary.Exhausted),
	)
	return summary, nil
}

// runJob wraps one integration attempt with retry bookkeeping. The returned
// bool reports whether the job just exhausted its retry budget.
func (s *Service) runJob(ctx context.Context, jobID snowflake.ID) (bool, error) {
	job, err := s.repo.FindByID(ctx, s.db, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, domain.ErrJobNotFound
	}
	if job.Status == domain.StatusCompleted || job.Status == domain.StatusMaxRetriesExceeded {
		return false, nil
	}

	job.Status = domain.StatusProcessing
	if err := s.repo.Update(ctx, s.db, job); err != nil {
		return false, err
	}

	integrateErr := s.integrate(ctx, job)
	if integrateErr == nil {
		job.Status = domain.StatusCompleted
		job.LastError = ""
		metrics.IntegrationAttempts.WithLabelValues("success").Inc()
		return false, s.repo.Update(ctx, s.db, job)
	}

	// Failure path: the obligation row survives, the report version drops
	// back to pending, and the queue owns the retry.
	if job.InvoiceRole == domain.RoleObligation {
		s.revertVersionStatus(ctx, job.ComplianceObligationID)
	}

	job.RetryCount++
	job.LastError = integrateErr.Error()
	job.RecordAttemptError(s.clock.Now(), job.LastError)
	job.NextRetryAt = s.clock.Now().Add(s.backoff(job.RetryCount))
	exhausted := job.RetryCount >= s.maxRetries
	if exhausted {
		job.Status = domain.StatusMaxRetriesExceeded
		metrics.IntegrationAttempts.WithLabelValues("exhausted").Inc()
		s.log.Error("integration retries exhausted",
			zap.Int64("obligation_id", int64(job.ComplianceObligationID)),
			zap.String("role", string(job.InvoiceRole)),
			zap.String("last_error", job.LastError),
		)
	} else {
		job.Status = domain.StatusFailed
		metrics.IntegrationAttempts.WithLabelValues("failure").Inc()
		s.log.Warn("integration attempt failed",
			zap.Int64("obligation_id", int64(job.ComplianceObligationID)),
			zap.Int("retry_count", job.RetryCount),
			zap.Time("next_retry_at", job.NextRetryAt),
			zap.Error(integrateErr),
		)
	}
	if err := s.repo.Update(ctx, s.db, job); err != nil {
		return exhausted, err
	}
	return exhausted, integrateErr
}

// integrate performs the external sequence for one queue row. Recovery
// markers (fee object id, invoice number) are persisted after each external
// success so a retry resumes mid-sequence instead of re-creating resources.
func (s *Service) integrate(ctx context.Context, job *domain.IntegrationJob) error {
	obligation, err := s.obligations.FindByID(ctx, s.db, job.ComplianceObligationID)
	if err != nil {
		return err
	}
	if obligation == nil {
		return obligationdomain.ErrObligationNotFound
	}

	var (
		target  target
		penalty *penaltydomain.CompliancePenalty
	)
	switch job.InvoiceRole {
	case domain.RoleObligation:
		if obligation.ElicensingInvoiceID != nil {
			return nil
		}
		target = obligationTarget(obligation)
	case domain.RolePenalty:
		penalty, err = s.penalties.FindByObligationID(ctx, s.db, obligation.ID)
		if err != nil {
			return err
		}
		if penalty == nil {
			return penaltydomain.ErrPenaltyNotFound
		}
		if penalty.ElicensingInvoiceID != nil {
			return nil
		}
		target = penaltyTarget(obligation, penalty, s.clock)
	default:
		return domain.ErrUnknownRole
	}

	mapping, err := s.clients.SyncClientWithElicensing(ctx, obligation.OperatorID)
	if err != nil {
		return err
	}

	if job.FeeObjectID == "" {
		resp, err := s.api.CreateFees(ctx, mapping.ClientObjectID, api.CreateFeesRequest{
			Fees: []api.FeeRecord{{
				FeeGUID:          uuid.NewString(),
				BusinessAreaCode: api.BusinessAreaCode,
				FeeProfileGroup:  target.feeProfileGroup,
				Description:      target.description,
				Amount:           target.amount,
				FeeDate:          target.feeDate,
			}},
		})
		if err != nil {
			return err
		}
		if len(resp.FeeObjectIDs) == 0 {
			return fmt.Errorf("%w: fee creation returned no fee object id", api.ErrRejected)
		}
		job.FeeObjectID = resp.FeeObjectIDs[0]
		if err := s.repo.Update(ctx, s.db, job); err != nil {
			return err
		}
	}

	if job.InvoiceNumber == "" {
		resp, err := s.api.CreateInvoice(ctx, mapping.ClientObjectID, api.CreateInvoiceRequest{
			PaymentDueDate: target.dueDate,
			FeeObjectIDs:   []string{job.FeeObjectID},
		})
		if err != nil {
			return err
		}
		job.InvoiceNumber = resp.InvoiceNumber
		if err := s.repo.Update(ctx, s.db, job); err != nil {
			return err
		}
	}

	invoice, err := s.invoices.MirrorInvoice(ctx, mapping.ID, job.InvoiceNumber, job.InvoiceRole)
	if err != nil {
		return err
	}

	switch job.InvoiceRole {
	case domain.RoleObligation:
		if err := s.obligations.LinkInvoice(ctx, s.db, obligation.ID, invoice.ID); err != nil {
			if db.IsDuplicateKeyErr(err) {
				// A concurrent attempt linked first; its invoice stands.
				return nil
			}
			return err
		}
		version, err := s.versions.FindByID(ctx, s.db, obligation.ComplianceReportVersionID)
		if err != nil {
			return err
		}
		if version != nil && version.Status == compliancereportdomain.StatusObligationPendingInvoiceCreation {
			if err := s.versions.UpdateStatus(ctx, s.db, version.ID, compliancereportdomain.StatusObligationNotMet); err != nil {
				return err
			}
		}
	case domain.RolePenalty:
		if err := s.penalties.LinkInvoice(ctx, s.db, penalty.ID, invoice.ID); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return nil
			}
			return err
		}
		if err := s.obligations.UpdatePenaltyStatus(ctx, s.db, obligation.ID, obligationdomain.PenaltyNotPaid); err != nil {
			return err
		}
	}

	s.log.Info("integration completed",
		zap.String("obligation_id", obligation.ObligationID),
		zap.String("role", string(job.InvoiceRole)),
		zap.String("invoice_number", job.InvoiceNumber),
	)
	return nil
}

func (s *Service) revertVersionStatus(ctx context.Context, obligationID snowflake.ID) {
	obligation, err := s.obligations.FindByID(ctx, s.db, obligationID)
	if err != nil || obligation == nil {
		return
	}
	if err := s.versions.UpdateStatus(ctx, s.db, obligation.ComplianceReportVersionID,
		compliancereportdomain.StatusObligationPendingInvoiceCreation); err != nil {
		s.log.Warn("failed to revert version status",
			zap.Int64("obligation_id", int64(obligationID)),
			zap.Error(err),
		)
	}
}

// target bundles the role-specific fee and invoice parameters.
type target struct {
	feeProfileGroup string
	description     string
	amount          decimal.Decimal
	feeDate         time.Time
	dueDate         time.Time
}

func obligationTarget(obligation *obligationdomain.ComplianceObligation) target {
	return target{
		feeProfileGroup: "OBPS Compliance Obligation",
		description:     fmt.Sprintf("%d GGIRCA Compliance Obligation", obligation.ReportingYear),
		amount:          obligation.FeeAmountDollars,
		feeDate:         obligation.FeeDate,
		dueDate:         obligation.ObligationDeadline,
	}
}

func penaltyTarget(obligation *obligationdomain.ComplianceObligation, penalty *penaltydomain.CompliancePenalty, clk clock.Clock) target {
	return target{
		feeProfileGroup: "OBPS Automatic Overdue Penalty",
		description:     fmt.Sprintf("%d GGIRCA Automatic Overdue Penalty", obligation.ReportingYear),
		amount:          penalty.PenaltyAmountDollars,
		feeDate:         penalty.AccrualEndDate,
		dueDate:         clk.Now().AddDate(0, 0, 30),
	}
}
