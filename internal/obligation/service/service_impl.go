package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/clock"
	complianceperioddomain "github.com/cleanbc/obps/internal/complianceperiod/domain"
	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	earnedcreditdomain "github.com/cleanbc/obps/internal/earnedcredit/domain"
	"github.com/cleanbc/obps/internal/metrics"
	"github.com/cleanbc/obps/internal/obligation/domain"
	"github.com/cleanbc/obps/internal/providers/email"
	registrydomain "github.com/cleanbc/obps/internal/registry/domain"
	"github.com/cleanbc/obps/pkg/db"
	"github.com/cleanbc/obps/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Credits     earnedcreditdomain.Repository
	Versions    compliancereportdomain.Repository
	Periods     complianceperioddomain.Service
	Registry    registrydomain.Repository
	Enqueuer    domain.IntegrationEnqueuer
	Email       email.Provider
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	credits  earnedcreditdomain.Repository
	versions compliancereportdomain.Repository
	periods  complianceperioddomain.Service
	registry registrydomain.Repository
	enqueuer domain.IntegrationEnqueuer
	email    email.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("obligation.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		credits:  p.Credits,
		versions: p.Versions,
		periods:  p.Periods,
		registry: p.Registry,
		enqueuer: p.Enqueuer,
		email:    p.Email,
	}
}

func (s *Service) CreateForReportVersion(ctx context.Context, versionID snowflake.ID) (domain.Outcome, error) {
	version, err := s.versions.FindByID(ctx, s.db, versionID)
	if err != nil {
		return "", err
	}
	if version == nil {
		return "", compliancereportdomain.ErrVersionNotFound
	}

	// Already resolved: report the existing outcome without touching
	// anything. The unique indexes below are the backstop for the race
	// where two submissions resolve the same version concurrently.
	if existing, err := s.repo.FindByReportVersionID(ctx, s.db, versionID); err != nil {
		return "", err
	} else if existing != nil {
		return domain.OutcomeObligation, nil
	}
	if existing, err := s.credits.FindByReportVersionID(ctx, s.db, versionID); err != nil {
		return "", err
	} else if existing != nil {
		return domain.OutcomeEarnedCredit, nil
	}

	var outcome domain.Outcome
	switch {
	case version.ExcessEmissions.IsPositive():
		outcome = domain.OutcomeObligation
		err = s.createObligation(ctx, version)
	case version.CreditedEmissions.IsPositive():
		outcome = domain.OutcomeEarnedCredit
		err = s.createEarnedCredit(ctx, version)
	default:
		outcome = domain.OutcomeNone
		err = s.versions.UpdateStatus(ctx, s.db, version.ID, compliancereportdomain.StatusNoObligationOrEarnedCredits)
	}
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the race; the other resolver's row stands.
			s.log.Info("factory lost creation race, keeping existing outcome",
				zap.Int64("version_id", int64(versionID)),
			)
			return outcome, nil
		}
		return "", err
	}

	metrics.FactoryOutcomes.WithLabelValues(string(outcome)).Inc()
	s.notify(ctx, version, outcome)
	return outcome, nil
}

func (s *Service) createObligation(ctx context.Context, version *compliancereportdomain.ComplianceReportVersion) error {
	operation, err := s.registry.FindOperationByID(ctx, s.db, version.OperationID)
	if err != nil {
		return err
	}
	if operation == nil {
		return registrydomain.ErrOperationNotFound
	}
	if operation.BoroID == nil || *operation.BoroID == "" {
		return domain.ErrMissingBoroID
	}

	if _, err := s.periods.GetOrCreatePeriod(ctx, version.ReportingYear); err != nil {
		return err
	}
	rate, err := s.periods.RateForYear(ctx, version.ReportingYear)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	obligation := &domain.ComplianceObligation{
		ID:                        s.genID.Generate(),
		ComplianceReportVersionID: version.ID,
		OperatorID:                operation.OperatorID,
		ObligationID:              fmt.Sprintf("%s-%d-%d", *operation.BoroID, version.ReportID, version.VersionNumber),
		ReportingYear:             version.ReportingYear,
		FeeAmountDollars:          money.RoundDollars(version.ExcessEmissions.Mul(rate)),
		FeeDate:                   now,
		ObligationDeadline:        obligationDeadline(version.ReportingYear),
		PenaltyStatus:             domain.PenaltyNone,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, obligation); err != nil {
			return err
		}
		if err := s.versions.UpdateStatus(ctx, tx, version.ID, compliancereportdomain.StatusObligationPendingInvoiceCreation); err != nil {
			return err
		}
		return s.enqueuer.QueueObligationIntegration(ctx, tx, obligation.ID)
	})
	if err != nil {
		return err
	}

	s.log.Info("obligation created",
		zap.String("obligation_id", obligation.ObligationID),
		zap.String("fee", obligation.FeeAmountDollars.StringFixed(2)),
		zap.Time("deadline", obligation.ObligationDeadline),
	)
	return nil
}

func (s *Service) createEarnedCredit(ctx context.Context, version *compliancereportdomain.ComplianceReportVersion) error {
	credit := &earnedcreditdomain.ComplianceEarnedCredit{
		ID:                        s.genID.Generate(),
		ComplianceReportVersionID: version.ID,
		EarnedCreditsAmount:       money.FloorTonnes(version.CreditedEmissions).IntPart(),
		IssuanceStatus:            earnedcreditdomain.StatusCreditsNotIssued,
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.credits.Insert(ctx, tx, credit); err != nil {
			return err
		}
		return s.versions.UpdateStatus(ctx, tx, version.ID, compliancereportdomain.StatusEarnedCredits)
	})
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.ComplianceObligation, error) {
	obligation, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ComplianceObligation{}, err
	}
	if obligation == nil {
		return domain.ComplianceObligation{}, domain.ErrObligationNotFound
	}
	return *obligation, nil
}

func (s *Service) GetByReportVersionID(ctx context.Context, versionID snowflake.ID) (domain.ComplianceObligation, error) {
	obligation, err := s.repo.FindByReportVersionID(ctx, s.db, versionID)
	if err != nil {
		return domain.ComplianceObligation{}, err
	}
	if obligation == nil {
		return domain.ComplianceObligation{}, domain.ErrObligationNotFound
	}
	return *obligation, nil
}

func (s *Service) LinkInvoice(ctx context.Context, obligationID, invoiceID snowflake.ID) error {
	return s.repo.LinkInvoice(ctx, s.db, obligationID, invoiceID)
}

func (s *Service) SetPenaltyStatus(ctx context.Context, obligationID snowflake.ID, status domain.PenaltyStatus) error {
	return s.repo.UpdatePenaltyStatus(ctx, s.db, obligationID, status)
}

// notify is best-effort: a failed email never unwinds the compliance
// transaction.
func (s *Service) notify(ctx context.Context, version *compliancereportdomain.ComplianceReportVersion, outcome domain.Outcome) {
	operation, err := s.registry.FindOperationByID(ctx, s.db, version.OperationID)
	if err != nil || operation == nil {
		return
	}
	operator, err := s.registry.FindOperatorByID(ctx, s.db, operation.OperatorID)
	if err != nil || operator == nil || operator.ContactEmail == "" {
		return
	}

	var subject, body string
	switch outcome {
	case domain.OutcomeObligation:
		subject = fmt.Sprintf("Compliance obligation created for reporting year %d", version.ReportingYear)
		body = fmt.Sprintf("<p>A compliance obligation has been created for %s. Payment is due by November 30, %d.</p>", operation.Name, version.ReportingYear+1)
	case domain.OutcomeEarnedCredit:
		subject = fmt.Sprintf("Earned credits update for reporting year %d", version.ReportingYear)
		body = fmt.Sprintf("<p>Earned credits have been recorded for %s and are eligible for issuance.</p>", operation.Name)
	default:
		subject = fmt.Sprintf("No compliance obligation for reporting year %d", version.ReportingYear)
		body = fmt.Sprintf("<p>The submitted report for %s resulted in no obligation and no earned credits.</p>", operation.Name)
	}
	if err := s.email.Send(ctx, []string{operator.ContactEmail}, subject, body); err != nil {
		s.log.Warn("notification failed",
			zap.Int64("version_id", int64(version.ID)),
			zap.Error(err),
		)
	}
}

// obligationDeadline is November 30 of the year after the reporting year.
func obligationDeadline(reportingYear int) time.Time {
	return time.Date(reportingYear+1, time.November, 30, 23, 59, 59, 0, time.UTC)
}
