package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/bccr"
	"github.com/cleanbc/obps/internal/clock"
	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	"github.com/cleanbc/obps/internal/earnedcredit/domain"
	"github.com/cleanbc/obps/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	Versions compliancereportdomain.Service
	Registry bccr.Client
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	versions compliancereportdomain.Service
	registry bccr.Client
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("earnedcredit.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		versions: p.Versions,
		registry: p.Registry,
	}
}

func (s *Service) GetByReportVersionID(ctx context.Context, versionID snowflake.ID) (domain.ComplianceEarnedCredit, error) {
	credit, err := s.repo.FindByReportVersionID(ctx, s.db, versionID)
	if err != nil {
		return domain.ComplianceEarnedCredit{}, err
	}
	if credit == nil {
		return domain.ComplianceEarnedCredit{}, domain.ErrEarnedCreditNotFound
	}
	return *credit, nil
}

func (s *Service) RequestIssuance(ctx context.Context, creditID snowflake.ID, actor domain.Actor, bccrTradingName string) error {
	return s.transition(ctx, creditID, actor, rls.RoleIndustryUser,
		[]domain.IssuanceStatus{domain.StatusCreditsNotIssued, domain.StatusDeclined, domain.StatusChangesRequired},
		func(credit *domain.ComplianceEarnedCredit) error {
			credit.IssuanceStatus = domain.StatusIssuanceRequested
			credit.BCCRTradingName = bccrTradingName
			return nil
		})
}

func (s *Service) SubmitForApproval(ctx context.Context, creditID snowflake.ID, actor domain.Actor, comment string) error {
	return s.transition(ctx, creditID, actor, rls.RoleCASAnalyst,
		[]domain.IssuanceStatus{domain.StatusIssuanceRequested},
		func(credit *domain.ComplianceEarnedCredit) error {
			credit.IssuanceStatus = domain.StatusAwaitingApproval
			credit.AnalystComment = comment
			credit.AnalystName = actor.Name
			return nil
		})
}

func (s *Service) Approve(ctx context.Context, creditID snowflake.ID, actor domain.Actor) error {
	// StatusApproved re-enters here: an approval whose registry issuance
	// failed is retried by approving again.
	return s.transition(ctx, creditID, actor, rls.RoleCASDirector,
		[]domain.IssuanceStatus{domain.StatusAwaitingApproval, domain.StatusApproved},
		func(credit *domain.ComplianceEarnedCredit) error {
			version, err := s.versions.GetByID(ctx, credit.ComplianceReportVersionID)
			if err != nil {
				return err
			}
			account, err := s.registry.LookupAccount(ctx, credit.BCCRTradingName)
			if err != nil {
				return err
			}
			issuance, err := s.registry.CreateIssuance(ctx, bccr.CreateIssuanceRequest{
				AccountID:     account.AccountID,
				Quantity:      credit.EarnedCreditsAmount,
				ReportingYear: version.ReportingYear,
			})
			if err != nil {
				// The approval itself stands; issuance retries by approving
				// again once the registry recovers.
				credit.IssuanceStatus = domain.StatusApproved
				s.log.Warn("bccr issuance failed after approval",
					zap.Int64("credit_id", int64(credit.ID)),
					zap.Error(err),
				)
				return nil
			}
			now := s.clock.Now()
			credit.IssuanceStatus = domain.StatusCreditsIssued
			credit.IssuedDate = &now
			credit.IssuedBy = actor.Name
			s.log.Info("earned credits issued",
				zap.Int64("credit_id", int64(credit.ID)),
				zap.Int64("tonnes", credit.EarnedCreditsAmount),
				zap.String("issuance_id", issuance.IssuanceID),
			)
			return nil
		})
}

func (s *Service) RequestChanges(ctx context.Context, creditID snowflake.ID, actor domain.Actor, comment string) error {
	return s.transition(ctx, creditID, actor, rls.RoleCASDirector,
		[]domain.IssuanceStatus{domain.StatusAwaitingApproval},
		func(credit *domain.ComplianceEarnedCredit) error {
			credit.IssuanceStatus = domain.StatusChangesRequired
			credit.DirectorComment = comment
			return nil
		})
}

func (s *Service) Decline(ctx context.Context, creditID snowflake.ID, actor domain.Actor, comment string) error {
	return s.transition(ctx, creditID, actor, rls.RoleCASDirector,
		[]domain.IssuanceStatus{domain.StatusAwaitingApproval},
		func(credit *domain.ComplianceEarnedCredit) error {
			credit.IssuanceStatus = domain.StatusDeclined
			credit.DirectorComment = comment
			return nil
		})
}

// transition enforces role and from-state checks, then applies mutate and
// persists inside one transaction.
func (s *Service) transition(ctx context.Context, creditID snowflake.ID, actor domain.Actor, requiredRole string, from []domain.IssuanceStatus, mutate func(*domain.ComplianceEarnedCredit) error) error {
	if actor.Role != requiredRole {
		return domain.ErrForbiddenRole
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithRole(tx, actor.Role); err != nil {
			return err
		}
		credit, err := s.repo.FindByID(ctx, tx, creditID)
		if err != nil {
			return err
		}
		if credit == nil {
			return domain.ErrEarnedCreditNotFound
		}
		allowed := false
		for _, status := range from {
			if credit.IssuanceStatus == status {
				allowed = true
				break
			}
		}
		if !allowed {
			return domain.ErrInvalidTransition
		}
		before := credit.IssuanceStatus
		if err := mutate(credit); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, credit); err != nil {
			return err
		}
		s.log.Info("issuance status changed",
			zap.Int64("credit_id", int64(credit.ID)),
			zap.String("from", string(before)),
			zap.String("to", string(credit.IssuanceStatus)),
			zap.String("actor", actor.Name),
		)
		return nil
	})
}
