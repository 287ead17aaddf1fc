package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/clock"
	"github.com/cleanbc/obps/internal/manualhandling/domain"
	"github.com/cleanbc/obps/pkg/db"
	"github.com/cleanbc/obps/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("manualhandling.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) GetOrCreate(ctx context.Context, versionID snowflake.ID, handlingType domain.HandlingType, handlingContext domain.HandlingContext) (domain.ComplianceReportVersionManualHandling, error) {
	if existing, err := s.repo.FindByReportVersionID(ctx, s.db, versionID); err != nil {
		return domain.ComplianceReportVersionManualHandling{}, err
	} else if existing != nil {
		return *existing, nil
	}

	record := &domain.ComplianceReportVersionManualHandling{
		ID:                        s.genID.Generate(),
		ComplianceReportVersionID: versionID,
		HandlingType:              handlingType,
		Context:                   handlingContext,
		DirectorDecision:          domain.DecisionPendingManualHandling,
	}
	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			existing, findErr := s.repo.FindByReportVersionID(ctx, s.db, versionID)
			if findErr != nil {
				return domain.ComplianceReportVersionManualHandling{}, findErr
			}
			return *existing, nil
		}
		return domain.ComplianceReportVersionManualHandling{}, err
	}
	s.log.Info("manual handling flagged",
		zap.Int64("version_id", int64(versionID)),
		zap.String("context", string(handlingContext)),
	)
	return *record, nil
}

func (s *Service) GetByReportVersionID(ctx context.Context, versionID snowflake.ID) (domain.ComplianceReportVersionManualHandling, error) {
	record, err := s.repo.FindByReportVersionID(ctx, s.db, versionID)
	if err != nil {
		return domain.ComplianceReportVersionManualHandling{}, err
	}
	if record == nil {
		return domain.ComplianceReportVersionManualHandling{}, domain.ErrManualHandlingNotFound
	}
	return *record, nil
}

func (s *Service) UpdateAnalyst(ctx context.Context, versionID snowflake.ID, actor domain.Actor, comment string) error {
	if actor.Role != rls.RoleCASAnalyst {
		return domain.ErrForbiddenRole
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithRole(tx, actor.Role); err != nil {
			return err
		}
		record, err := s.repo.FindByReportVersionID(ctx, tx, versionID)
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrManualHandlingNotFound
		}
		// Field-ownership invariant, not just authorization: a resolved
		// record is frozen against analyst edits.
		if record.DirectorDecision == domain.DecisionIssueResolved {
			return domain.ErrAlreadyResolved
		}
		now := s.clock.Now()
		record.AnalystComment = comment
		record.AnalystName = actor.Name
		record.AnalystDate = &now
		return s.repo.Update(ctx, tx, record)
	})
}

func (s *Service) UpdateDirector(ctx context.Context, versionID snowflake.ID, actor domain.Actor, decision domain.DirectorDecision, comment string) error {
	if actor.Role != rls.RoleCASDirector {
		return domain.ErrForbiddenRole
	}
	if decision == domain.DecisionIssueResolved && comment == "" {
		return domain.ErrDecisionNeedsComment
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithRole(tx, actor.Role); err != nil {
			return err
		}
		record, err := s.repo.FindByReportVersionID(ctx, tx, versionID)
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrManualHandlingNotFound
		}
		now := s.clock.Now()
		record.DirectorDecision = decision
		record.DirectorComment = comment
		record.DirectorName = actor.Name
		record.DirectorDate = &now
		return s.repo.Update(ctx, tx, record)
	})
}
