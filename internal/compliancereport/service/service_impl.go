package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/compliancereport/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("compliancereport.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.ComplianceReportVersion, error) {
	version, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ComplianceReportVersion{}, err
	}
	if version == nil {
		return domain.ComplianceReportVersion{}, domain.ErrVersionNotFound
	}
	return *version, nil
}

func (s *Service) SetStatus(ctx context.Context, id snowflake.ID, status domain.ComplianceStatus, trigger string) error {
	if err := s.repo.UpdateStatus(ctx, s.db, id, status); err != nil {
		return err
	}
	s.log.Info("compliance status updated",
		zap.String("version_id", id.String()),
		zap.String("status", string(status)),
		zap.String("trigger", trigger),
	)
	return nil
}

func (s *Service) PreviousVersions(ctx context.Context, id snowflake.ID) ([]domain.ComplianceReportVersion, error) {
	current, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrVersionNotFound
	}

	var chain []domain.ComplianceReportVersion
	for current.PreviousVersionID != nil {
		previous, err := s.repo.FindByID(ctx, s.db, *current.PreviousVersionID)
		if err != nil {
			return nil, err
		}
		if previous == nil {
			break
		}
		chain = append(chain, *previous)
		current = previous
	}

	// Walked newest-to-oldest; reconciliation consumes oldest first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (s *Service) SetRequiresManualHandling(ctx context.Context, id snowflake.ID) error {
	return s.repo.SetRequiresManualHandling(ctx, s.db, id, true)
}
