package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/complianceperiod/domain"
	"github.com/cleanbc/obps/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("complianceperiod.service"),
		genID: p.GenID,
	}
}

func (s *Service) GetOrCreatePeriod(ctx context.Context, year int) (domain.CompliancePeriod, error) {
	existing, err := s.findPeriod(ctx, year)
	if err != nil {
		return domain.CompliancePeriod{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	period := domain.CompliancePeriod{
		ID:                 s.genID.Generate(),
		Year:               year,
		StartDate:          time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		ComplianceDeadline: time.Date(year+1, time.June, 30, 0, 0, 0, 0, time.UTC),
	}
	if err := s.db.WithContext(ctx).Create(&period).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Another caller created it between our read and write.
			created, findErr := s.findPeriod(ctx, year)
			if findErr != nil {
				return domain.CompliancePeriod{}, findErr
			}
			return *created, nil
		}
		return domain.CompliancePeriod{}, err
	}
	s.log.Info("compliance period created", zap.Int("year", year))
	return period, nil
}

func (s *Service) findPeriod(ctx context.Context, year int) (*domain.CompliancePeriod, error) {
	var period domain.CompliancePeriod
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM compliance_periods WHERE year = ?`, year,
	).Scan(&period).Error
	if err != nil {
		return nil, err
	}
	if period.ID == 0 {
		return nil, nil
	}
	return &period, nil
}

func (s *Service) RateForYear(ctx context.Context, year int) (decimal.Decimal, error) {
	var rate domain.ComplianceChargeRate
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM compliance_charge_rates WHERE reporting_year = ?`, year,
	).Scan(&rate).Error
	if err != nil {
		return decimal.Zero, err
	}
	if rate.ID == 0 {
		return decimal.Zero, domain.ErrChargeRateNotFound
	}
	return rate.Rate, nil
}
