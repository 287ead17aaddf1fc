package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/clock"
	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	"github.com/cleanbc/obps/internal/compliancestatus/domain"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	penaltydomain "github.com/cleanbc/obps/internal/penalty/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Obligations obligationdomain.Repository
	Versions    compliancereportdomain.Repository
	Penalties   penaltydomain.Repository
	Invoices    invoicedomain.Service
	PenaltySvc  penaltydomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	obligations obligationdomain.Repository
	versions    compliancereportdomain.Repository
	penalties   penaltydomain.Repository
	invoices    invoicedomain.Service
	penaltySvc  penaltydomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("compliancestatus.service"),
		clock:       p.Clock,
		obligations: p.Obligations,
		versions:    p.Versions,
		penalties:   p.Penalties,
		invoices:    p.Invoices,
		penaltySvc:  p.PenaltySvc,
	}
}

func (s *Service) RunPass(ctx context.Context, versionID snowflake.ID) ([]domain.Effect, error) {
	version, err := s.versions.FindByID(ctx, s.db, versionID)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, compliancereportdomain.ErrVersionNotFound
	}

	obligation, err := s.obligations.FindByReportVersionID(ctx, s.db, versionID)
	if err != nil {
		return nil, err
	}
	if obligation == nil || obligation.ElicensingInvoiceID == nil {
		// No obligation, or not yet integrated: nothing for the chain.
		return nil, nil
	}

	penalty, err := s.penalties.FindByObligationID(ctx, s.db, obligation.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	// Penalty invoice first: settling a paid penalty must not be shadowed
	// by obligation-invoice handlers in the same pass.
	var invoices []invoicedomain.ElicensingInvoice
	if penalty != nil && penalty.ElicensingInvoiceID != nil {
		_, penaltyInvoice, err := s.invoices.RefreshInvoice(ctx, *penalty.ElicensingInvoiceID, true)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, penaltyInvoice)
	}
	_, obligationInvoice, err := s.invoices.RefreshInvoice(ctx, *obligation.ElicensingInvoiceID, true)
	if err != nil {
		return nil, err
	}
	invoices = append(invoices, obligationInvoice)

	var applied []domain.Effect
	for _, invoice := range invoices {
		effect := domain.Evaluate(domain.Snapshot{
			Invoice:           invoice,
			Obligation:        *obligation,
			Version:           *version,
			HasPenaltyInvoice: penalty != nil && penalty.ElicensingInvoiceID != nil,
			Now:               now,
		})
		if effect == nil {
			continue
		}
		if err := s.apply(ctx, obligation, version, *effect); err != nil {
			return applied, err
		}
		applied = append(applied, *effect)
	}
	return applied, nil
}

func (s *Service) apply(ctx context.Context, obligation *obligationdomain.ComplianceObligation, version *compliancereportdomain.ComplianceReportVersion, effect domain.Effect) error {
	if effect.SetPenaltyStatus != nil {
		if err := s.obligations.UpdatePenaltyStatus(ctx, s.db, obligation.ID, *effect.SetPenaltyStatus); err != nil {
			return err
		}
		obligation.PenaltyStatus = *effect.SetPenaltyStatus
	}
	if effect.SetVersionStatus != nil {
		if err := s.versions.UpdateStatus(ctx, s.db, version.ID, *effect.SetVersionStatus); err != nil {
			return err
		}
		version.Status = *effect.SetVersionStatus
	}
	if effect.CreatePenalty {
		if _, err := s.penaltySvc.CreatePenalty(ctx, obligation.ID); err != nil {
			return err
		}
	}
	s.log.Info("status handler fired",
		zap.String("handler", effect.Handler),
		zap.String("obligation_id", obligation.ObligationID),
	)
	return nil
}
