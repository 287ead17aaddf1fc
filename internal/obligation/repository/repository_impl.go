package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/obligation/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, obligation *domain.ComplianceObligation) error {
	return db.WithContext(ctx).Create(obligation).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ComplianceObligation, error) {
	var obligation domain.ComplianceObligation
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM compliance_obligations WHERE id = ?`, id,
	).Scan(&obligation).Error
	if err != nil {
		return nil, err
	}
	if obligation.ID == 0 {
		return nil, nil
	}
	return &obligation, nil
}

func (r *repo) FindByReportVersionID(ctx context.Context, db *gorm.DB, versionID snowflake.ID) (*domain.ComplianceObligation, error) {
	var obligation domain.ComplianceObligation
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM compliance_obligations WHERE compliance_report_version_id = ?`, versionID,
	).Scan(&obligation).Error
	if err != nil {
		return nil, err
	}
	if obligation.ID == 0 {
		return nil, nil
	}
	return &obligation, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ComplianceObligation, error) {
	var obligation domain.ComplianceObligation
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&obligation).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &obligation, nil
}

func (r *repo) LinkInvoice(ctx context.Context, db *gorm.DB, obligationID, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&domain.ComplianceObligation{}).
		Where("id = ?", obligationID).
		Update("elicensing_invoice_id", invoiceID).Error
}

func (r *repo) UpdatePenaltyStatus(ctx context.Context, db *gorm.DB, obligationID snowflake.ID, status domain.PenaltyStatus) error {
	return db.WithContext(ctx).
		Model(&domain.ComplianceObligation{}).
		Where("id = ?", obligationID).
		Update("penalty_status", status).Error
}

func (r *repo) ListOverdueUnpaid(ctx context.Context, db *gorm.DB, limit int) ([]domain.ComplianceObligation, error) {
	var obligations []domain.ComplianceObligation
	err := db.WithContext(ctx).Raw(`
		SELECT o.* FROM compliance_obligations o
		JOIN elicensing_invoices i ON i.id = o.elicensing_invoice_id
		WHERE o.obligation_deadline < CURRENT_TIMESTAMP
		  AND i.outstanding_balance > 0
		  AND i.is_void = FALSE
		ORDER BY o.obligation_deadline ASC
		LIMIT ?`, limit,
	).Scan(&obligations).Error
	if err != nil {
		return nil, err
	}
	return obligations, nil
}

func (r *repo) ListActiveReportVersionIDs(ctx context.Context, db *gorm.DB, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(`
		SELECT o.compliance_report_version_id
		FROM compliance_obligations o
		JOIN compliance_report_versions v ON v.id = o.compliance_report_version_id
		WHERE o.elicensing_invoice_id IS NOT NULL
		  AND (v.status IN ('OBLIGATION_NOT_MET', 'OBLIGATION_ACCRUING_PENALTY')
		       OR o.penalty_status = 'NOT_PAID')
		ORDER BY o.obligation_deadline ASC
		LIMIT ?`, limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
