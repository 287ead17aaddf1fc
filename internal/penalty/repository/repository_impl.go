package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/penalty/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, penalty *domain.CompliancePenalty) error {
	return db.WithContext(ctx).Create(penalty).Error
}

func (r *repo) FindByObligationID(ctx context.Context, db *gorm.DB, obligationID snowflake.ID) (*domain.CompliancePenalty, error) {
	var penalty domain.CompliancePenalty
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM compliance_penalties WHERE compliance_obligation_id = ?`, obligationID,
	).Scan(&penalty).Error
	if err != nil {
		return nil, err
	}
	if penalty.ID == 0 {
		return nil, nil
	}
	return &penalty, nil
}

func (r *repo) LinkInvoice(ctx context.Context, db *gorm.DB, penaltyID, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&domain.CompliancePenalty{}).
		Where("id = ?", penaltyID).
		Update("elicensing_invoice_id", invoiceID).Error
}
