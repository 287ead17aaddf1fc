package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/earnedcredit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, credit *domain.ComplianceEarnedCredit) error {
	return db.WithContext(ctx).Create(credit).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ComplianceEarnedCredit, error) {
	var credit domain.ComplianceEarnedCredit
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM compliance_earned_credits WHERE id = ?`, id,
	).Scan(&credit).Error
	if err != nil {
		return nil, err
	}
	if credit.ID == 0 {
		return nil, nil
	}
	return &credit, nil
}

func (r *repo) FindByReportVersionID(ctx context.Context, db *gorm.DB, versionID snowflake.ID) (*domain.ComplianceEarnedCredit, error) {
	var credit domain.ComplianceEarnedCredit
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM compliance_earned_credits WHERE compliance_report_version_id = ?`, versionID,
	).Scan(&credit).Error
	if err != nil {
		return nil, err
	}
	if credit.ID == 0 {
		return nil, nil
	}
	return &credit, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, credit *domain.ComplianceEarnedCredit) error {
	return db.WithContext(ctx).Save(credit).Error
}
