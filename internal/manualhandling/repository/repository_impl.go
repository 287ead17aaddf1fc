package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/manualhandling/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.ComplianceReportVersionManualHandling) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByReportVersionID(ctx context.Context, db *gorm.DB, versionID snowflake.ID) (*domain.ComplianceReportVersionManualHandling, error) {
	var record domain.ComplianceReportVersionManualHandling
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM compliance_report_version_manual_handlings
		 WHERE compliance_report_version_id = ?`, versionID,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, record *domain.ComplianceReportVersionManualHandling) error {
	return db.WithContext(ctx).Save(record).Error
}
