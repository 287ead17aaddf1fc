package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/compliancereport/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ComplianceReportVersion, error) {
	var version domain.ComplianceReportVersion
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM compliance_report_versions WHERE id = ?`, id,
	).Scan(&version).Error
	if err != nil {
		return nil, err
	}
	if version.ID == 0 {
		return nil, nil
	}
	return &version, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.ComplianceStatus) error {
	return db.WithContext(ctx).Exec(
		`UPDATE compliance_report_versions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	).Error
}

func (r *repo) SetRequiresManualHandling(ctx context.Context, db *gorm.DB, id snowflake.ID, v bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE compliance_report_versions SET requires_manual_handling = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		v, id,
	).Error
}
