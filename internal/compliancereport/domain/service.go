package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (ComplianceReportVersion, error)
	// SetStatus is the single mutation point for version status; every
	// transition is logged with its trigger.
	SetStatus(ctx context.Context, id snowflake.ID, status ComplianceStatus, trigger string) error
	// PreviousVersions walks the supplementary chain from id back to the
	// initial submission, oldest first.
	PreviousVersions(ctx context.Context, id snowflake.ID) ([]ComplianceReportVersion, error)
	// SetRequiresManualHandling flags a version for human review.
	SetRequiresManualHandling(ctx context.Context, id snowflake.ID) error
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ComplianceReportVersion, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status ComplianceStatus) error
	SetRequiresManualHandling(ctx context.Context, db *gorm.DB, id snowflake.ID, v bool) error
}

var ErrVersionNotFound = errors.New("compliance_report_version_not_found")
