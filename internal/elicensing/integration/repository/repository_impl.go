package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/elicensing/integration/domain"
	"github.com/cleanbc/obps/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) GetOrCreate(ctx context.Context, gdb *gorm.DB, job *domain.IntegrationJob) (bool, error) {
	var existing domain.IntegrationJob
	err := gdb.WithContext(ctx).Raw(
		`SELECT * FROM elicensing_integration_queue
		 WHERE compliance_obligation_id = ? AND invoice_role = ?`,
		job.ComplianceObligationID, job.InvoiceRole,
	).Scan(&existing).Error
	if err != nil {
		return false, err
	}
	if existing.ID != 0 {
		*job = existing
		return false, nil
	}

	if err := gdb.WithContext(ctx).Create(job).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Concurrent enqueue won; adopt its row.
			return false, gdb.WithContext(ctx).Raw(
				`SELECT * FROM elicensing_integration_queue
				 WHERE compliance_obligation_id = ? AND invoice_role = ?`,
				job.ComplianceObligationID, job.InvoiceRole,
			).Scan(job).Error
		}
		return false, err
	}
	return true, nil
}

func (r *repo) FindByID(ctx context.Context, gdb *gorm.DB, id snowflake.ID) (*domain.IntegrationJob, error) {
	var job domain.IntegrationJob
	err := gdb.WithContext(ctx).Raw(
		`SELECT * FROM elicensing_integration_queue WHERE id = ?`, id,
	).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) ListDue(ctx context.Context, gdb *gorm.DB, now time.Time, maxRetries, limit int) ([]domain.IntegrationJob, error) {
	var jobs []domain.IntegrationJob
	err := gdb.WithContext(ctx).Raw(
		`SELECT * FROM elicensing_integration_queue
		 WHERE status IN (?, ?)
		   AND retry_count < ?
		   AND next_retry_at <= ?
		 ORDER BY created_at ASC
		 LIMIT ?`,
		domain.StatusPending, domain.StatusFailed, maxRetries, now, limit,
	).Scan(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) Update(ctx context.Context, gdb *gorm.DB, job *domain.IntegrationJob) error {
	return gdb.WithContext(ctx).Save(job).Error
}
