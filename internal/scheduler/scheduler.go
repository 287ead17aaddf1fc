// Package scheduler drives the recurring compliance work: draining the
// eLicensing integration queue, sweeping overdue obligations into penalties,
// and re-deriving compliance statuses from refreshed invoice mirrors.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cleanbc/obps/internal/clock"
	compliancestatusdomain "github.com/cleanbc/obps/internal/compliancestatus/domain"
	integrationdomain "github.com/cleanbc/obps/internal/elicensing/integration/domain"
	"github.com/cleanbc/obps/internal/metrics"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	penaltydomain "github.com/cleanbc/obps/internal/penalty/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const runLockKey = "obps:scheduler:run"

var ErrInvalidConfig = errors.New("scheduler misconfigured")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Config       Config `optional:"true"`
	Integrations integrationdomain.Service
	Obligations  obligationdomain.Repository
	Penalties    penaltydomain.Service
	Status       compliancestatusdomain.Service
	Locker       *Locker `optional:"true"`
}

type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	integrations integrationdomain.Service
	obligations  obligationdomain.Repository
	penalties    penaltydomain.Service
	status       compliancestatusdomain.Service
	locker       *Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Integrations == nil || p.Obligations == nil || p.Penalties == nil || p.Status == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler"),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		integrations: p.Integrations,
		obligations:  p.Obligations,
		penalties:    p.Penalties,
		status:       p.Status,
		locker:       p.Locker,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	start := s.clock.Now()
	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.SchedulerJobRuns.WithLabelValues(name, outcome).Inc()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.log.Warn("job timed out",
				zap.String("job", name),
				zap.Duration("elapsed", elapsed),
			)
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	s.log.Debug("job finished",
		zap.String("job", name),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// RunOnce executes every enabled job a single time. With a locker configured
// the whole pass is held under one lease; a pass that loses the race is
// skipped, not queued.
func (s *Scheduler) RunOnce(parent context.Context) error {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(parent, runLockKey, s.cfg.LockTTL)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Debug("run skipped, another instance holds the lock")
			return nil
		}
		defer func() {
			if err := s.locker.Release(parent, runLockKey, token); err != nil {
				s.log.Warn("lock release failed", zap.Error(err))
			}
		}()
	}

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"integration_queue", s.IntegrationQueueJob},
		{"penalty_sweep", s.PenaltySweepJob},
		{"status_refresh", s.StatusRefreshJob},
	}

	var err error
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// IntegrationQueueJob drains due integration queue rows. Per-row failures
// are absorbed by the queue's own retry bookkeeping; only infrastructure
// errors surface here.
func (s *Scheduler) IntegrationQueueJob(ctx context.Context) error {
	summary, err := s.integrations.ProcessPendingIntegrations(ctx)
	if err != nil {
		return err
	}
	if summary.Processed > 0 {
		s.log.Info("integration queue drained",
			zap.Int("processed", summary.Processed),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
			zap.Int("exhausted", summary.Exhausted),
		)
	}
	return nil
}

// PenaltySweepJob creates the automatic overdue penalty for every obligation
// past its deadline with money still outstanding.
func (s *Scheduler) PenaltySweepJob(ctx context.Context) error {
	overdue, err := s.obligations.ListOverdueUnpaid(ctx, s.db, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	var jobErr error
	created := 0
	for _, obligation := range overdue {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		if _, err := s.penalties.CreatePenalty(ctx, obligation.ID); err != nil {
			// A balance settled between the listing and the penalty
			// computation is not a failure.
			if errors.Is(err, penaltydomain.ErrNotOverdue) {
				continue
			}
			jobErr = errors.Join(jobErr, err)
			s.log.Warn("penalty creation failed",
				zap.String("obligation_id", obligation.ID.String()),
				zap.Error(err),
			)
			continue
		}
		created++
	}
	if created > 0 {
		s.log.Info("penalty sweep finished", zap.Int("created", created))
	}
	return jobErr
}

// StatusRefreshJob re-derives compliance and penalty statuses for versions
// that can still change, refreshing their invoice mirrors on the way.
func (s *Scheduler) StatusRefreshJob(ctx context.Context) error {
	ids, err := s.obligations.ListActiveReportVersionIDs(ctx, s.db, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	var jobErr error
	for _, id := range ids {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		if _, err := s.status.RunPass(ctx, id); err != nil {
			jobErr = errors.Join(jobErr, err)
			s.log.Warn("status pass failed",
				zap.String("version_id", id.String()),
				zap.Error(err),
			)
		}
	}
	return jobErr
}
