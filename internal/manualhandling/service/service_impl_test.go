package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/cleanbc/obps/internal/clock"
	"github.com/cleanbc/obps/internal/manualhandling/domain"
	"github.com/cleanbc/obps/internal/manualhandling/repository"
	"github.com/cleanbc/obps/pkg/rls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	analyst  = domain.Actor{Name: "cas analyst", Role: rls.RoleCASAnalyst}
	director = domain.Actor{Name: "cas director", Role: rls.RoleCASDirector}
)

func newService(t *testing.T) (*Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.ComplianceReportVersionManualHandling{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	}).(*Service)
	return svc, gdb, node
}

func TestGetOrCreateIdempotent(t *testing.T) {
	svc, gdb, node := newService(t)
	ctx := context.Background()
	versionID := node.Generate()

	first, err := svc.GetOrCreate(ctx, versionID, domain.HandlingObligation, domain.ContextObligationRefundPoolCash)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionPendingManualHandling, first.DirectorDecision)

	// A second touch with a different context keeps the original record.
	second, err := svc.GetOrCreate(ctx, versionID, domain.HandlingEarnedCredits, domain.ContextEarnedCreditsPreviouslyApproved)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.ContextObligationRefundPoolCash, second.Context)

	var count int64
	require.NoError(t, gdb.Model(&domain.ComplianceReportVersionManualHandling{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAnalystBlockedAfterResolution(t *testing.T) {
	svc, _, node := newService(t)
	ctx := context.Background()
	versionID := node.Generate()

	_, err := svc.GetOrCreate(ctx, versionID, domain.HandlingObligation, domain.ContextObligationRefundPoolCash)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateAnalyst(ctx, versionID, analyst, "refund owed, verified amounts"))
	require.NoError(t, svc.UpdateDirector(ctx, versionID, director, domain.DecisionIssueResolved, "refund issued"))

	err = svc.UpdateAnalyst(ctx, versionID, analyst, "late edit")
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	record, err := svc.GetByReportVersionID(ctx, versionID)
	require.NoError(t, err)
	assert.Equal(t, "refund owed, verified amounts", record.AnalystComment)
	assert.Equal(t, domain.DecisionIssueResolved, record.DirectorDecision)
}

func TestResolutionRequiresComment(t *testing.T) {
	svc, _, node := newService(t)
	ctx := context.Background()
	versionID := node.Generate()

	_, err := svc.GetOrCreate(ctx, versionID, domain.HandlingObligation, domain.ContextObligationRefundPoolCash)
	require.NoError(t, err)

	err = svc.UpdateDirector(ctx, versionID, director, domain.DecisionIssueResolved, "")
	assert.ErrorIs(t, err, domain.ErrDecisionNeedsComment)
}

func TestRoleGates(t *testing.T) {
	svc, _, node := newService(t)
	ctx := context.Background()
	versionID := node.Generate()

	_, err := svc.GetOrCreate(ctx, versionID, domain.HandlingObligation, domain.ContextObligationRefundPoolCash)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.UpdateAnalyst(ctx, versionID, director, "x"), domain.ErrForbiddenRole)
	assert.ErrorIs(t, svc.UpdateDirector(ctx, versionID, analyst, domain.DecisionPendingManualHandling, ""), domain.ErrForbiddenRole)
}
