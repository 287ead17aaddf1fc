package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/cleanbc/obps/internal/clock"
	complianceperioddomain "github.com/cleanbc/obps/internal/complianceperiod/domain"
	periodservice "github.com/cleanbc/obps/internal/complianceperiod/service"
	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	compliancereportrepo "github.com/cleanbc/obps/internal/compliancereport/repository"
	earnedcreditdomain "github.com/cleanbc/obps/internal/earnedcredit/domain"
	earnedcreditrepo "github.com/cleanbc/obps/internal/earnedcredit/repository"
	"github.com/cleanbc/obps/internal/obligation/domain"
	obligationrepo "github.com/cleanbc/obps/internal/obligation/repository"
	"github.com/cleanbc/obps/internal/providers/email"
	registrydomain "github.com/cleanbc/obps/internal/registry/domain"
	registryrepo "github.com/cleanbc/obps/internal/registry/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingEnqueuer struct {
	queued []snowflake.ID
}

func (e *recordingEnqueuer) QueueObligationIntegration(ctx context.Context, db *gorm.DB, obligationID snowflake.ID) error {
	e.queued = append(e.queued, obligationID)
	return nil
}

type factoryFixture struct {
	svc      *Service
	db       *gorm.DB
	node     *snowflake.Node
	enqueuer *recordingEnqueuer
	clock    *clock.FakeClock
}

func newFactory(t *testing.T) *factoryFixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&domain.ComplianceObligation{},
		&earnedcreditdomain.ComplianceEarnedCredit{},
		&compliancereportdomain.ComplianceReportVersion{},
		&complianceperioddomain.CompliancePeriod{},
		&complianceperioddomain.ComplianceChargeRate{},
		&registrydomain.Operator{},
		&registrydomain.Operation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	enq := &recordingEnqueuer{}

	periods := periodservice.New(periodservice.Params{DB: gdb, Log: zap.NewNop(), GenID: node})

	svc := New(Params{
		DB:       gdb,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Repo:     obligationrepo.Provide(),
		Credits:  earnedcreditrepo.Provide(),
		Versions: compliancereportrepo.Provide(),
		Periods:  periods,
		Registry: registryrepo.Provide(),
		Enqueuer: enq,
		Email:    email.NoOpProvider{},
	}).(*Service)

	return &factoryFixture{svc: svc, db: gdb, node: node, enqueuer: enq, clock: fake}
}

func (f *factoryFixture) seedOperation(t *testing.T, boroID *string) registrydomain.Operation {
	t.Helper()
	operator := registrydomain.Operator{ID: f.node.Generate(), LegalName: "Acme Smelting Ltd."}
	require.NoError(t, f.db.Create(&operator).Error)
	operation := registrydomain.Operation{
		ID:         f.node.Generate(),
		OperatorID: operator.ID,
		Name:       "Acme Smelter",
		BoroID:     boroID,
	}
	require.NoError(t, f.db.Create(&operation).Error)
	return operation
}

func (f *factoryFixture) seedVersion(t *testing.T, operationID snowflake.ID, excess, credited string) compliancereportdomain.ComplianceReportVersion {
	t.Helper()
	version := compliancereportdomain.ComplianceReportVersion{
		ID:                f.node.Generate(),
		ReportID:          f.node.Generate(),
		OperationID:       operationID,
		VersionNumber:     1,
		ReportingYear:     2024,
		Status:            compliancereportdomain.StatusNoObligationOrEarnedCredits,
		ExcessEmissions:   decimal.RequireFromString(excess),
		CreditedEmissions: decimal.RequireFromString(credited),
		ExcessEmissionsDelta:   decimal.Zero,
		CreditedEmissionsDelta: decimal.Zero,
	}
	require.NoError(t, f.db.Create(&version).Error)
	return version
}

func (f *factoryFixture) seedRate(t *testing.T, year int, rate string) {
	t.Helper()
	require.NoError(t, f.db.Create(&complianceperioddomain.ComplianceChargeRate{
		ID:            f.node.Generate(),
		ReportingYear: year,
		Rate:          decimal.RequireFromString(rate),
	}).Error)
}

func TestFactoryCreatesObligation(t *testing.T) {
	f := newFactory(t)
	ctx := context.Background()

	boro := "23-0001"
	operation := f.seedOperation(t, &boro)
	f.seedRate(t, 2024, "80.00")
	version := f.seedVersion(t, operation.ID, "125.005", "0")

	outcome, err := f.svc.CreateForReportVersion(ctx, version.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeObligation, outcome)

	obligation, err := f.svc.GetByReportVersionID(ctx, version.ID)
	require.NoError(t, err)
	// round_half_up(125.005 * 80.00) = 10000.40
	assert.Equal(t, "10000.40", obligation.FeeAmountDollars.StringFixed(2))
	assert.Equal(t, time.Date(2025, time.November, 30, 23, 59, 59, 0, time.UTC), obligation.ObligationDeadline)
	assert.Equal(t, "23-0001-"+version.ReportID.String()+"-1", obligation.ObligationID)
	assert.Equal(t, domain.PenaltyNone, obligation.PenaltyStatus)

	require.Len(t, f.enqueuer.queued, 1)
	assert.Equal(t, obligation.ID, f.enqueuer.queued[0])

	var reloaded compliancereportdomain.ComplianceReportVersion
	require.NoError(t, f.db.First(&reloaded, "id = ?", version.ID).Error)
	assert.Equal(t, compliancereportdomain.StatusObligationPendingInvoiceCreation, reloaded.Status)
}

func TestFactoryCreatesEarnedCredit(t *testing.T) {
	f := newFactory(t)
	ctx := context.Background()

	boro := "23-0002"
	operation := f.seedOperation(t, &boro)
	version := f.seedVersion(t, operation.ID, "0", "42.9")

	outcome, err := f.svc.CreateForReportVersion(ctx, version.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeEarnedCredit, outcome)

	var credit earnedcreditdomain.ComplianceEarnedCredit
	require.NoError(t, f.db.First(&credit, "compliance_report_version_id = ?", version.ID).Error)
	// Fractional tonnes are floored, never issued.
	assert.Equal(t, int64(42), credit.EarnedCreditsAmount)
	assert.Equal(t, earnedcreditdomain.StatusCreditsNotIssued, credit.IssuanceStatus)
	assert.Empty(t, f.enqueuer.queued)

	var reloaded compliancereportdomain.ComplianceReportVersion
	require.NoError(t, f.db.First(&reloaded, "id = ?", version.ID).Error)
	assert.Equal(t, compliancereportdomain.StatusEarnedCredits, reloaded.Status)
}

func TestFactoryNoObligationOrCredits(t *testing.T) {
	f := newFactory(t)
	ctx := context.Background()

	boro := "23-0003"
	operation := f.seedOperation(t, &boro)
	version := f.seedVersion(t, operation.ID, "0", "0")

	outcome, err := f.svc.CreateForReportVersion(ctx, version.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNone, outcome)

	_, err = f.svc.GetByReportVersionID(ctx, version.ID)
	assert.ErrorIs(t, err, domain.ErrObligationNotFound)
}

func TestFactoryIdempotent(t *testing.T) {
	f := newFactory(t)
	ctx := context.Background()

	boro := "23-0004"
	operation := f.seedOperation(t, &boro)
	f.seedRate(t, 2024, "80.00")
	version := f.seedVersion(t, operation.ID, "10", "0")

	_, err := f.svc.CreateForReportVersion(ctx, version.ID)
	require.NoError(t, err)
	outcome, err := f.svc.CreateForReportVersion(ctx, version.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeObligation, outcome)

	var count int64
	require.NoError(t, f.db.Model(&domain.ComplianceObligation{}).
		Where("compliance_report_version_id = ?", version.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	// Exactly one enqueue despite the second invocation.
	assert.Len(t, f.enqueuer.queued, 1)
}

func TestFactoryMissingBoroID(t *testing.T) {
	f := newFactory(t)
	ctx := context.Background()

	operation := f.seedOperation(t, nil)
	f.seedRate(t, 2024, "80.00")
	version := f.seedVersion(t, operation.ID, "10", "0")

	_, err := f.svc.CreateForReportVersion(ctx, version.ID)
	assert.ErrorIs(t, err, domain.ErrMissingBoroID)
}

func TestFactoryMissingChargeRate(t *testing.T) {
	f := newFactory(t)
	ctx := context.Background()

	boro := "23-0005"
	operation := f.seedOperation(t, &boro)
	version := f.seedVersion(t, operation.ID, "10", "0")

	_, err := f.svc.CreateForReportVersion(ctx, version.ID)
	assert.ErrorIs(t, err, complianceperioddomain.ErrChargeRateNotFound)
}
