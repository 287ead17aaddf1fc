package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/cleanbc/obps/internal/clock"
	"github.com/cleanbc/obps/internal/config"
	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	compliancereportrepo "github.com/cleanbc/obps/internal/compliancereport/repository"
	"github.com/cleanbc/obps/internal/elicensing/api"
	clientsyncdomain "github.com/cleanbc/obps/internal/elicensing/clientsync/domain"
	clientsyncservice "github.com/cleanbc/obps/internal/elicensing/clientsync/service"
	"github.com/cleanbc/obps/internal/elicensing/integration/domain"
	integrationrepo "github.com/cleanbc/obps/internal/elicensing/integration/repository"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	invoicerepo "github.com/cleanbc/obps/internal/elicensing/invoice/repository"
	invoiceservice "github.com/cleanbc/obps/internal/elicensing/invoice/service"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	obligationrepo "github.com/cleanbc/obps/internal/obligation/repository"
	penaltydomain "github.com/cleanbc/obps/internal/penalty/domain"
	penaltyrepo "github.com/cleanbc/obps/internal/penalty/repository"
	registrydomain "github.com/cleanbc/obps/internal/registry/domain"
	registryrepo "github.com/cleanbc/obps/internal/registry/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeElicensing is an in-memory stand-in for the external billing system.
// Failures are injected per operation and cleared by the test when the
// "outage" ends.
type fakeElicensing struct {
	clientCalls  int
	feeCalls     int
	invoiceCalls int
	queryCalls   int

	failCreateFees    error
	failCreateInvoice error
	failQuery         error

	outstanding decimal.Decimal
	dueDate     time.Time
}

func (f *fakeElicensing) CreateClient(ctx context.Context, req api.CreateClientRequest) (api.CreateClientResponse, error) {
	f.clientCalls++
	return api.CreateClientResponse{ClientObjectID: "client-1", ClientGUID: req.ClientGUID}, nil
}

func (f *fakeElicensing) CreateFees(ctx context.Context, clientObjectID string, req api.CreateFeesRequest) (api.CreateFeesResponse, error) {
	f.feeCalls++
	if f.failCreateFees != nil {
		return api.CreateFeesResponse{}, f.failCreateFees
	}
	return api.CreateFeesResponse{
		ClientObjectID: clientObjectID,
		FeeObjectIDs:   []string{fmt.Sprintf("fee-%d", f.feeCalls)},
	}, nil
}

func (f *fakeElicensing) CreateInvoice(ctx context.Context, clientObjectID string, req api.CreateInvoiceRequest) (api.CreateInvoiceResponse, error) {
	f.invoiceCalls++
	if f.failCreateInvoice != nil {
		return api.CreateInvoiceResponse{}, f.failCreateInvoice
	}
	f.dueDate = req.PaymentDueDate
	return api.CreateInvoiceResponse{InvoiceNumber: fmt.Sprintf("INV-%d", f.invoiceCalls)}, nil
}

func (f *fakeElicensing) QueryInvoice(ctx context.Context, clientObjectID, invoiceNumber string) (api.InvoiceResponse, error) {
	f.queryCalls++
	if f.failQuery != nil {
		return api.InvoiceResponse{}, f.failQuery
	}
	return api.InvoiceResponse{
		InvoiceNumber:             invoiceNumber,
		PaymentDueDate:            f.dueDate,
		InvoiceOutstandingBalance: f.outstanding,
		InvoiceFeeBalance:         f.outstanding,
		InvoiceInterestBalance:    decimal.Zero,
		Fees: []api.FeeResponse{{
			FeeObjectID: "fee-1",
			FeeType:     "OBPS Compliance Obligation",
			FeeDate:     f.dueDate,
			BaseAmount:  f.outstanding,
		}},
	}, nil
}

func (f *fakeElicensing) AdjustFees(ctx context.Context, clientObjectID string, req api.AdjustFeesRequest) error {
	return nil
}

type fixture struct {
	svc   *Service
	db    *gorm.DB
	node  *snowflake.Node
	fake  *fakeElicensing
	clock *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&domain.IntegrationJob{},
		&obligationdomain.ComplianceObligation{},
		&penaltydomain.CompliancePenalty{},
		&compliancereportdomain.ComplianceReportVersion{},
		&clientsyncdomain.ElicensingClientOperator{},
		&invoicedomain.ElicensingInvoice{},
		&invoicedomain.ElicensingLineItem{},
		&invoicedomain.ElicensingPayment{},
		&invoicedomain.ElicensingAdjustment{},
		&registrydomain.Operator{},
		&registrydomain.Operation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClk := clock.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	fake := &fakeElicensing{outstanding: decimal.RequireFromString("800.00")}

	cfg := config.Config{
		InvoiceFreshnessWindow: 30 * time.Second,
		IntegrationMaxRetries:  3,
		IntegrationRetryBase:   time.Minute,
		IntegrationRetryCap:    time.Hour,
	}

	clients := clientsyncservice.New(clientsyncservice.Params{
		DB: gdb, Log: zap.NewNop(), GenID: node, API: fake, Registry: registryrepo.Provide(),
	})
	obligations := obligationrepo.Provide()
	invoices := invoiceservice.New(invoiceservice.Params{
		DB: gdb, Log: zap.NewNop(), GenID: node, Clock: fakeClk, Config: cfg,
		API: fake, Repo: invoicerepo.Provide(), ObligationRepo: obligations,
	})

	svc := New(Params{
		DB:          gdb,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fakeClk,
		Config:      cfg,
		Repo:        integrationrepo.Provide(),
		API:         fake,
		Clients:     clients,
		Invoices:    invoices,
		Obligations: obligations,
		Penalties:   penaltyrepo.Provide(),
		Versions:    compliancereportrepo.Provide(),
	}).(*Service)

	return &fixture{svc: svc, db: gdb, node: node, fake: fake, clock: fakeClk}
}

func (f *fixture) seedObligation(t *testing.T) obligationdomain.ComplianceObligation {
	t.Helper()
	operator := registrydomain.Operator{ID: f.node.Generate(), LegalName: "Acme Smelting Ltd."}
	require.NoError(t, f.db.Create(&operator).Error)

	version := compliancereportdomain.ComplianceReportVersion{
		ID:            f.node.Generate(),
		ReportID:      f.node.Generate(),
		OperationID:   f.node.Generate(),
		VersionNumber: 1,
		ReportingYear: 2024,
		Status:        compliancereportdomain.StatusObligationPendingInvoiceCreation,
		ExcessEmissions:        decimal.RequireFromString("10"),
		CreditedEmissions:      decimal.Zero,
		ExcessEmissionsDelta:   decimal.Zero,
		CreditedEmissionsDelta: decimal.Zero,
	}
	require.NoError(t, f.db.Create(&version).Error)

	obligation := obligationdomain.ComplianceObligation{
		ID:                        f.node.Generate(),
		ComplianceReportVersionID: version.ID,
		OperatorID:                operator.ID,
		ObligationID:              "23-0001-" + version.ReportID.String() + "-1",
		ReportingYear:             2024,
		FeeAmountDollars:          decimal.RequireFromString("800.00"),
		FeeDate:                   f.clock.Now(),
		ObligationDeadline:        time.Date(2025, 11, 30, 23, 59, 59, 0, time.UTC),
		PenaltyStatus:             obligationdomain.PenaltyNone,
	}
	require.NoError(t, f.db.Create(&obligation).Error)
	return obligation
}

func (f *fixture) versionStatus(t *testing.T, id snowflake.ID) compliancereportdomain.ComplianceStatus {
	t.Helper()
	var version compliancereportdomain.ComplianceReportVersion
	require.NoError(t, f.db.First(&version, "id = ?", id).Error)
	return version.Status
}

func (f *fixture) job(t *testing.T, obligationID snowflake.ID) domain.IntegrationJob {
	t.Helper()
	var job domain.IntegrationJob
	require.NoError(t, f.db.First(&job, "compliance_obligation_id = ?", obligationID).Error)
	return job
}

func TestIntegrationHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obligation := f.seedObligation(t)

	require.NoError(t, f.svc.QueueObligationIntegration(ctx, f.db, obligation.ID))
	summary, err := f.svc.ProcessPendingIntegrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Summary{Processed: 1, Succeeded: 1}, summary)

	job := f.job(t, obligation.ID)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, "INV-1", job.InvoiceNumber)

	var reloaded obligationdomain.ComplianceObligation
	require.NoError(t, f.db.First(&reloaded, "id = ?", obligation.ID).Error)
	require.NotNil(t, reloaded.ElicensingInvoiceID)

	var invoice invoicedomain.ElicensingInvoice
	require.NoError(t, f.db.First(&invoice, "id = ?", *reloaded.ElicensingInvoiceID).Error)
	assert.Equal(t, "INV-1", invoice.InvoiceNumber)
	assert.Equal(t, invoicedomain.RoleObligation, invoice.Role)

	assert.Equal(t, compliancereportdomain.StatusObligationNotMet,
		f.versionStatus(t, obligation.ComplianceReportVersionID))
}

func TestEnqueueIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obligation := f.seedObligation(t)

	require.NoError(t, f.svc.QueueObligationIntegration(ctx, f.db, obligation.ID))
	require.NoError(t, f.svc.QueueObligationIntegration(ctx, f.db, obligation.ID))

	var count int64
	require.NoError(t, f.db.Model(&domain.IntegrationJob{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRetryRecoversInvoiceNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obligation := f.seedObligation(t)

	require.NoError(t, f.svc.QueueObligationIntegration(ctx, f.db, obligation.ID))

	// Invoice creation succeeds externally but the mirror query fails:
	// the attempt fails after the invoice number is recorded.
	f.fake.failQuery = fmt.Errorf("%w: timeout", api.ErrTransient)
	summary, err := f.svc.ProcessPendingIntegrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	job := f.job(t, obligation.ID)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, "INV-1", job.InvoiceNumber)
	assert.NotEmpty(t, job.LastError)
	assert.Equal(t, compliancereportdomain.StatusObligationPendingInvoiceCreation,
		f.versionStatus(t, obligation.ComplianceReportVersionID))

	// Backoff: nothing is due until next_retry_at passes.
	summary, err = f.svc.ProcessPendingIntegrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)

	// Outage ends; the retry resumes with the recorded invoice number
	// instead of creating a second external invoice.
	f.fake.failQuery = nil
	f.clock.Advance(3 * time.Minute)
	summary, err = f.svc.ProcessPendingIntegrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)

	assert.Equal(t, 1, f.fake.invoiceCalls)
	assert.Equal(t, 1, f.fake.feeCalls)
	assert.Equal(t, domain.StatusCompleted, f.job(t, obligation.ID).Status)
}

func TestMaxRetriesExceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obligation := f.seedObligation(t)

	require.NoError(t, f.svc.QueueObligationIntegration(ctx, f.db, obligation.ID))
	f.fake.failCreateFees = fmt.Errorf("%w: connection refused", api.ErrTransient)

	for i := 0; i < 3; i++ {
		f.clock.Advance(2 * time.Hour)
		_, err := f.svc.ProcessPendingIntegrations(ctx)
		require.NoError(t, err)
	}

	job := f.job(t, obligation.ID)
	assert.Equal(t, domain.StatusMaxRetriesExceeded, job.Status)
	assert.Equal(t, 3, job.RetryCount)

	var history []domain.AttemptError
	require.NoError(t, json.Unmarshal(job.ErrorHistory, &history))
	require.Len(t, history, 3)
	assert.Contains(t, history[2].Error, "connection refused")

	// Exhausted rows are never picked up again.
	f.clock.Advance(24 * time.Hour)
	summary, err := f.svc.ProcessPendingIntegrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
}

func TestFailingRowDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.seedObligation(t)
	second := f.seedObligation(t)

	require.NoError(t, f.svc.QueueObligationIntegration(ctx, f.db, first.ID))
	require.NoError(t, f.svc.QueueObligationIntegration(ctx, f.db, second.ID))

	f.fake.failCreateFees = fmt.Errorf("%w: flaky", api.ErrTransient)

	summary, err := f.svc.ProcessPendingIntegrations(ctx)
	require.NoError(t, err)
	// Both rows attempted despite failures.
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Failed)

	f.fake.failCreateFees = nil
	f.clock.Advance(5 * time.Minute)
	summary, err = f.svc.ProcessPendingIntegrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
}

func TestExponentialBackoffCapped(t *testing.T) {
	backoff := domain.ExponentialBackoff(time.Minute, time.Hour)
	assert.Equal(t, time.Minute, backoff(0))
	assert.Equal(t, 2*time.Minute, backoff(1))
	assert.Equal(t, 4*time.Minute, backoff(2))
	assert.Equal(t, 32*time.Minute, backoff(5))
	assert.Equal(t, time.Hour, backoff(6))
	assert.Equal(t, time.Hour, backoff(20))
}
