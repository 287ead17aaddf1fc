package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/cleanbc/obps/internal/clock"
	"github.com/cleanbc/obps/internal/config"
	"github.com/cleanbc/obps/internal/elicensing/api"
	clientsyncdomain "github.com/cleanbc/obps/internal/elicensing/clientsync/domain"
	integrationdomain "github.com/cleanbc/obps/internal/elicensing/integration/domain"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	invoicerepo "github.com/cleanbc/obps/internal/elicensing/invoice/repository"
	invoiceservice "github.com/cleanbc/obps/internal/elicensing/invoice/service"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	obligationrepo "github.com/cleanbc/obps/internal/obligation/repository"
	"github.com/cleanbc/obps/internal/penalty/domain"
	"github.com/cleanbc/obps/internal/penalty/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubElicensing struct {
	outstanding decimal.Decimal
}

func (s *stubElicensing) CreateClient(ctx context.Context, req api.CreateClientRequest) (api.CreateClientResponse, error) {
	return api.CreateClientResponse{ClientObjectID: "client-1"}, nil
}

func (s *stubElicensing) CreateFees(ctx context.Context, clientObjectID string, req api.CreateFeesRequest) (api.CreateFeesResponse, error) {
	return api.CreateFeesResponse{FeeObjectIDs: []string{"fee-1"}}, nil
}

func (s *stubElicensing) CreateInvoice(ctx context.Context, clientObjectID string, req api.CreateInvoiceRequest) (api.CreateInvoiceResponse, error) {
	return api.CreateInvoiceResponse{InvoiceNumber: "INV-1"}, nil
}

func (s *stubElicensing) QueryInvoice(ctx context.Context, clientObjectID, invoiceNumber string) (api.InvoiceResponse, error) {
	return api.InvoiceResponse{
		InvoiceNumber:             invoiceNumber,
		InvoiceOutstandingBalance: s.outstanding,
		InvoiceFeeBalance:         s.outstanding,
		InvoiceInterestBalance:    decimal.Zero,
	}, nil
}

func (s *stubElicensing) AdjustFees(ctx context.Context, clientObjectID string, req api.AdjustFeesRequest) error {
	return nil
}

type recordingQueue struct {
	penaltyQueued []snowflake.ID
}

func (q *recordingQueue) QueueObligationIntegration(ctx context.Context, db *gorm.DB, obligationID snowflake.ID) error {
	return nil
}

func (q *recordingQueue) QueuePenaltyIntegration(ctx context.Context, db *gorm.DB, obligationID snowflake.ID) error {
	q.penaltyQueued = append(q.penaltyQueued, obligationID)
	return nil
}

func (q *recordingQueue) ProcessObligationIntegration(ctx context.Context, jobID snowflake.ID) error {
	return nil
}

func (q *recordingQueue) ProcessPendingIntegrations(ctx context.Context) (integrationdomain.Summary, error) {
	return integrationdomain.Summary{}, nil
}

type penaltyFixture struct {
	svc   *Service
	db    *gorm.DB
	node  *snowflake.Node
	queue *recordingQueue
	clock *clock.FakeClock
}

func newPenaltyFixture(t *testing.T, now time.Time, outstanding string) *penaltyFixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&domain.CompliancePenalty{},
		&obligationdomain.ComplianceObligation{},
		&clientsyncdomain.ElicensingClientOperator{},
		&invoicedomain.ElicensingInvoice{},
		&invoicedomain.ElicensingLineItem{},
		&invoicedomain.ElicensingPayment{},
		&invoicedomain.ElicensingAdjustment{},
		&invoicedomain.ElicensingInterestRate{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClk := clock.NewFakeClock(now)
	queue := &recordingQueue{}
	obligations := obligationrepo.Provide()

	invoices := invoiceservice.New(invoiceservice.Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClk,
		Config: config.Config{
			InvoiceFreshnessWindow: 30 * time.Second,
		},
		API:            &stubElicensing{outstanding: decimal.RequireFromString(outstanding)},
		Repo:           invoicerepo.Provide(),
		ObligationRepo: obligations,
	})

	svc := New(Params{
		DB:          gdb,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fakeClk,
		Repo:        repository.Provide(),
		Obligations: obligations,
		Invoices:    invoices,
		Queue:       queue,
	}).(*Service)

	return &penaltyFixture{svc: svc, db: gdb, node: node, queue: queue, clock: fakeClk}
}

func (f *penaltyFixture) seedOverdueObligation(t *testing.T, deadline time.Time) obligationdomain.ComplianceObligation {
	t.Helper()
	mapping := clientsyncdomain.ElicensingClientOperator{
		ID:             f.node.Generate(),
		OperatorID:     f.node.Generate(),
		ClientObjectID: "client-1",
		ClientGUID:     "guid-1",
	}
	require.NoError(t, f.db.Create(&mapping).Error)

	invoice := invoicedomain.ElicensingInvoice{
		ID:                         f.node.Generate(),
		InvoiceNumber:              "INV-1",
		ElicensingClientOperatorID: mapping.ID,
		Role:                       invoicedomain.RoleObligation,
		DueDate:                    deadline,
		OutstandingBalance:         decimal.Zero,
		InvoiceFeeBalance:          decimal.Zero,
		InvoiceInterestBalance:     decimal.Zero,
		LastRefreshed:              deadline.AddDate(0, 0, -30),
	}
	require.NoError(t, f.db.Create(&invoice).Error)

	obligation := obligationdomain.ComplianceObligation{
		ID:                        f.node.Generate(),
		ComplianceReportVersionID: f.node.Generate(),
		OperatorID:                mapping.OperatorID,
		ObligationID:              "23-0001-1-1",
		ReportingYear:             2023,
		FeeAmountDollars:          decimal.RequireFromString("1000.00"),
		FeeDate:                   deadline.AddDate(0, -6, 0),
		ObligationDeadline:        deadline,
		PenaltyStatus:             obligationdomain.PenaltyNone,
		ElicensingInvoiceID:       &invoice.ID,
	}
	require.NoError(t, f.db.Create(&obligation).Error)
	return obligation
}

func (f *penaltyFixture) seedRate(t *testing.T, rate string, start, end time.Time, current bool) {
	t.Helper()
	require.NoError(t, f.db.Create(&invoicedomain.ElicensingInterestRate{
		ID:            f.node.Generate(),
		InterestRate:  decimal.RequireFromString(rate),
		StartDate:     start,
		EndDate:       end,
		IsCurrentRate: current,
	}).Error)
}

func TestCreatePenaltyAccruesDailyInterest(t *testing.T) {
	deadline := time.Date(2024, 11, 30, 23, 59, 59, 0, time.UTC)
	f := newPenaltyFixture(t, time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC), "1000.00")
	ctx := context.Background()

	obligation := f.seedOverdueObligation(t, deadline)
	// 3.65% annual on 1000.00 outstanding is 0.10 per day.
	f.seedRate(t, "0.0365",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), true)

	penalty, err := f.svc.CreatePenalty(ctx, obligation.ID)
	require.NoError(t, err)
	// Dec 1 through Dec 31 inclusive: 31 days at 0.10.
	assert.Equal(t, 31, penalty.AccrualDays)
	assert.Equal(t, "3.10", penalty.PenaltyAmountDollars.StringFixed(2))
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), penalty.AccrualStartDate)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), penalty.AccrualEndDate)
	require.Len(t, f.queue.penaltyQueued, 1)
}

func TestCreatePenaltySpansRatePeriods(t *testing.T) {
	deadline := time.Date(2024, 11, 30, 23, 59, 59, 0, time.UTC)
	f := newPenaltyFixture(t, time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC), "1000.00")
	ctx := context.Background()

	obligation := f.seedOverdueObligation(t, deadline)
	// 0.10/day through Dec 15, 0.20/day from Dec 16.
	f.seedRate(t, "0.0365",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC), false)
	f.seedRate(t, "0.0730",
		time.Date(2024, 12, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), true)

	penalty, err := f.svc.CreatePenalty(ctx, obligation.ID)
	require.NoError(t, err)
	// 15 days at 0.10 plus 16 days at 0.20.
	assert.Equal(t, "4.70", penalty.PenaltyAmountDollars.StringFixed(2))
}

func TestCreatePenaltyIdempotent(t *testing.T) {
	deadline := time.Date(2024, 11, 30, 23, 59, 59, 0, time.UTC)
	f := newPenaltyFixture(t, time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC), "1000.00")
	ctx := context.Background()

	obligation := f.seedOverdueObligation(t, deadline)
	f.seedRate(t, "0.0365",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), true)

	first, err := f.svc.CreatePenalty(ctx, obligation.ID)
	require.NoError(t, err)
	second, err := f.svc.CreatePenalty(ctx, obligation.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, f.db.Model(&domain.CompliancePenalty{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Len(t, f.queue.penaltyQueued, 1)
}

func TestCreatePenaltyNotOverdue(t *testing.T) {
	deadline := time.Date(2025, 11, 30, 23, 59, 59, 0, time.UTC)
	f := newPenaltyFixture(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), "1000.00")
	ctx := context.Background()

	obligation := f.seedOverdueObligation(t, deadline)
	_, err := f.svc.CreatePenalty(ctx, obligation.ID)
	assert.ErrorIs(t, err, domain.ErrNotOverdue)
}

func TestCreatePenaltyMissingRate(t *testing.T) {
	deadline := time.Date(2024, 11, 30, 23, 59, 59, 0, time.UTC)
	f := newPenaltyFixture(t, time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC), "1000.00")
	ctx := context.Background()

	obligation := f.seedOverdueObligation(t, deadline)
	// Rate period ends before the accrual window does.
	f.seedRate(t, "0.0365",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC), false)

	_, err := f.svc.CreatePenalty(ctx, obligation.ID)
	assert.ErrorIs(t, err, domain.ErrNoRateForDate)
}
