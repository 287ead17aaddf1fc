package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/cleanbc/obps/internal/adjustment/domain"
	"github.com/cleanbc/obps/internal/clock"
	complianceperioddomain "github.com/cleanbc/obps/internal/complianceperiod/domain"
	complianceperiodservice "github.com/cleanbc/obps/internal/complianceperiod/service"
	compliancereportdomain "github.com/cleanbc/obps/internal/compliancereport/domain"
	compliancereportrepo "github.com/cleanbc/obps/internal/compliancereport/repository"
	compliancereportservice "github.com/cleanbc/obps/internal/compliancereport/service"
	"github.com/cleanbc/obps/internal/config"
	"github.com/cleanbc/obps/internal/elicensing/api"
	clientsyncdomain "github.com/cleanbc/obps/internal/elicensing/clientsync/domain"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	invoicerepo "github.com/cleanbc/obps/internal/elicensing/invoice/repository"
	invoiceservice "github.com/cleanbc/obps/internal/elicensing/invoice/service"
	manualhandlingdomain "github.com/cleanbc/obps/internal/manualhandling/domain"
	manualhandlingrepo "github.com/cleanbc/obps/internal/manualhandling/repository"
	manualhandlingservice "github.com/cleanbc/obps/internal/manualhandling/service"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	obligationrepo "github.com/cleanbc/obps/internal/obligation/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// billedInvoice is the fake billing system's view of one invoice. AdjustFees
// mutates outstanding so a forced refresh observes the adjusted balance, the
// same way the real system behaves.
type billedInvoice struct {
	feeObjectID string
	outstanding decimal.Decimal
	cashPaid    decimal.Decimal
}

type fakeBilling struct {
	invoices    map[string]*billedInvoice
	failFeeIDs  map[string]bool
	adjustCalls []api.FeeAdjustment
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{
		invoices:   map[string]*billedInvoice{},
		failFeeIDs: map[string]bool{},
	}
}

func (f *fakeBilling) CreateClient(ctx context.Context, req api.CreateClientRequest) (api.CreateClientResponse, error) {
	return api.CreateClientResponse{ClientObjectID: "client-1"}, nil
}

func (f *fakeBilling) CreateFees(ctx context.Context, clientObjectID string, req api.CreateFeesRequest) (api.CreateFeesResponse, error) {
	return api.CreateFeesResponse{FeeObjectIDs: []string{"fee-x"}}, nil
}

func (f *fakeBilling) CreateInvoice(ctx context.Context, clientObjectID string, req api.CreateInvoiceRequest) (api.CreateInvoiceResponse, error) {
	return api.CreateInvoiceResponse{InvoiceNumber: "INV-X"}, nil
}

func (f *fakeBilling) QueryInvoice(ctx context.Context, clientObjectID, invoiceNumber string) (api.InvoiceResponse, error) {
	inv, ok := f.invoices[invoiceNumber]
	if !ok {
		return api.InvoiceResponse{}, fmt.Errorf("unknown invoice %s", invoiceNumber)
	}
	fee := api.FeeResponse{
		FeeObjectID: inv.feeObjectID,
		FeeType:     "OBPS Compliance Obligation",
		FeeDate:     time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC),
		BaseAmount:  inv.outstanding.Add(inv.cashPaid),
	}
	if inv.cashPaid.IsPositive() {
		fee.Payments = []api.PaymentResponse{{
			PaymentObjectID: "pay-" + invoiceNumber,
			Amount:          inv.cashPaid,
			ReceivedDate:    time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC),
			Method:          "EFT",
		}}
	}
	return api.InvoiceResponse{
		InvoiceNumber:             invoiceNumber,
		InvoiceOutstandingBalance: inv.outstanding,
		InvoiceFeeBalance:         inv.outstanding,
		InvoiceInterestBalance:    decimal.Zero,
		Fees:                      []api.FeeResponse{fee},
	}, nil
}

func (f *fakeBilling) AdjustFees(ctx context.Context, clientObjectID string, req api.AdjustFeesRequest) error {
	for _, adj := range req.Adjustments {
		if f.failFeeIDs[adj.FeeObjectID] {
			return fmt.Errorf("fee adjustment rejected")
		}
	}
	for _, adj := range req.Adjustments {
		f.adjustCalls = append(f.adjustCalls, adj)
		for _, inv := range f.invoices {
			if inv.feeObjectID == adj.FeeObjectID {
				inv.outstanding = inv.outstanding.Add(adj.Amount)
			}
		}
	}
	return nil
}

type adjustmentFixture struct {
	svc      *Service
	db       *gorm.DB
	node     *snowflake.Node
	billing  *fakeBilling
	versions compliancereportdomain.Service
	handling manualhandlingdomain.Service
	clientID snowflake.ID
}

func newAdjustmentFixture(t *testing.T) *adjustmentFixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&compliancereportdomain.ComplianceReportVersion{},
		&complianceperioddomain.CompliancePeriod{},
		&complianceperioddomain.ComplianceChargeRate{},
		&obligationdomain.ComplianceObligation{},
		&clientsyncdomain.ElicensingClientOperator{},
		&invoicedomain.ElicensingInvoice{},
		&invoicedomain.ElicensingLineItem{},
		&invoicedomain.ElicensingPayment{},
		&invoicedomain.ElicensingAdjustment{},
		&manualhandlingdomain.ComplianceReportVersionManualHandling{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClk := clock.NewFakeClock(time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC))
	billing := newFakeBilling()
	obligations := obligationrepo.Provide()

	versions := compliancereportservice.New(compliancereportservice.Params{
		DB:   gdb,
		Log:  zap.NewNop(),
		Repo: compliancereportrepo.Provide(),
	})
	periods := complianceperiodservice.New(complianceperiodservice.Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		GenID: node,
	})
	invoices := invoiceservice.New(invoiceservice.Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClk,
		Config: config.Config{
			InvoiceFreshnessWindow: 30 * time.Second,
		},
		API:            billing,
		Repo:           invoicerepo.Provide(),
		ObligationRepo: obligations,
	})
	handling := manualhandlingservice.New(manualhandlingservice.Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClk,
		Repo:  manualhandlingrepo.Provide(),
	})

	svc := New(Params{
		DB:             gdb,
		Log:            zap.NewNop(),
		API:            billing,
		Versions:       versions,
		Obligations:    obligations,
		Invoices:       invoices,
		Periods:        periods,
		ManualHandling: handling,
	}).(*Service)

	// One charge rate and one client mapping shared by every scenario.
	require.NoError(t, gdb.Create(&complianceperioddomain.ComplianceChargeRate{
		ID:            node.Generate(),
		ReportingYear: 2024,
		Rate:          decimal.RequireFromString("80.00"),
	}).Error)
	clientID := node.Generate()
	require.NoError(t, gdb.Create(&clientsyncdomain.ElicensingClientOperator{
		ID:             clientID,
		OperatorID:     node.Generate(),
		ClientObjectID: "client-1",
		ClientGUID:     "guid-1",
	}).Error)

	return &adjustmentFixture{
		svc:      svc,
		db:       gdb,
		node:     node,
		billing:  billing,
		versions: versions,
		handling: handling,
		clientID: clientID,
	}
}

func (f *adjustmentFixture) seedVersion(t *testing.T, versionNumber int, previous *snowflake.ID, excessDelta, creditedDelta string) compliancereportdomain.ComplianceReportVersion {
	t.Helper()
	version := compliancereportdomain.ComplianceReportVersion{
		ID:                     f.node.Generate(),
		ReportID:               f.node.Generate(),
		OperationID:            f.node.Generate(),
		VersionNumber:          versionNumber,
		ReportingYear:          2024,
		Status:                 compliancereportdomain.StatusObligationNotMet,
		ExcessEmissions:        decimal.Zero,
		CreditedEmissions:      decimal.Zero,
		ExcessEmissionsDelta:   decimal.RequireFromString(excessDelta),
		CreditedEmissionsDelta: decimal.RequireFromString(creditedDelta),
		IsSupplementary:        versionNumber > 1,
		PreviousVersionID:      previous,
	}
	require.NoError(t, f.db.Create(&version).Error)
	return version
}

// seedInvoicedObligation wires a version to a mirrored invoice and registers
// the invoice with the fake billing system.
func (f *adjustmentFixture) seedInvoicedObligation(t *testing.T, versionID snowflake.ID, invoiceNumber, outstanding, cashPaid string) snowflake.ID {
	t.Helper()
	invoiceID := f.node.Generate()
	feeObjectID := "fee-" + invoiceNumber
	f.billing.invoices[invoiceNumber] = &billedInvoice{
		feeObjectID: feeObjectID,
		outstanding: decimal.RequireFromString(outstanding),
		cashPaid:    decimal.RequireFromString(cashPaid),
	}

	require.NoError(t, f.db.Create(&invoicedomain.ElicensingInvoice{
		ID:                         invoiceID,
		InvoiceNumber:              invoiceNumber,
		ElicensingClientOperatorID: f.clientID,
		Role:                       invoicedomain.RoleObligation,
		DueDate:                    time.Date(2025, time.November, 30, 23, 59, 59, 0, time.UTC),
		OutstandingBalance:         decimal.RequireFromString(outstanding),
		InvoiceFeeBalance:          decimal.RequireFromString(outstanding),
		InvoiceInterestBalance:     decimal.Zero,
		LastRefreshed:              time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}).Error)
	require.NoError(t, f.db.Create(&invoicedomain.ElicensingLineItem{
		ID:                  f.node.Generate(),
		ElicensingInvoiceID: invoiceID,
		ObjectID:            feeObjectID,
		LineItemType:        "Fee",
		FeeDate:             time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC),
		BaseAmount:          decimal.RequireFromString(outstanding),
	}).Error)

	require.NoError(t, f.db.Create(&obligationdomain.ComplianceObligation{
		ID:                        f.node.Generate(),
		ComplianceReportVersionID: versionID,
		OperatorID:                f.node.Generate(),
		ObligationID:              "23-0001-" + invoiceNumber,
		ReportingYear:             2024,
		FeeAmountDollars:          decimal.RequireFromString(outstanding),
		FeeDate:                   time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC),
		ObligationDeadline:        time.Date(2025, time.November, 30, 23, 59, 59, 0, time.UTC),
		PenaltyStatus:             obligationdomain.PenaltyNone,
		ElicensingInvoiceID:       &invoiceID,
	}).Error)
	return invoiceID
}

func TestComputeStrategyConservesTotalDecrease(t *testing.T) {
	f := newAdjustmentFixture(t)
	ctx := context.Background()

	v1 := f.seedVersion(t, 1, nil, "0", "0")
	f.seedInvoicedObligation(t, v1.ID, "INV-1", "4000.00", "0")
	v2 := f.seedVersion(t, 2, &v1.ID, "-10", "0")
	f.seedInvoicedObligation(t, v2.ID, "INV-2", "3000.00", "0")
	v3 := f.seedVersion(t, 3, &v2.ID, "-75", "0")

	strategy, err := f.svc.ComputeStrategy(ctx, v3.ID)
	require.NoError(t, err)

	// 75 tonnes at $80.00 per tonne.
	assert.Equal(t, "6000.00", strategy.TotalDecrease.StringFixed(2))
	require.Len(t, strategy.Adjustments, 2)

	oldest := strategy.Adjustments[0]
	assert.Equal(t, "INV-1", oldest.InvoiceNumber)
	assert.Equal(t, "-4000.00", oldest.Applied.StringFixed(2))
	assert.True(t, oldest.MarkFullyMet)
	assert.True(t, oldest.ShouldVoidInvoice)

	newer := strategy.Adjustments[1]
	assert.Equal(t, "INV-2", newer.InvoiceNumber)
	assert.Equal(t, "-2000.00", newer.Applied.StringFixed(2))
	assert.Equal(t, "1000.00", newer.NetOutstandingAfter.StringFixed(2))
	assert.False(t, newer.MarkFullyMet)
	assert.False(t, newer.ShouldVoidInvoice)

	// Every adjusted dollar plus the refund pool accounts for the full
	// decrease.
	absorbed := decimal.Zero
	for _, adj := range strategy.Adjustments {
		absorbed = absorbed.Add(adj.Applied.Neg())
	}
	refunded := strategy.EarnedTonnesRefundable.Mul(decimal.RequireFromString("80.00"))
	assert.True(t, absorbed.Add(refunded).Equal(strategy.TotalDecrease))
	assert.False(t, strategy.ShouldRecordEarnedTonnes)
}

func TestComputeStrategyLeftoverBecomesRefundPool(t *testing.T) {
	f := newAdjustmentFixture(t)
	ctx := context.Background()

	v1 := f.seedVersion(t, 1, nil, "0", "0")
	f.seedInvoicedObligation(t, v1.ID, "INV-1", "1000.00", "0")
	v2 := f.seedVersion(t, 2, &v1.ID, "-75", "0")

	strategy, err := f.svc.ComputeStrategy(ctx, v2.ID)
	require.NoError(t, err)

	require.Len(t, strategy.Adjustments, 1)
	assert.Equal(t, "-1000.00", strategy.Adjustments[0].Applied.StringFixed(2))
	// $5000 leftover at $80/tonne.
	assert.Equal(t, "62.5000", strategy.EarnedTonnesRefundable.StringFixed(4))
	assert.True(t, strategy.ShouldRecordEarnedTonnes)
}

func TestComputeStrategyNeverVoidsPaidInvoice(t *testing.T) {
	f := newAdjustmentFixture(t)
	ctx := context.Background()

	v1 := f.seedVersion(t, 1, nil, "0", "0")
	f.seedInvoicedObligation(t, v1.ID, "INV-1", "2000.00", "1500.00")
	v2 := f.seedVersion(t, 2, &v1.ID, "-25", "0")

	strategy, err := f.svc.ComputeStrategy(ctx, v2.ID)
	require.NoError(t, err)

	require.Len(t, strategy.Adjustments, 1)
	adj := strategy.Adjustments[0]
	assert.Equal(t, "-2000.00", adj.Applied.StringFixed(2))
	assert.True(t, adj.MarkFullyMet)
	// The invoice received real money; it stays as a paid record.
	assert.False(t, adj.ShouldVoidInvoice)
}

func TestComputeStrategyRejectsNonDecrease(t *testing.T) {
	f := newAdjustmentFixture(t)
	ctx := context.Background()

	v1 := f.seedVersion(t, 1, nil, "0", "0")
	v2 := f.seedVersion(t, 2, &v1.ID, "10", "0")

	_, err := f.svc.ComputeStrategy(ctx, v2.ID)
	assert.ErrorIs(t, err, domain.ErrNotDecreased)
}

func TestApplyStrategyCommitsAdjustments(t *testing.T) {
	f := newAdjustmentFixture(t)
	ctx := context.Background()

	v1 := f.seedVersion(t, 1, nil, "0", "0")
	inv1 := f.seedInvoicedObligation(t, v1.ID, "INV-1", "4000.00", "0")
	v2 := f.seedVersion(t, 2, &v1.ID, "0", "0")
	inv2 := f.seedInvoicedObligation(t, v2.ID, "INV-2", "3000.00", "0")
	v3 := f.seedVersion(t, 3, &v2.ID, "-75", "0")

	strategy, err := f.svc.ComputeStrategy(ctx, v3.ID)
	require.NoError(t, err)

	result, err := f.svc.ApplyStrategy(ctx, v3.ID, strategy)
	require.NoError(t, err)
	assert.Len(t, result.Applied, 2)
	assert.Empty(t, result.Failed)
	require.Len(t, f.billing.adjustCalls, 2)
	assert.Equal(t, "fee-INV-1", f.billing.adjustCalls[0].FeeObjectID)
	assert.Equal(t, "-4000.00", f.billing.adjustCalls[0].Amount.StringFixed(2))

	var first invoicedomain.ElicensingInvoice
	require.NoError(t, f.db.First(&first, "id = ?", inv1).Error)
	assert.True(t, first.IsVoid)
	assert.Equal(t, "0.00", first.OutstandingBalance.StringFixed(2))

	var second invoicedomain.ElicensingInvoice
	require.NoError(t, f.db.First(&second, "id = ?", inv2).Error)
	assert.False(t, second.IsVoid)
	assert.Equal(t, "1000.00", second.OutstandingBalance.StringFixed(2))

	settled, err := f.versions.GetByID(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, compliancereportdomain.StatusObligationFullyMet, settled.Status)

	partial, err := f.versions.GetByID(ctx, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, compliancereportdomain.StatusObligationNotMet, partial.Status)
}

func TestApplyStrategyIsolatesFailures(t *testing.T) {
	f := newAdjustmentFixture(t)
	ctx := context.Background()

	v1 := f.seedVersion(t, 1, nil, "0", "0")
	f.seedInvoicedObligation(t, v1.ID, "INV-1", "4000.00", "0")
	v2 := f.seedVersion(t, 2, &v1.ID, "0", "0")
	inv2 := f.seedInvoicedObligation(t, v2.ID, "INV-2", "3000.00", "0")
	v3 := f.seedVersion(t, 3, &v2.ID, "-75", "0")

	strategy, err := f.svc.ComputeStrategy(ctx, v3.ID)
	require.NoError(t, err)

	f.billing.failFeeIDs["fee-INV-1"] = true
	result, err := f.svc.ApplyStrategy(ctx, v3.ID, strategy)
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "INV-1", result.Failed[0].Adjustment.InvoiceNumber)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, "INV-2", result.Applied[0].InvoiceNumber)

	var second invoicedomain.ElicensingInvoice
	require.NoError(t, f.db.First(&second, "id = ?", inv2).Error)
	assert.Equal(t, "1000.00", second.OutstandingBalance.StringFixed(2))
}

func TestApplyStrategyHandsRefundPoolToManualHandling(t *testing.T) {
	f := newAdjustmentFixture(t)
	ctx := context.Background()

	v1 := f.seedVersion(t, 1, nil, "0", "0")
	f.seedInvoicedObligation(t, v1.ID, "INV-1", "1000.00", "0")
	v2 := f.seedVersion(t, 2, &v1.ID, "-75", "0")

	strategy, err := f.svc.ComputeStrategy(ctx, v2.ID)
	require.NoError(t, err)
	require.True(t, strategy.ShouldRecordEarnedTonnes)

	_, err = f.svc.ApplyStrategy(ctx, v2.ID, strategy)
	require.NoError(t, err)

	record, err := f.handling.GetByReportVersionID(ctx, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, manualhandlingdomain.HandlingObligation, record.HandlingType)
	assert.Equal(t, manualhandlingdomain.ContextObligationRefundPoolCash, record.Context)

	flagged, err := f.versions.GetByID(ctx, v2.ID)
	require.NoError(t, err)
	assert.True(t, flagged.RequiresManualHandling)
}

func TestStrategyEmpty(t *testing.T) {
	assert.True(t, domain.Strategy{
		TotalDecrease:          decimal.RequireFromString("6000.00"),
		EarnedTonnesRefundable: decimal.Zero,
		EarnedTonnesCreditable: decimal.Zero,
	}.Empty())
	assert.False(t, domain.Strategy{
		EarnedTonnesRefundable:   decimal.RequireFromString("62.5"),
		EarnedTonnesCreditable:   decimal.Zero,
		ShouldRecordEarnedTonnes: true,
	}.Empty())
}
