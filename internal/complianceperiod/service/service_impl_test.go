package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/cleanbc/obps/internal/complianceperiod/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.CompliancePeriod{}, &domain.ComplianceChargeRate{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{DB: gdb, Log: zap.NewNop(), GenID: node}).(*Service)
	return svc, gdb
}

func TestGetOrCreatePeriodIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.GetOrCreatePeriod(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2024, first.Year)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.StartDate)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), first.EndDate)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), first.ComplianceDeadline)

	second, err := svc.GetOrCreatePeriod(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestRateForYear(t *testing.T) {
	svc, gdb := newService(t)
	ctx := context.Background()

	node, _ := snowflake.NewNode(2)
	require.NoError(t, gdb.Create(&domain.ComplianceChargeRate{
		ID:            node.Generate(),
		ReportingYear: 2024,
		Rate:          decimal.RequireFromString("80.00"),
	}).Error)

	rate, err := svc.RateForYear(ctx, 2024)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("80.00")))

	_, err = svc.RateForYear(ctx, 1999)
	assert.ErrorIs(t, err, domain.ErrChargeRateNotFound)
}
