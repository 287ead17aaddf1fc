// Package seed bootstraps reference rows a fresh deployment needs before an
// administrator has configured anything: the per-year compliance charge
// rates published with the regulation.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	complianceperioddomain "github.com/cleanbc/obps/internal/complianceperiod/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Published charge rates, dollars per tonne CO2e by reporting year. An
// administrator can add later years through the compliance-period service;
// existing rows are never overwritten here.
var defaultChargeRates = map[int]string{
	2023: "65.00",
	2024: "80.00",
	2025: "95.00",
}

func EnsureChargeRates(db *gorm.DB, node *snowflake.Node) error {
	ctx := context.Background()
	for year, rate := range defaultChargeRates {
		var existing complianceperioddomain.ComplianceChargeRate
		err := db.WithContext(ctx).
			Where("reporting_year = ?", year).
			First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row := complianceperioddomain.ComplianceChargeRate{
			ID:            node.Generate(),
			ReportingYear: year,
			Rate:          decimal.RequireFromString(rate),
		}
		if err := db.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
