package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// RefreshByComplianceReportVersionID returns the obligation invoice for
	// the version, re-querying eLicensing unless the mirror is fresh. The
	// returned bool is true when the data reflects a live query from this
	// call or within the freshness window.
	RefreshByComplianceReportVersionID(ctx context.Context, versionID snowflake.ID, forceRefresh bool) (bool, ElicensingInvoice, error)

	// RefreshInvoice refreshes one mirrored invoice by local id.
	RefreshInvoice(ctx context.Context, invoiceID snowflake.ID, forceRefresh bool) (bool, ElicensingInvoice, error)

	// MirrorInvoice pulls an invoice from eLicensing for the first time and
	// creates the local mirror row. Reuses an existing row when the invoice
	// number is already mirrored (retry after a partial failure).
	MirrorInvoice(ctx context.Context, clientOperatorID snowflake.ID, invoiceNumber string, role InvoiceRole) (ElicensingInvoice, error)

	GetInvoice(ctx context.Context, invoiceID snowflake.ID) (ElicensingInvoice, error)
	LineItems(ctx context.Context, invoiceID snowflake.ID) ([]ElicensingLineItem, []ElicensingPayment, []ElicensingAdjustment, error)

	MarkVoid(ctx context.Context, invoiceID snowflake.ID) error

	// SaveInterestRate validates non-overlap (inclusive boundaries) and the
	// single-current-rate invariant before inserting.
	SaveInterestRate(ctx context.Context, rate ElicensingInterestRate) (ElicensingInterestRate, error)
	InterestRates(ctx context.Context) ([]ElicensingInterestRate, error)
}

type Repository interface {
	FindInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ElicensingInvoice, error)
	FindInvoiceByNumber(ctx context.Context, db *gorm.DB, invoiceNumber string) (*ElicensingInvoice, error)
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *ElicensingInvoice) error
	UpdateInvoice(ctx context.Context, db *gorm.DB, invoice *ElicensingInvoice) error
	MarkVoid(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	// ReplaceLineItems deletes and re-inserts the full line-item set for an
	// invoice, payments and adjustments included. Refresh is replace, never
	// merge.
	ReplaceLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, items []ElicensingLineItem, payments []ElicensingPayment, adjustments []ElicensingAdjustment) error
	LineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]ElicensingLineItem, error)
	Payments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]ElicensingPayment, error)
	Adjustments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]ElicensingAdjustment, error)

	InsertInterestRate(ctx context.Context, db *gorm.DB, rate *ElicensingInterestRate) error
	ListInterestRates(ctx context.Context, db *gorm.DB) ([]ElicensingInterestRate, error)
}

var (
	ErrInvoiceNotFound       = errors.New("elicensing_invoice_not_found")
	ErrInterestRateOverlap   = errors.New("interest_rate_period_overlap")
	ErrMultipleCurrentRates  = errors.New("multiple_current_interest_rates")
	ErrNoInvoiceForVersion   = errors.New("no_invoice_for_report_version")
)
