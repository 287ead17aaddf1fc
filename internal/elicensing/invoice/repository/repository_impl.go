package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ElicensingInvoice, error) {
	var invoice domain.ElicensingInvoice
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM elicensing_invoices WHERE id = ?`, id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindInvoiceByNumber(ctx context.Context, db *gorm.DB, invoiceNumber string) (*domain.ElicensingInvoice, error) {
	var invoice domain.ElicensingInvoice
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM elicensing_invoices WHERE invoice_number = ?`, invoiceNumber,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *domain.ElicensingInvoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) UpdateInvoice(ctx context.Context, db *gorm.DB, invoice *domain.ElicensingInvoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE elicensing_invoices
		 SET due_date = ?, outstanding_balance = ?, invoice_fee_balance = ?,
		     invoice_interest_balance = ?, last_refreshed = ?
		 WHERE id = ?`,
		invoice.DueDate,
		invoice.OutstandingBalance,
		invoice.InvoiceFeeBalance,
		invoice.InvoiceInterestBalance,
		invoice.LastRefreshed,
		invoice.ID,
	).Error
}

func (r *repo) MarkVoid(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE elicensing_invoices SET is_void = ? WHERE id = ?`, true, id,
	).Error
}

func (r *repo) ReplaceLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, items []domain.ElicensingLineItem, payments []domain.ElicensingPayment, adjustments []domain.ElicensingAdjustment) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`DELETE FROM elicensing_payments WHERE elicensing_line_item_id IN
			 (SELECT id FROM elicensing_line_items WHERE elicensing_invoice_id = ?)`, invoiceID,
		).Error; err != nil {
			return err
		}
		if err := tx.Exec(
			`DELETE FROM elicensing_adjustments WHERE elicensing_line_item_id IN
			 (SELECT id FROM elicensing_line_items WHERE elicensing_invoice_id = ?)`, invoiceID,
		).Error; err != nil {
			return err
		}
		if err := tx.Exec(
			`DELETE FROM elicensing_line_items WHERE elicensing_invoice_id = ?`, invoiceID,
		).Error; err != nil {
			return err
		}
		for i := range items {
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		for i := range payments {
			if err := tx.Create(&payments[i]).Error; err != nil {
				return err
			}
		}
		for i := range adjustments {
			if err := tx.Create(&adjustments[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repo) LineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.ElicensingLineItem, error) {
	var items []domain.ElicensingLineItem
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM elicensing_line_items WHERE elicensing_invoice_id = ? ORDER BY fee_date, id`, invoiceID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) Payments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.ElicensingPayment, error) {
	var payments []domain.ElicensingPayment
	err := db.WithContext(ctx).Raw(
		`SELECT p.* FROM elicensing_payments p
		 JOIN elicensing_line_items li ON li.id = p.elicensing_line_item_id
		 WHERE li.elicensing_invoice_id = ?
		 ORDER BY p.received_date, p.id`, invoiceID,
	).Scan(&payments).Error
	return payments, err
}

func (r *repo) Adjustments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.ElicensingAdjustment, error) {
	var adjustments []domain.ElicensingAdjustment
	err := db.WithContext(ctx).Raw(
		`SELECT a.* FROM elicensing_adjustments a
		 JOIN elicensing_line_items li ON li.id = a.elicensing_line_item_id
		 WHERE li.elicensing_invoice_id = ?
		 ORDER BY a.adjustment_date, a.id`, invoiceID,
	).Scan(&adjustments).Error
	return adjustments, err
}

func (r *repo) InsertInterestRate(ctx context.Context, db *gorm.DB, rate *domain.ElicensingInterestRate) error {
	return db.WithContext(ctx).Create(rate).Error
}

func (r *repo) ListInterestRates(ctx context.Context, db *gorm.DB) ([]domain.ElicensingInterestRate, error) {
	var rates []domain.ElicensingInterestRate
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM elicensing_interest_rates ORDER BY start_date`,
	).Scan(&rates).Error
	return rates, err
}
