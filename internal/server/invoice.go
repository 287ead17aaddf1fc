package server

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	clientsyncdomain "github.com/cleanbc/obps/internal/elicensing/clientsync/domain"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	"github.com/cleanbc/obps/internal/providers/pdf"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type invoiceResponse struct {
	ID                     string    `json:"id"`
	InvoiceNumber          string    `json:"invoice_number"`
	Role                   string    `json:"role"`
	DueDate                time.Time `json:"due_date"`
	OutstandingBalance     string    `json:"outstanding_balance"`
	InvoiceFeeBalance      string    `json:"invoice_fee_balance"`
	InvoiceInterestBalance string    `json:"invoice_interest_balance"`
	IsVoid                 bool      `json:"is_void"`
	LastRefreshed          time.Time `json:"last_refreshed"`
}

func newInvoiceResponse(invoice invoicedomain.ElicensingInvoice) invoiceResponse {
	return invoiceResponse{
		ID:                     invoice.ID.String(),
		InvoiceNumber:          invoice.InvoiceNumber,
		Role:                   string(invoice.Role),
		DueDate:                invoice.DueDate,
		OutstandingBalance:     invoice.OutstandingBalance.StringFixed(2),
		InvoiceFeeBalance:      invoice.InvoiceFeeBalance.StringFixed(2),
		InvoiceInterestBalance: invoice.InvoiceInterestBalance.StringFixed(2),
		IsVoid:                 invoice.IsVoid,
		LastRefreshed:          invoice.LastRefreshed,
	}
}

func (s *Server) GetInvoice(c *gin.Context) {
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.GetInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(invoice)})
}

// RefreshInvoice re-pulls the eLicensing mirror unless the cached data is
// still within the freshness window; ?force=true bypasses the window.
func (s *Server) RefreshInvoice(c *gin.Context) {
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return
	}
	force, ok := parseBoolQuery(c, "force")
	if !ok {
		return
	}

	fresh, invoice, err := s.invoiceSvc.RefreshInvoice(c.Request.Context(), invoiceID, force)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"data_is_fresh": fresh,
		"invoice":       newInvoiceResponse(invoice),
	}})
}

// GetObligationInvoice resolves a compliance report version to its
// obligation invoice, refreshing the mirror as needed.
func (s *Server) GetObligationInvoice(c *gin.Context) {
	versionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	force, ok := parseBoolQuery(c, "force")
	if !ok {
		return
	}

	fresh, invoice, err := s.invoiceSvc.RefreshByComplianceReportVersionID(c.Request.Context(), versionID, force)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"data_is_fresh": fresh,
		"invoice":       newInvoiceResponse(invoice),
	}})
}

type interestRateResponse struct {
	ID            string    `json:"id"`
	InterestRate  string    `json:"interest_rate"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	IsCurrentRate bool      `json:"is_current_rate"`
}

func newInterestRateResponse(rate invoicedomain.ElicensingInterestRate) interestRateResponse {
	return interestRateResponse{
		ID:            rate.ID.String(),
		InterestRate:  rate.InterestRate.String(),
		StartDate:     rate.StartDate,
		EndDate:       rate.EndDate,
		IsCurrentRate: rate.IsCurrentRate,
	}
}

func (s *Server) ListInterestRates(c *gin.Context) {
	rates, err := s.invoiceSvc.InterestRates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]interestRateResponse, 0, len(rates))
	for _, rate := range rates {
		resp = append(resp, newInterestRateResponse(rate))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type saveInterestRateRequest struct {
	InterestRate  string `json:"interest_rate"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	IsCurrentRate bool   `json:"is_current_rate"`
}

func (s *Server) SaveInterestRate(c *gin.Context) {
	var req saveInterestRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rate, err := decimal.NewFromString(req.InterestRate)
	if err != nil || rate.IsNegative() {
		AbortWithError(c, newValidationError("interest_rate", "invalid_interest_rate", "interest rate must be a non-negative decimal"))
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start date"))
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end date"))
		return
	}
	if endDate.Before(startDate) {
		AbortWithError(c, newValidationError("end_date", "invalid_period", "end date precedes start date"))
		return
	}

	saved, err := s.invoiceSvc.SaveInterestRate(c.Request.Context(), invoicedomain.ElicensingInterestRate{
		InterestRate:  rate,
		StartDate:     startDate,
		EndDate:       endDate,
		IsCurrentRate: req.IsCurrentRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInterestRateResponse(saved)})
}

// DownloadStatement renders the statement of account for an invoice: the
// original fee, then every payment and adjustment in date order with a
// running balance.
func (s *Server) DownloadStatement(c *gin.Context) {
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	invoice, err := s.invoiceSvc.GetInvoice(ctx, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, payments, adjustments, err := s.invoiceSvc.LineItems(ctx, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := pdf.StatementData{
		InvoiceNumber: invoice.InvoiceNumber,
		GeneratedAt:   s.clock.Now().Format(noticeDateLayout),
		DueDate:       invoice.DueDate.Format(noticeDateLayout),
	}

	var mapping clientsyncdomain.ElicensingClientOperator
	if err := s.db.WithContext(ctx).First(&mapping, "id = ?", invoice.ElicensingClientOperatorID).Error; err == nil {
		if operator, err := s.registry.FindOperatorByID(ctx, s.db, mapping.OperatorID); err == nil {
			data.OperatorName = operator.LegalName
		}
	}

	// Penalty invoices have no obligation row pointing at them; the
	// obligation columns stay blank on their statements.
	var obligation obligationdomain.ComplianceObligation
	err = s.db.WithContext(ctx).First(&obligation, "elicensing_invoice_id = ?", invoice.ID).Error
	switch {
	case err == nil:
		data.ObligationID = obligation.ObligationID
		data.ReportingYear = strconv.Itoa(obligation.ReportingYear)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		AbortWithError(c, err)
		return
	}

	rows := statementRows(items, payments, adjustments)
	var feeTotal, paymentsTotal, adjustmentsTotal decimal.Decimal
	running := decimal.Zero
	for _, row := range rows {
		running = running.Add(row.amount)
		data.Items = append(data.Items, pdf.StatementItem{
			Date:         row.date.Format(dateOnlyLayout),
			Description:  row.description,
			Type:         row.kind,
			Amount:       row.amount.StringFixed(2),
			RunningTotal: running.StringFixed(2),
		})
		switch row.kind {
		case statementRowFee:
			feeTotal = feeTotal.Add(row.amount)
		case statementRowPayment:
			paymentsTotal = paymentsTotal.Add(row.amount)
		case statementRowAdjustment:
			adjustmentsTotal = adjustmentsTotal.Add(row.amount)
		}
	}
	data.FeeTotal = feeTotal.StringFixed(2)
	data.PaymentsTotal = paymentsTotal.StringFixed(2)
	data.AdjustmentsTotal = adjustmentsTotal.StringFixed(2)
	data.OutstandingBalance = invoice.OutstandingBalance.StringFixed(2)

	doc, err := s.pdf.GenerateStatement(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	servePDF(c, fmt.Sprintf("statement-%s.pdf", invoice.InvoiceNumber), doc)
}

const (
	statementRowFee        = "Fee"
	statementRowPayment    = "Payment"
	statementRowAdjustment = "Adjustment"
)

type statementRow struct {
	date        time.Time
	description string
	kind        string
	amount      decimal.Decimal
}

// statementRows flattens fees, payments, and adjustments into one
// chronological ledger. Payments reduce the balance so they are negated;
// adjustment amounts are already signed.
func statementRows(items []invoicedomain.ElicensingLineItem, payments []invoicedomain.ElicensingPayment, adjustments []invoicedomain.ElicensingAdjustment) []statementRow {
	rows := make([]statementRow, 0, len(items)+len(payments)+len(adjustments))
	for _, item := range items {
		description := item.Description
		if description == "" {
			description = item.LineItemType
		}
		rows = append(rows, statementRow{
			date:        item.FeeDate,
			description: description,
			kind:        statementRowFee,
			amount:      item.BaseAmount,
		})
	}
	for _, payment := range payments {
		description := "Payment received"
		if payment.ReceiptNumber != "" {
			description = "Payment received, receipt " + payment.ReceiptNumber
		}
		rows = append(rows, statementRow{
			date:        payment.ReceivedDate,
			description: description,
			kind:        statementRowPayment,
			amount:      payment.Amount.Neg(),
		})
	}
	for _, adjustment := range adjustments {
		description := adjustment.Reason
		if description == "" {
			description = "Adjustment"
		}
		rows = append(rows, statementRow{
			date:        adjustment.AdjustmentDate,
			description: description,
			kind:        statementRowAdjustment,
			amount:      adjustment.Amount,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })
	return rows
}
