package server

import (
	"net/http"

	adjustmentdomain "github.com/cleanbc/obps/internal/adjustment/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type invoiceAdjustmentResponse struct {
	ComplianceReportVersionID string          `json:"compliance_report_version_id"`
	InvoiceNumber             string          `json:"invoice_number"`
	Applied                   decimal.Decimal `json:"applied"`
	NetOutstandingAfter       decimal.Decimal `json:"net_outstanding_after"`
	MarkFullyMet              bool            `json:"mark_fully_met"`
	ShouldVoidInvoice         bool            `json:"should_void_invoice"`
}

type strategyResponse struct {
	TotalDecrease            decimal.Decimal             `json:"total_decrease"`
	Adjustments              []invoiceAdjustmentResponse `json:"adjustments"`
	EarnedTonnesRefundable   decimal.Decimal             `json:"earned_tonnes_refundable"`
	EarnedTonnesCreditable   decimal.Decimal             `json:"earned_tonnes_creditable"`
	ShouldRecordEarnedTonnes bool                        `json:"should_record_earned_tonnes"`
}

func newStrategyResponse(strategy adjustmentdomain.Strategy) strategyResponse {
	resp := strategyResponse{
		TotalDecrease:            strategy.TotalDecrease,
		Adjustments:              make([]invoiceAdjustmentResponse, 0, len(strategy.Adjustments)),
		EarnedTonnesRefundable:   strategy.EarnedTonnesRefundable,
		EarnedTonnesCreditable:   strategy.EarnedTonnesCreditable,
		ShouldRecordEarnedTonnes: strategy.ShouldRecordEarnedTonnes,
	}
	for _, adj := range strategy.Adjustments {
		resp.Adjustments = append(resp.Adjustments, invoiceAdjustmentResponse{
			ComplianceReportVersionID: adj.ComplianceReportVersionID.String(),
			InvoiceNumber:             adj.InvoiceNumber,
			Applied:                   adj.Applied,
			NetOutstandingAfter:       adj.NetOutstandingAfter,
			MarkFullyMet:              adj.MarkFullyMet,
			ShouldVoidInvoice:         adj.ShouldVoidInvoice,
		})
	}
	return resp
}

// PreviewAdjustments plans the invoice adjustments for a supplementary
// report that decreased the obligation, without committing anything.
func (s *Server) PreviewAdjustments(c *gin.Context) {
	versionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	strategy, err := s.adjustmentSvc.ComputeStrategy(c.Request.Context(), versionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newStrategyResponse(strategy)})
}

type failedAdjustmentResponse struct {
	InvoiceNumber string `json:"invoice_number"`
	Error         string `json:"error"`
}

// ApplyAdjustments computes and commits the adjustment plan. Per-invoice
// failures are reported in the response, not rolled back.
func (s *Server) ApplyAdjustments(c *gin.Context) {
	versionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	strategy, err := s.adjustmentSvc.ComputeStrategy(ctx, versionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.adjustmentSvc.ApplyStrategy(ctx, versionID, strategy)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	failed := make([]failedAdjustmentResponse, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, failedAdjustmentResponse{
			InvoiceNumber: f.Adjustment.InvoiceNumber,
			Error:         f.Err,
		})
	}
	applied := make([]invoiceAdjustmentResponse, 0, len(result.Applied))
	for _, adj := range result.Applied {
		applied = append(applied, invoiceAdjustmentResponse{
			ComplianceReportVersionID: adj.ComplianceReportVersionID.String(),
			InvoiceNumber:             adj.InvoiceNumber,
			Applied:                   adj.Applied,
			NetOutstandingAfter:       adj.NetOutstandingAfter,
			MarkFullyMet:              adj.MarkFullyMet,
			ShouldVoidInvoice:         adj.ShouldVoidInvoice,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"strategy": newStrategyResponse(strategy),
		"applied":  applied,
		"failed":   failed,
	}})
}
