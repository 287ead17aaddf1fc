package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	penaltydomain "github.com/cleanbc/obps/internal/penalty/domain"
	"github.com/cleanbc/obps/internal/providers/pdf"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const noticeDateLayout = "January 2, 2006"

type penaltyResponse struct {
	ID                     string    `json:"id"`
	ComplianceObligationID string    `json:"compliance_obligation_id"`
	PenaltyAmountDollars   string    `json:"penalty_amount_dollars"`
	AccrualStartDate       time.Time `json:"accrual_start_date"`
	AccrualEndDate         time.Time `json:"accrual_end_date"`
	AccrualDays            int       `json:"accrual_days"`
	ElicensingInvoiceID    string    `json:"elicensing_invoice_id,omitempty"`
}

func newPenaltyResponse(penalty penaltydomain.CompliancePenalty) penaltyResponse {
	resp := penaltyResponse{
		ID:                     penalty.ID.String(),
		ComplianceObligationID: penalty.ComplianceObligationID.String(),
		PenaltyAmountDollars:   penalty.PenaltyAmountDollars.StringFixed(2),
		AccrualStartDate:       penalty.AccrualStartDate,
		AccrualEndDate:         penalty.AccrualEndDate,
		AccrualDays:            penalty.AccrualDays,
	}
	if penalty.ElicensingInvoiceID != nil {
		resp.ElicensingInvoiceID = penalty.ElicensingInvoiceID.String()
	}
	return resp
}

func (s *Server) CreatePenalty(c *gin.Context) {
	obligationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	penalty, err := s.penaltySvc.CreatePenalty(c.Request.Context(), obligationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newPenaltyResponse(penalty)})
}

func (s *Server) GetPenalty(c *gin.Context) {
	obligationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	penalty, err := s.penaltySvc.GetByObligationID(c.Request.Context(), obligationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newPenaltyResponse(penalty)})
}

// DownloadPenaltyNotice renders the automatic overdue penalty notice for an
// obligation's penalty as a PDF attachment.
func (s *Server) DownloadPenaltyNotice(c *gin.Context) {
	obligationID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	penalty, err := s.penaltySvc.GetByObligationID(ctx, obligationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	obligation, err := s.obligationSvc.GetByID(ctx, obligationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	operator, err := s.registry.FindOperatorByID(ctx, s.db, obligation.OperatorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := pdf.PenaltyNoticeData{
		OperatorName:     operator.LegalName,
		ObligationID:     obligation.ObligationID,
		GeneratedAt:      s.clock.Now().Format(noticeDateLayout),
		PenaltyAmount:    formatDollars(penalty.PenaltyAmountDollars),
		AccrualStartDate: penalty.AccrualStartDate.Format(noticeDateLayout),
		AccrualEndDate:   penalty.AccrualEndDate.Format(noticeDateLayout),
		AccrualDays:      strconv.Itoa(penalty.AccrualDays),
		FeeAmount:        formatDollars(obligation.FeeAmountDollars),
	}
	if penalty.ElicensingInvoiceID != nil {
		invoice, err := s.invoiceSvc.GetInvoice(ctx, *penalty.ElicensingInvoiceID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		data.InvoiceNumber = invoice.InvoiceNumber
		data.PaymentDueDate = invoice.DueDate.Format(noticeDateLayout)
	}

	doc, err := s.pdf.GeneratePenaltyNotice(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	servePDF(c, fmt.Sprintf("penalty-notice-%s.pdf", obligation.ObligationID), doc)
}

func formatDollars(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

func servePDF(c *gin.Context, filename string, doc io.Reader) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, doc); err != nil {
		_ = c.Error(err)
	}
}
