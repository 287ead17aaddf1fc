package server

import (
	"net/http"
	"time"

	compliancestatusdomain "github.com/cleanbc/obps/internal/compliancestatus/domain"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type obligationResponse struct {
	ID                        string          `json:"id"`
	ComplianceReportVersionID string          `json:"compliance_report_version_id"`
	ObligationID              string          `json:"obligation_id"`
	ReportingYear             int             `json:"reporting_year"`
	FeeAmountDollars          decimal.Decimal `json:"fee_amount_dollars"`
	ObligationDeadline        time.Time       `json:"obligation_deadline"`
	PenaltyStatus             string          `json:"penalty_status"`
	ElicensingInvoiceID       *string         `json:"elicensing_invoice_id,omitempty"`
}

func newObligationResponse(o obligationdomain.ComplianceObligation) obligationResponse {
	resp := obligationResponse{
		ID:                        o.ID.String(),
		ComplianceReportVersionID: o.ComplianceReportVersionID.String(),
		ObligationID:              o.ObligationID,
		ReportingYear:             o.ReportingYear,
		FeeAmountDollars:          o.FeeAmountDollars,
		ObligationDeadline:        o.ObligationDeadline,
		PenaltyStatus:             string(o.PenaltyStatus),
	}
	if o.ElicensingInvoiceID != nil {
		id := o.ElicensingInvoiceID.String()
		resp.ElicensingInvoiceID = &id
	}
	return resp
}

// ResolveReportVersion runs the factory for a submitted report version:
// exactly one of obligation, earned credit, or neither. Idempotent.
func (s *Server) ResolveReportVersion(c *gin.Context) {
	versionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	outcome, err := s.obligationSvc.CreateForReportVersion(c.Request.Context(), versionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"outcome": outcome}})
}

func (s *Server) GetObligation(c *gin.Context) {
	versionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	obligation, err := s.obligationSvc.GetByReportVersionID(c.Request.Context(), versionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newObligationResponse(obligation)})
}

func (s *Server) GetObligationByID(c *gin.Context) {
	obligationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	obligation, err := s.obligationSvc.GetByID(c.Request.Context(), obligationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newObligationResponse(obligation)})
}

type statusEffectResponse struct {
	Handler          string `json:"handler"`
	SetPenaltyStatus string `json:"set_penalty_status,omitempty"`
	SetVersionStatus string `json:"set_version_status,omitempty"`
	CreatePenalty    bool   `json:"create_penalty"`
}

func newStatusEffectResponses(effects []compliancestatusdomain.Effect) []statusEffectResponse {
	resp := make([]statusEffectResponse, 0, len(effects))
	for _, effect := range effects {
		item := statusEffectResponse{
			Handler:       effect.Handler,
			CreatePenalty: effect.CreatePenalty,
		}
		if effect.SetPenaltyStatus != nil {
			item.SetPenaltyStatus = string(*effect.SetPenaltyStatus)
		}
		if effect.SetVersionStatus != nil {
			item.SetVersionStatus = string(*effect.SetVersionStatus)
		}
		resp = append(resp, item)
	}
	return resp
}

// RunStatusPass refreshes the version's invoices and re-derives compliance
// and penalty statuses. Safe to call at any time.
func (s *Server) RunStatusPass(c *gin.Context) {
	versionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	effects, err := s.statusSvc.RunPass(c.Request.Context(), versionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"effects": newStatusEffectResponses(effects)}})
}
