package server

import (
	"net/http"
	"strings"
	"time"

	earnedcreditdomain "github.com/cleanbc/obps/internal/earnedcredit/domain"
	"github.com/gin-gonic/gin"
)

type earnedCreditResponse struct {
	ID                        string     `json:"id"`
	ComplianceReportVersionID string     `json:"compliance_report_version_id"`
	EarnedCreditsAmount       int64      `json:"earned_credits_amount"`
	IssuanceStatus            string     `json:"issuance_status"`
	BCCRTradingName           string     `json:"bccr_trading_name,omitempty"`
	AnalystComment            string     `json:"analyst_comment,omitempty"`
	DirectorComment           string     `json:"director_comment,omitempty"`
	IssuedDate                *time.Time `json:"issued_date,omitempty"`
	IssuedBy                  string     `json:"issued_by,omitempty"`
}

func newEarnedCreditResponse(credit earnedcreditdomain.ComplianceEarnedCredit) earnedCreditResponse {
	return earnedCreditResponse{
		ID:                        credit.ID.String(),
		ComplianceReportVersionID: credit.ComplianceReportVersionID.String(),
		EarnedCreditsAmount:       credit.EarnedCreditsAmount,
		IssuanceStatus:            string(credit.IssuanceStatus),
		BCCRTradingName:           credit.BCCRTradingName,
		AnalystComment:            credit.AnalystComment,
		DirectorComment:           credit.DirectorComment,
		IssuedDate:                credit.IssuedDate,
		IssuedBy:                  credit.IssuedBy,
	}
}

func (s *Server) GetEarnedCredit(c *gin.Context) {
	versionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	credit, err := s.earnedCreditSvc.GetByReportVersionID(c.Request.Context(), versionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newEarnedCreditResponse(credit)})
}

type requestIssuanceRequest struct {
	BCCRTradingName string `json:"bccr_trading_name"`
}

func (s *Server) RequestIssuance(c *gin.Context) {
	creditID, ok := pathID(c, "id")
	if !ok {
		return
	}
	name, role, ok := requireRole(c)
	if !ok {
		return
	}

	var req requestIssuanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	tradingName := strings.TrimSpace(req.BCCRTradingName)
	if tradingName == "" {
		AbortWithError(c, newValidationError("bccr_trading_name", "invalid_bccr_trading_name", "trading name is required"))
		return
	}

	actor := earnedcreditdomain.Actor{Name: name, Role: role}
	if err := s.earnedCreditSvc.RequestIssuance(c.Request.Context(), creditID, actor, tradingName); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": string(earnedcreditdomain.StatusIssuanceRequested)}})
}

type issuanceCommentRequest struct {
	Comment string `json:"comment"`
}

func (s *Server) SubmitForApproval(c *gin.Context) {
	creditID, ok := pathID(c, "id")
	if !ok {
		return
	}
	name, role, ok := requireRole(c)
	if !ok {
		return
	}

	var req issuanceCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	actor := earnedcreditdomain.Actor{Name: name, Role: role}
	if err := s.earnedCreditSvc.SubmitForApproval(c.Request.Context(), creditID, actor, strings.TrimSpace(req.Comment)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": string(earnedcreditdomain.StatusAwaitingApproval)}})
}

func (s *Server) ApproveIssuance(c *gin.Context) {
	creditID, ok := pathID(c, "id")
	if !ok {
		return
	}
	name, role, ok := requireRole(c)
	if !ok {
		return
	}

	actor := earnedcreditdomain.Actor{Name: name, Role: role}
	if err := s.earnedCreditSvc.Approve(c.Request.Context(), creditID, actor); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": string(earnedcreditdomain.StatusCreditsIssued)}})
}

func (s *Server) RequestIssuanceChanges(c *gin.Context) {
	creditID, ok := pathID(c, "id")
	if !ok {
		return
	}
	name, role, ok := requireRole(c)
	if !ok {
		return
	}

	var req issuanceCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	actor := earnedcreditdomain.Actor{Name: name, Role: role}
	if err := s.earnedCreditSvc.RequestChanges(c.Request.Context(), creditID, actor, strings.TrimSpace(req.Comment)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": string(earnedcreditdomain.StatusChangesRequired)}})
}

func (s *Server) DeclineIssuance(c *gin.Context) {
	creditID, ok := pathID(c, "id")
	if !ok {
		return
	}
	name, role, ok := requireRole(c)
	if !ok {
		return
	}

	var req issuanceCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	actor := earnedcreditdomain.Actor{Name: name, Role: role}
	if err := s.earnedCreditSvc.Decline(c.Request.Context(), creditID, actor, strings.TrimSpace(req.Comment)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": string(earnedcreditdomain.StatusDeclined)}})
}
