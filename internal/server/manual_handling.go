package server

import (
	"net/http"
	"strings"
	"time"

	manualhandlingdomain "github.com/cleanbc/obps/internal/manualhandling/domain"
	"github.com/gin-gonic/gin"
)

type manualHandlingResponse struct {
	ID                        string     `json:"id"`
	ComplianceReportVersionID string     `json:"compliance_report_version_id"`
	HandlingType              string     `json:"handling_type"`
	Context                   string     `json:"context"`
	AnalystComment            string     `json:"analyst_comment,omitempty"`
	AnalystName               string     `json:"analyst_name,omitempty"`
	AnalystDate               *time.Time `json:"analyst_date,omitempty"`
	DirectorDecision          string     `json:"director_decision"`
	DirectorComment           string     `json:"director_comment,omitempty"`
	DirectorName              string     `json:"director_name,omitempty"`
	DirectorDate              *time.Time `json:"director_date,omitempty"`
}

func newManualHandlingResponse(record manualhandlingdomain.ComplianceReportVersionManualHandling) manualHandlingResponse {
	return manualHandlingResponse{
		ID:                        record.ID.String(),
		ComplianceReportVersionID: record.ComplianceReportVersionID.String(),
		HandlingType:              string(record.HandlingType),
		Context:                   string(record.Context),
		AnalystComment:            record.AnalystComment,
		AnalystName:               record.AnalystName,
		AnalystDate:               record.AnalystDate,
		DirectorDecision:          string(record.DirectorDecision),
		DirectorComment:           record.DirectorComment,
		DirectorName:              record.DirectorName,
		DirectorDate:              record.DirectorDate,
	}
}

func (s *Server) GetManualHandling(c *gin.Context) {
	versionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	record, err := s.manualHandlingSvc.GetByReportVersionID(c.Request.Context(), versionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newManualHandlingResponse(record)})
}

type analystHandlingRequest struct {
	Comment string `json:"comment"`
}

func (s *Server) UpdateManualHandlingAnalyst(c *gin.Context) {
	versionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	name, role, ok := requireRole(c)
	if !ok {
		return
	}

	var req analystHandlingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	actor := manualhandlingdomain.Actor{Name: name, Role: role}
	if err := s.manualHandlingSvc.UpdateAnalyst(c.Request.Context(), versionID, actor, strings.TrimSpace(req.Comment)); err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.manualHandlingSvc.GetByReportVersionID(c.Request.Context(), versionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newManualHandlingResponse(record)})
}

type directorHandlingRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

func (s *Server) UpdateManualHandlingDirector(c *gin.Context) {
	versionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	name, role, ok := requireRole(c)
	if !ok {
		return
	}

	var req directorHandlingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	decision := manualhandlingdomain.DirectorDecision(req.Decision)
	switch decision {
	case manualhandlingdomain.DecisionPendingManualHandling, manualhandlingdomain.DecisionIssueResolved:
	default:
		AbortWithError(c, newValidationError("decision", "invalid_decision", "decision must be PENDING_MANUAL_HANDLING or ISSUE_RESOLVED"))
		return
	}

	actor := manualhandlingdomain.Actor{Name: name, Role: role}
	if err := s.manualHandlingSvc.UpdateDirector(c.Request.Context(), versionID, actor, decision, strings.TrimSpace(req.Comment)); err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.manualHandlingSvc.GetByReportVersionID(c.Request.Context(), versionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newManualHandlingResponse(record)})
}
