package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ProcessIntegrationJob runs a single queued eLicensing integration
// immediately instead of waiting for the scheduler pass.
func (s *Server) ProcessIntegrationJob(c *gin.Context) {
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.integrationSvc.ProcessObligationIntegration(c.Request.Context(), jobID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "processed"}})
}

// DrainIntegrationQueue processes every due integration job in one pass.
func (s *Server) DrainIntegrationQueue(c *gin.Context) {
	summary, err := s.integrationSvc.ProcessPendingIntegrations(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"processed": summary.Processed,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"exhausted": summary.Exhausted,
	}})
}
