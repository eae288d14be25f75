package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vibejudge/vibejudge/pkg/models"
)

// RegisterOrganizerRequest is the body of POST /api/v1/organizers.
type RegisterOrganizerRequest struct {
	Email string               `json:"email" binding:"required"`
	Tier  models.OrganizerTier `json:"tier"`
}

// RegisterOrganizer handles POST /api/v1/organizers. The API key appears in
// this response only.
func (s *Server) RegisterOrganizer(c *gin.Context) {
	var req RegisterOrganizerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	org, apiKey, err := s.organizers.Register(c.Request.Context(), req.Email, req.Tier)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"org_id":  org.OrgID,
		"email":   org.Email,
		"tier":    org.Tier,
		"api_key": apiKey,
	})
}
