package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vibejudge/vibejudge/pkg/services"
)

// CreateHackathon handles POST /api/v1/hackathons.
func (s *Server) CreateHackathon(c *gin.Context) {
	var in services.HackathonInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hack, err := s.hackathons.Create(c.Request.Context(), orgID(c), in)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hack)
}

// ListHackathons handles GET /api/v1/hackathons.
func (s *Server) ListHackathons(c *gin.Context) {
	hacks, err := s.hackathons.List(c.Request.Context(), orgID(c))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hackathons": hacks})
}

// GetHackathon handles GET /api/v1/hackathons/{id}.
func (s *Server) GetHackathon(c *gin.Context) {
	hack, err := s.hackathons.Get(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, hack)
}

// UpdateHackathon handles PUT /api/v1/hackathons/{id}.
func (s *Server) UpdateHackathon(c *gin.Context) {
	var in services.HackathonInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hack, err := s.hackathons.Update(c.Request.Context(), orgID(c), c.Param("id"), in)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, hack)
}

// DeleteHackathon handles DELETE /api/v1/hackathons/{id}.
func (s *Server) DeleteHackathon(c *gin.Context) {
	if err := s.hackathons.Delete(c.Request.Context(), orgID(c), c.Param("id")); err != nil {
		mapError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateHackathon handles POST /api/v1/hackathons/{id}/activate.
func (s *Server) ActivateHackathon(c *gin.Context) {
	hack, err := s.hackathons.Activate(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, hack)
}

// ArchiveHackathon handles POST /api/v1/hackathons/{id}/archive.
func (s *Server) ArchiveHackathon(c *gin.Context) {
	hack, err := s.hackathons.Archive(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, hack)
}

// GetCosts handles GET /api/v1/hackathons/{id}/costs.
func (s *Server) GetCosts(c *gin.Context) {
	summary, err := s.hackathons.CostSummary(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
