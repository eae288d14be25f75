// Package api exposes the HTTP surface: organizer registration, hackathon
// and submission management, analysis triggering and the read views.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vibejudge/vibejudge/pkg/orchestrator"
	"github.com/vibejudge/vibejudge/pkg/services"
	"github.com/vibejudge/vibejudge/pkg/store"
)

// Server wires the HTTP routes to the service layer.
type Server struct {
	organizers  *services.OrganizerService
	hackathons  *services.HackathonService
	submissions *services.SubmissionService
	orch        *orchestrator.Orchestrator
	st          store.Store
	logger      *slog.Logger

	httpSrv *http.Server
}

// NewServer creates the API server.
func NewServer(
	organizers *services.OrganizerService,
	hackathons *services.HackathonService,
	submissions *services.SubmissionService,
	orch *orchestrator.Orchestrator,
	st store.Store,
	logger *slog.Logger,
) *Server {
	return &Server{
		organizers:  organizers,
		hackathons:  hackathons,
		submissions: submissions,
		orch:        orch,
		st:          st,
		logger:      logger.With("component", "api"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.POST("/organizers", s.RegisterOrganizer)

	authed := v1.Group("", requireAuth(s.organizers))
	{
		authed.POST("/hackathons", s.CreateHackathon)
		authed.GET("/hackathons", s.ListHackathons)
		authed.GET("/hackathons/:id", s.GetHackathon)
		authed.PUT("/hackathons/:id", s.UpdateHackathon)
		authed.DELETE("/hackathons/:id", s.DeleteHackathon)
		authed.POST("/hackathons/:id/activate", s.ActivateHackathon)
		authed.POST("/hackathons/:id/archive", s.ArchiveHackathon)

		authed.POST("/hackathons/:id/submissions", s.CreateSubmission)
		authed.GET("/hackathons/:id/submissions", s.ListSubmissions)
		authed.GET("/submissions/:id/scorecard", s.GetScorecard)

		authed.POST("/hackathons/:id/analyze", s.TriggerAnalysis)
		authed.POST("/hackathons/:id/estimate", s.EstimateCost)
		authed.GET("/hackathons/:id/jobs", s.ListJobs)
		authed.GET("/hackathons/:id/jobs/:job_id", s.GetJob)
		authed.POST("/hackathons/:id/jobs/:job_id/cancel", s.CancelJob)

		authed.GET("/hackathons/:id/leaderboard", s.GetLeaderboard)
		authed.GET("/hackathons/:id/costs", s.GetCosts)
	}
	return r
}

// Run serves HTTP on addr until Shutdown.
func (s *Server) Run(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("HTTP server listening", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Health reports liveness and store reachability.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	// A point read against a nonexistent key exercises the store path.
	if _, err := s.st.Get(ctx, "HEALTH#probe", "PROBE"); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
