package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vibejudge/vibejudge/pkg/orchestrator"
	"github.com/vibejudge/vibejudge/pkg/services"
)

// mapError translates service and orchestrator errors to HTTP responses.
func mapError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	switch {
	case errors.As(err, &validErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validErr.Error()})
	case errors.Is(err, orchestrator.ErrNoPendingSubmissions):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no pending submissions to analyze"})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, orchestrator.ErrBudgetExceeded):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotOwner), errors.Is(err, orchestrator.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the owner of this resource"})
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, orchestrator.ErrHackathonNotFound),
		errors.Is(err, orchestrator.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errors.Is(err, services.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrAnalysisInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "analysis already in progress"})
	case errors.Is(err, orchestrator.ErrJobNotCancellable):
		c.JSON(http.StatusConflict, gin.H{"error": "job is not cancellable"})
	case errors.Is(err, services.ErrImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.Error("Unexpected service error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
