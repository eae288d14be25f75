package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vibejudge/vibejudge/pkg/services"
)

const ctxOrgID = "org_id"

// requireAuth resolves the caller from the Authorization bearer token and
// stores the organizer id on the request context.
func requireAuth(organizers *services.OrganizerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		org, err := organizers.Authenticate(c.Request.Context(), token)
		if err != nil {
			mapError(c, err)
			c.Abort()
			return
		}
		c.Set(ctxOrgID, org.OrgID)
		c.Next()
	}
}

func orgID(c *gin.Context) string {
	return c.GetString(ctxOrgID)
}
