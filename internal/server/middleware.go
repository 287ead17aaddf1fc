package server

import (
	"strings"

	"github.com/cleanbc/obps/pkg/rls"
	"github.com/gin-gonic/gin"
)

// Actor identity arrives from the upstream Keycloak gateway as trusted
// headers; authentication itself happens before requests reach this service.
const (
	actorNameHeader = "X-Acting-User"
	actorRoleHeader = "X-Acting-Role"

	actorNameKey = "actor_name"
	actorRoleKey = "actor_role"
)

func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(actorNameKey, strings.TrimSpace(c.GetHeader(actorNameHeader)))
		c.Set(actorRoleKey, strings.TrimSpace(c.GetHeader(actorRoleHeader)))
		c.Next()
	}
}

func actorName(c *gin.Context) string {
	return c.GetString(actorNameKey)
}

func actorRole(c *gin.Context) string {
	return c.GetString(actorRoleKey)
}

// requireRole gates a handler on one of the known roles. Role validity is
// checked here; whether the role may perform the specific transition is the
// service's decision.
func requireRole(c *gin.Context) (string, string, bool) {
	name := actorName(c)
	role := actorRole(c)
	switch role {
	case rls.RoleIndustryUser, rls.RoleCASAnalyst, rls.RoleCASDirector:
		return name, role, true
	default:
		AbortWithError(c, ErrForbidden)
		return "", "", false
	}
}
