package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"plantops-backend/internal/auth"
)

const actorKey = "actor"

// Authenticate verifies the bearer token and stores the actor on the context.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "missing bearer token",
			})
			return
		}

		actor, err := auth.ParseToken(secret, strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid token",
			})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the authenticated actor, or the zero Actor.
func ActorFrom(c *gin.Context) auth.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(auth.Actor); ok {
			return a
		}
	}
	return auth.Actor{}
}

// Require aborts with 403 unless the actor may perform action.
func Require(authz auth.Authorizer, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authz.IsAuthorized(ActorFrom(c), action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "missing permission " + action,
			})
			return
		}
		c.Next()
	}
}
