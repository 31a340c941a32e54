package middlewares

import (
	"strings"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the caller's session token against Redis and
// places the identity on the request context. Identity is optional here:
// anonymous requests pass through, and handlers that need an identity check
// for one themselves.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("token"))
		if token == "" {
			c.Next()
			return
		}

		username, found, err := config.GetRedisValue("Token:" + token)
		if err != nil || !found {
			c.Next()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)

		if user, err := models.GetUserByUsername(ctx, username); err == nil && user != nil {
			ctx = utils.SetUserIdInContext(ctx, user.ID)
			ctx = utils.SetAgencyIdInContext(ctx, user.AgencyId)
			ctx = utils.SetIsAdminInContext(ctx, user.Role == models.UserRoleAdmin)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession rejects requests that did not resolve to a user.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(401, gin.H{"success": false, "error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects sessions whose user is not a platform admin. Mounted
// after RequireSession on the listings export.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.GetIsAdminFromContext(c.Request.Context()) {
			c.AbortWithStatusJSON(403, gin.H{"success": false, "error": "admin role required"})
			return
		}
		c.Next()
	}
}
