package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carillon/internal/auth"
	"carillon/internal/core"
)

const (
	// SessionCookie carries the session token in the browser.
	SessionCookie = "carillon_session"
	// UserKey is the context key for the authenticated username.
	UserKey = "auth_user"
)

// PermissionSource resolves a user's effective permission tree.
type PermissionSource interface {
	EffectivePermissions(username string) (core.PermissionTree, error)
}

// SessionLookup resolves session tokens.
type SessionLookup interface {
	Lookup(token string) (string, bool)
}

// SessionAuth resolves the session cookie to a username when present. It
// never aborts; protected routes add RequireAuth or RequirePermission.
func SessionAuth(sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err == nil && token != "" {
			if username, ok := sessions.Lookup(token); ok {
				c.Set(UserKey, username)
			}
		}
		c.Next()
	}
}

// RequireAuth aborts with 401 unless a session resolved to a user.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(UserKey) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentification requise",
				"code":  "AUTH_REQUIRED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequirePermission aborts with 401 without a session and 403 when the
// user's effective permissions deny the named permission.
func RequirePermission(perms PermissionSource, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString(UserKey)
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentification requise",
				"code":  "AUTH_REQUIRED",
			})
			c.Abort()
			return
		}

		tree, err := perms.EffectivePermissions(username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Session invalide",
				"code":  "AUTH_REQUIRED",
			})
			c.Abort()
			return
		}
		if !auth.Has(tree, name) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Permission refusée",
				"code":  "FORBIDDEN",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
