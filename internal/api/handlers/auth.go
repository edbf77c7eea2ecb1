package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"carillon/internal/api/middleware"
	"carillon/internal/auth"
	"carillon/internal/core"
)

// UserSource looks up accounts for authentication.
type UserSource interface {
	GetUser(username string) (core.User, error)
}

// SessionStore issues and revokes session tokens.
type SessionStore interface {
	Create(username string) string
	Destroy(token string)
}

// AuthHandler handles login and logout
type AuthHandler struct {
	users    UserSource
	sessions SessionStore
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users UserSource, sessions SessionStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login validates credentials and sets the session cookie
// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username et password sont requis")
		return
	}

	user, err := h.users.GetUser(req.Username)
	if err != nil || !auth.CheckPassword(user.Hash, req.Password) {
		h.logger.Warn("Login failed",
			"component", "api",
			"user", req.Username,
			"client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Identifiants invalides",
			"code":  "INVALID_CREDENTIALS",
		})
		return
	}

	token := h.sessions.Create(req.Username)
	c.SetCookie(middleware.SessionCookie, token, 0, "/", "", false, true)

	h.logger.Info("Login", "component", "api", "user", req.Username)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"user": gin.H{
			"username":    req.Username,
			"nom_complet": user.FullName,
			"role":        user.Role,
		},
	})
}

// Logout destroys the session and clears the cookie
// POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(middleware.SessionCookie); err == nil && token != "" {
		h.sessions.Destroy(token)
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
