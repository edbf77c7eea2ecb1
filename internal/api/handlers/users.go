package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"carillon/internal/auth"
	"carillon/internal/core"
	"carillon/internal/store"
)

// SessionRevoker invalidates sessions when accounts change.
type SessionRevoker interface {
	DestroyUser(username string)
}

// UsersHandler manages accounts, roles and permission overrides
type UsersHandler struct {
	store    *store.Store
	sessions SessionRevoker
	logger   *slog.Logger
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(st *store.Store, sessions SessionRevoker, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{store: st, sessions: sessions, logger: logger}
}

// userView is a user record without the password hash.
func userView(name string, u core.User) gin.H {
	return gin.H{
		"username":           name,
		"nom_complet":        u.FullName,
		"role":               u.Role,
		"custom_permissions": u.CustomPerms,
	}
}

// List returns all accounts without hashes
// GET /api/users
func (h *UsersHandler) List(c *gin.Context) {
	users := h.store.Users()
	out := make([]gin.H, 0, len(users))
	for name, u := range users {
		out = append(out, userView(name, u))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

type userRequest struct {
	Password    string              `json:"password"`
	FullName    string              `json:"nom_complet"`
	Role        string              `json:"role" binding:"required"`
	CustomPerms core.PermissionTree `json:"custom_permissions"`
}

// Create adds an account
// POST /api/users/:username
func (h *UsersHandler) Create(c *gin.Context) {
	username := c.Param("username")
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "utilisateur invalide: "+err.Error())
		return
	}
	if req.Password == "" {
		badRequest(c, "le mot de passe est requis")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	u := core.User{Hash: hash, FullName: req.FullName, Role: req.Role, CustomPerms: req.CustomPerms}
	if err := h.store.PutUser(username, u, true); err != nil {
		fail(c, err)
		return
	}
	// Read back so the response carries the canonical role casing.
	saved, _ := h.store.GetUser(username)

	h.logger.Info("User created", "component", "api", "target", username, "user", currentUser(c))
	c.JSON(http.StatusCreated, userView(username, saved))
}

// Update modifies an account; an empty password keeps the current hash,
// a new password invalidates the user's sessions
// PUT /api/users/:username
func (h *UsersHandler) Update(c *gin.Context) {
	username := c.Param("username")
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "utilisateur invalide: "+err.Error())
		return
	}

	existing, err := h.store.GetUser(username)
	if err != nil {
		fail(c, err)
		return
	}

	u := core.User{Hash: existing.Hash, FullName: req.FullName, Role: req.Role, CustomPerms: req.CustomPerms}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			fail(c, err)
			return
		}
		u.Hash = hash
	}
	if err := h.store.PutUser(username, u, false); err != nil {
		fail(c, err)
		return
	}
	if req.Password != "" {
		h.sessions.DestroyUser(username)
	}
	saved, _ := h.store.GetUser(username)

	h.logger.Info("User updated", "component", "api", "target", username, "user", currentUser(c))
	c.JSON(http.StatusOK, userView(username, saved))
}

// Delete removes an account and its sessions
// DELETE /api/users/:username
func (h *UsersHandler) Delete(c *gin.Context) {
	username := c.Param("username")
	if err := h.store.DeleteUser(username); err != nil {
		fail(c, err)
		return
	}
	h.sessions.DestroyUser(username)
	h.logger.Info("User deleted", "component", "api", "target", username, "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// DeleteCustomPermissions reverts a user to their role baseline
// DELETE /api/users/:username/custom_permissions
func (h *UsersHandler) DeleteCustomPermissions(c *gin.Context) {
	username := c.Param("username")
	if err := h.store.DeleteCustomPermissions(username); err != nil {
		fail(c, err)
		return
	}
	h.logger.Info("Custom permissions cleared", "component", "api", "target", username, "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GetRoles returns the role configuration
// GET /api/roles_config
func (h *UsersHandler) GetRoles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"roles": h.store.Roles()})
}

type rolesRequest struct {
	Roles map[string]core.Role `json:"roles" binding:"required"`
}

// SetRoles replaces the role configuration
// PUT /api/roles_config
func (h *UsersHandler) SetRoles(c *gin.Context) {
	var req rolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "configuration de rôles invalide: "+err.Error())
		return
	}
	if err := h.store.SetRoles(req.Roles); err != nil {
		fail(c, err)
		return
	}
	h.logger.Info("Roles updated", "component", "api", "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
