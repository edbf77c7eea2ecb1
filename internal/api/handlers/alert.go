package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"carillon/internal/auth"
	"carillon/internal/core"
	"carillon/internal/store"
)

// AlertControl is the alert controller surface used by the HTTP layer.
type AlertControl interface {
	Trigger(filename, device string) error
	Stop() error
	End(endSound, device string)
}

// AlertNotifier broadcasts alert transitions to operators.
type AlertNotifier interface {
	AlertTriggered(filename, user string)
	AlertStopped(user string)
	AlertEnded(user string)
}

// AlertConfig supplies the alert-related settings and permissions.
type AlertConfig interface {
	Params() store.Params
	EffectivePermissions(username string) (core.PermissionTree, error)
}

// AlertHandler triggers, stops and ends alerts
type AlertHandler struct {
	alerts   AlertControl
	config   AlertConfig
	notifier AlertNotifier
	logger   *slog.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts AlertControl, config AlertConfig, notifier AlertNotifier, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, config: config, notifier: notifier, logger: logger}
}

// Trigger starts an alert for the named sound file. On top of the
// control:alert_trigger_any route gate, the configured PPMS and attack
// sounds each require their own permission.
// POST /api/alert/trigger/:filename
func (h *AlertHandler) Trigger(c *gin.Context) {
	filename := c.Param("filename")
	user := currentUser(c)
	params := h.config.Params()

	required := ""
	switch {
	case params.SoundPPMS != "" && filename == params.SoundPPMS:
		required = "control:alert_trigger_ppms"
	case params.SoundAttentat != "" && filename == params.SoundAttentat:
		required = "control:alert_trigger_attentat"
	}
	if required != "" {
		tree, err := h.config.EffectivePermissions(user)
		if err != nil || !auth.Has(tree, required) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Permission refusée",
				"code":  "FORBIDDEN",
			})
			return
		}
	}

	if err := h.alerts.Trigger(filename, params.AudioDevice); err != nil {
		fail(c, err)
		return
	}

	h.logger.Warn("Alert triggered", "component", "api", "file", filename, "user", user)
	h.notifier.AlertTriggered(filename, user)
	c.JSON(http.StatusOK, gin.H{"status": "success", "alert_active": true, "alert_type": filename})
}

// Stop terminates the running alert
// POST /api/alert/stop
func (h *AlertHandler) Stop(c *gin.Context) {
	user := currentUser(c)
	if err := h.alerts.Stop(); err != nil {
		fail(c, err)
		return
	}
	h.logger.Info("Alert stopped", "component", "api", "user", user)
	h.notifier.AlertStopped(user)
	c.JSON(http.StatusOK, gin.H{"status": "success", "alert_active": false})
}

// End terminates any alert and plays the configured end-of-alert sound
// POST /api/alert/end
func (h *AlertHandler) End(c *gin.Context) {
	user := currentUser(c)
	params := h.config.Params()

	h.alerts.End(params.SoundEndAlert, params.AudioDevice)
	h.logger.Info("Alert ended", "component", "api", "user", user)
	h.notifier.AlertEnded(user)
	c.JSON(http.StatusOK, gin.H{"status": "success", "alert_active": false})
}
