package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SchedulerStatus exposes the scheduler observables.
type SchedulerStatus interface {
	IsRunning() bool
	NextRing() (time.Time, string, bool)
	LastError() string
}

// AlertStatus reports the active alert, reaping exited processes.
type AlertStatus interface {
	Status() (bool, string)
}

// StatusHandler serves the composite status view polled by the dashboard.
type StatusHandler struct {
	sched  SchedulerStatus
	alerts AlertStatus
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(sched SchedulerStatus, alerts AlertStatus) *StatusHandler {
	return &StatusHandler{sched: sched, alerts: alerts}
}

// GetStatus returns scheduler and alert state in one payload
// GET /api/status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	alertActive, alertType := h.alerts.Status()

	var nextTime any
	nextLabel := ""
	if t, label, ok := h.sched.NextRing(); ok {
		nextTime = t.Format(time.RFC3339)
		nextLabel = label
	}

	lastErr := h.sched.LastError()
	if lastErr == "" {
		lastErr = "Aucune"
	}

	c.JSON(http.StatusOK, gin.H{
		"planning_active": h.sched.IsRunning(),
		"next_ring_time":  nextTime,
		"next_ring_label": nextLabel,
		"last_error":      lastErr,
		"alert_active":    alertActive,
		"alert_type":      alertType,
		"current_time":    time.Now().Format(time.RFC3339),
	})
}
