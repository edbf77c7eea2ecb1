package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SchedulerControl switches bell dispatching on and off.
type SchedulerControl interface {
	Start()
	Stop()
}

// PlanningHandler activates and deactivates the schedule
type PlanningHandler struct {
	sched  SchedulerControl
	logger *slog.Logger
}

// NewPlanningHandler creates a new planning handler
func NewPlanningHandler(sched SchedulerControl, logger *slog.Logger) *PlanningHandler {
	return &PlanningHandler{sched: sched, logger: logger}
}

// Activate turns bell dispatching on
// POST /api/planning/activate
func (h *PlanningHandler) Activate(c *gin.Context) {
	h.sched.Start()
	h.logger.Info("Planning activated", "component", "api", "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"status": "success", "planning_active": true})
}

// Deactivate turns bell dispatching off
// POST /api/planning/deactivate
func (h *PlanningHandler) Deactivate(c *gin.Context) {
	h.sched.Stop()
	h.logger.Info("Planning deactivated", "component", "api", "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"status": "success", "planning_active": false})
}
