package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"carillon/internal/core"
	"carillon/internal/schedule"
	"carillon/internal/store"
)

// Reloader receives a new configuration snapshot.
type Reloader interface {
	Reload(snap schedule.Snapshot)
}

// HolidayLoader refreshes the holiday and vacation data.
type HolidayLoader interface {
	LoadHolidays(ctx context.Context, apiBaseURL, countryCode string, force bool) bool
	LoadVacations(ctx context.Context, zone, localPath, baseURL string) error
}

// ConfigHandler serves the configuration CRUD endpoints. Every successful
// write pushes a fresh snapshot to the scheduler, so a change always takes
// effect before the next bell.
type ConfigHandler struct {
	store    *store.Store
	sched    Reloader
	resolver HolidayLoader
	mp3Dir   string
	logger   *slog.Logger
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(st *store.Store, sched Reloader, resolver HolidayLoader, mp3Dir string, logger *slog.Logger) *ConfigHandler {
	return &ConfigHandler{store: st, sched: sched, resolver: resolver, mp3Dir: mp3Dir, logger: logger}
}

func (h *ConfigHandler) pushSnapshot() {
	h.sched.Reload(h.store.Snapshot())
}

// Reload re-reads every config file, refreshes holiday and vacation data
// and hands the scheduler a new snapshot
// POST /api/config/reload
func (h *ConfigHandler) Reload(c *gin.Context) {
	status := h.store.LoadAll()
	files := make(map[string]string, len(status))
	ok := true
	for name, err := range status {
		if err != nil {
			files[name] = err.Error()
			ok = false
		} else {
			files[name] = "ok"
		}
	}

	params := h.store.Params()
	bells := h.store.BellData()
	force := c.Query("force") == "true"
	h.resolver.LoadHolidays(c.Request.Context(), params.HolidayAPIURL, params.HolidayCountryCode, force)
	if err := h.resolver.LoadVacations(c.Request.Context(), params.Zone, bells.Vacations.ICSFilePath, params.VacationICSBaseURL); err != nil {
		h.logger.Warn("Vacation reload failed", "component", "api", "error", err)
	}

	h.pushSnapshot()
	h.logger.Info("Configuration reloaded", "component", "api", "user", currentUser(c), "ok", ok)
	c.JSON(http.StatusOK, gin.H{"status": "success", "files": files})
}

// Settings returns the UI bootstrap settings
// GET /api/config/settings
func (h *ConfigHandler) Settings(c *gin.Context) {
	p := h.store.Params()
	c.JSON(http.StatusOK, gin.H{
		"alert_click_mode":                p.AlertClickMode,
		"status_refresh_interval_seconds": p.StatusRefreshSeconds,
		"sonnerie_ppms":                   p.SoundPPMS,
		"sonnerie_attentat":               p.SoundAttentat,
		"sonnerie_fin_alerte":             p.SoundEndAlert,
	})
}

// GetGeneral returns the general parameters
// GET /api/config/general_and_alerts
func (h *ConfigHandler) GetGeneral(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Params())
}

// SetGeneral replaces the general parameters
// POST /api/config/general_and_alerts
func (h *ConfigHandler) SetGeneral(c *gin.Context) {
	var p store.Params
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "paramètres invalides: "+err.Error())
		return
	}
	if err := h.store.SetParams(p); err != nil {
		fail(c, err)
		return
	}
	h.pushSnapshot()
	h.logger.Info("General parameters updated", "component", "api", "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GetWeekly returns the weekly plan
// GET /api/config/weekly_schedule
func (h *ConfigHandler) GetWeekly(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.BellData().WeeklyPlan)
}

// SetWeekly replaces the weekly plan
// POST /api/config/weekly_schedule
func (h *ConfigHandler) SetWeekly(c *gin.Context) {
	var plan core.WeeklyPlan
	if err := c.ShouldBindJSON(&plan); err != nil {
		badRequest(c, "planning invalide: "+err.Error())
		return
	}
	if err := h.store.SetWeeklyPlan(plan); err != nil {
		fail(c, err)
		return
	}
	h.pushSnapshot()
	h.logger.Info("Weekly plan updated", "component", "api", "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ListDayTypes returns all day types
// GET /api/config/day_types
func (h *ConfigHandler) ListDayTypes(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.DayTypes())
}

// CreateDayType adds a day type
// POST /api/config/day_types
func (h *ConfigHandler) CreateDayType(c *gin.Context) {
	var dt core.DayType
	if err := c.ShouldBindJSON(&dt); err != nil {
		badRequest(c, "journée type invalide: "+err.Error())
		return
	}
	if dt.Name == "" {
		badRequest(c, "le nom est requis")
		return
	}
	if err := h.store.PutDayType(dt, true); err != nil {
		fail(c, err)
		return
	}
	h.pushSnapshot()
	h.logger.Info("Day type created", "component", "api", "name", dt.Name, "user", currentUser(c))
	c.JSON(http.StatusCreated, gin.H{"status": "success", "name": dt.Name})
}

// UpdateDayType replaces a day type
// PUT /api/config/day_types/:name
func (h *ConfigHandler) UpdateDayType(c *gin.Context) {
	var dt core.DayType
	if err := c.ShouldBindJSON(&dt); err != nil {
		badRequest(c, "journée type invalide: "+err.Error())
		return
	}
	dt.Name = c.Param("name")
	if err := h.store.PutDayType(dt, false); err != nil {
		fail(c, err)
		return
	}
	h.pushSnapshot()
	h.logger.Info("Day type updated", "component", "api", "name", dt.Name, "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// DeleteDayType removes a day type unless the plan or an exception still
// references it
// DELETE /api/config/day_types/:name
func (h *ConfigHandler) DeleteDayType(c *gin.Context) {
	name := c.Param("name")
	if err := h.store.DeleteDayType(name); err != nil {
		fail(c, err)
		return
	}
	h.pushSnapshot()
	h.logger.Info("Day type deleted", "component", "api", "name", name, "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ListExceptions returns all planning exceptions
// GET /api/config/exceptions
func (h *ConfigHandler) ListExceptions(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.BellData().Exceptions)
}

// SetException creates or replaces the exception for a date
// PUT /api/config/exceptions/:date
func (h *ConfigHandler) SetException(c *gin.Context) {
	var exc core.Exception
	if err := c.ShouldBindJSON(&exc); err != nil {
		badRequest(c, "exception invalide: "+err.Error())
		return
	}
	date := c.Param("date")
	if err := h.store.SetException(date, exc); err != nil {
		fail(c, err)
		return
	}
	h.pushSnapshot()
	h.logger.Info("Exception set", "component", "api", "date", date, "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// DeleteException removes the exception for a date
// DELETE /api/config/exceptions/:date
func (h *ConfigHandler) DeleteException(c *gin.Context) {
	date := c.Param("date")
	if err := h.store.DeleteException(date); err != nil {
		fail(c, err)
		return
	}
	h.pushSnapshot()
	h.logger.Info("Exception deleted", "component", "api", "date", date, "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ListSounds returns the named sounds and the files present in the MP3
// directory
// GET /api/config/sounds
func (h *ConfigHandler) ListSounds(c *gin.Context) {
	files := make([]string, 0)
	entries, err := os.ReadDir(h.mp3Dir)
	if err != nil {
		h.logger.Error("Could not read MP3 directory", "component", "api", "error", err)
	} else {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".mp3", ".wav":
				files = append(files, e.Name())
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"sonneries": h.store.Sounds(),
		"fichiers":  files,
	})
}
