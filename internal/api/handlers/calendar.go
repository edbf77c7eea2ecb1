package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"carillon/internal/core"
	"carillon/internal/schedule"
)

// DayClassifier classifies dates and lists the loaded holiday and vacation
// data for the calendar views.
type DayClassifier interface {
	Classify(date time.Time, plan core.WeeklyPlan, exceptions map[string]core.Exception) core.DayInfo
	Holidays() []core.Holiday
	VacationPeriods() []core.VacationPeriod
}

// SnapshotSource provides the current planning configuration.
type SnapshotSource interface {
	Snapshot() schedule.Snapshot
}

// ScheduleViewer expands one date's bell schedule.
type ScheduleViewer interface {
	ScheduleForDate(date time.Time) (core.DayInfo, []core.ScheduledEvent)
}

// CalendarHandler serves the calendar and daily schedule views
type CalendarHandler struct {
	classifier DayClassifier
	snapshots  SnapshotSource
	viewer     ScheduleViewer
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(classifier DayClassifier, snapshots SnapshotSource, viewer ScheduleViewer) *CalendarHandler {
	return &CalendarHandler{classifier: classifier, snapshots: snapshots, viewer: viewer}
}

// CalendarView classifies every date of the requested range of an academic
// year ("2025-2026" runs September 2025 through August 2026).
// GET /api/calendar_view?year=YYYY-YYYY&view_type=year|semester|trimester|month&...
func (h *CalendarHandler) CalendarView(c *gin.Context) {
	yearParam := c.DefaultQuery("year", defaultAcademicYear(time.Now()))
	viewType := c.DefaultQuery("view_type", "year")

	startYear, err := parseAcademicYear(yearParam)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	from, to, err := viewRange(startYear, viewType, c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	snap := h.snapshots.Snapshot()
	days := make(map[string]gin.H)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		info := h.classifier.Classify(d, snap.WeeklyPlan, snap.Exceptions)
		days[core.ISODate(d)] = gin.H{
			"type":        info.Label(),
			"description": info.Description,
		}
	}

	vacations := make([]gin.H, 0)
	for _, v := range h.classifier.VacationPeriods() {
		vacations = append(vacations, gin.H{
			"start":       core.ISODate(v.Start),
			"end":         core.ISODate(v.End),
			"description": v.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"days":      days,
		"vacations": vacations,
		"holidays":  h.classifier.Holidays(),
		"debug_params": gin.H{
			"year":      yearParam,
			"view_type": viewType,
			"from":      core.ISODate(from),
			"to":        core.ISODate(to),
		},
	})
}

// DailySchedule returns one date's classification and expanded bell list
// GET /api/daily_schedule?date=YYYY-MM-DD
func (h *CalendarHandler) DailySchedule(c *gin.Context) {
	dateStr := c.DefaultQuery("date", core.ISODate(time.Now()))
	date, err := core.ParseISODate(dateStr)
	if err != nil {
		fail(c, err)
		return
	}

	info, events := h.viewer.ScheduleForDate(date)

	items := make([]gin.H, 0, len(events))
	for _, ev := range events {
		items = append(items, gin.H{
			"heure":    ev.Time.Format("15:04:05"),
			"label":    ev.Label,
			"kind":     ev.Kind,
			"sonnerie": ev.Sound,
		})
	}

	message := info.Description
	if len(events) == 0 && message == "" {
		message = "Aucune sonnerie ce jour"
	}

	c.JSON(http.StatusOK, gin.H{
		"date":     dateStr,
		"type":     info.Label(),
		"message":  message,
		"schedule": items,
	})
}

func defaultAcademicYear(now time.Time) string {
	y := now.Year()
	if now.Month() < time.September {
		y--
	}
	return fmt.Sprintf("%d-%d", y, y+1)
}

func parseAcademicYear(s string) (int, error) {
	first, _, found := strings.Cut(s, "-")
	if !found {
		return 0, fmt.Errorf("format d'année attendu: YYYY-YYYY")
	}
	y, err := strconv.Atoi(first)
	if err != nil || y < 2000 || y > 2100 {
		return 0, fmt.Errorf("année invalide: %q", s)
	}
	return y, nil
}

// viewRange computes the inclusive date range for a view of the academic
// year starting in September of startYear.
func viewRange(startYear int, viewType string, c *gin.Context) (time.Time, time.Time, error) {
	sept := time.Date(startYear, time.September, 1, 0, 0, 0, 0, time.Local)
	augEnd := time.Date(startYear+1, time.September, 1, 0, 0, 0, 0, time.Local).AddDate(0, 0, -1)

	switch viewType {
	case "year":
		return sept, augEnd, nil

	case "semester":
		switch c.DefaultQuery("semester", "1") {
		case "1":
			return sept, time.Date(startYear+1, time.February, 1, 0, 0, 0, 0, time.Local).AddDate(0, 0, -1), nil
		case "2":
			return time.Date(startYear+1, time.February, 1, 0, 0, 0, 0, time.Local), augEnd, nil
		}
		return time.Time{}, time.Time{}, fmt.Errorf("semestre invalide")

	case "trimester":
		switch c.DefaultQuery("trimester", "1") {
		case "1":
			return sept, time.Date(startYear, time.December, 1, 0, 0, 0, 0, time.Local).AddDate(0, 0, -1), nil
		case "2":
			return time.Date(startYear, time.December, 1, 0, 0, 0, 0, time.Local),
				time.Date(startYear+1, time.March, 1, 0, 0, 0, 0, time.Local).AddDate(0, 0, -1), nil
		case "3":
			return time.Date(startYear+1, time.March, 1, 0, 0, 0, 0, time.Local), augEnd, nil
		}
		return time.Time{}, time.Time{}, fmt.Errorf("trimestre invalide")

	case "month":
		m, err := strconv.Atoi(c.DefaultQuery("month", "9"))
		if err != nil || m < 1 || m > 12 {
			return time.Time{}, time.Time{}, fmt.Errorf("mois invalide")
		}
		y := startYear
		if m < 9 {
			y = startYear + 1
		}
		first := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.Local)
		return first, first.AddDate(0, 1, -1), nil
	}

	return time.Time{}, time.Time{}, fmt.Errorf("view_type invalide: %q", viewType)
}
