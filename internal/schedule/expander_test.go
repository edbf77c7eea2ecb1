package schedule

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carillon/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func isoDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := core.ParseISODate(s)
	require.NoError(t, err)
	return d
}

var standardDay = core.DayType{
	Name: "Standard",
	Periods: []core.Period{
		{Name: "P2", Start: "09:00:00", End: "09:55:00", SoundStart: "bell.mp3", SoundEnd: "bell.mp3"},
		{Name: "P1", Start: "08:00:00", End: "08:55:00", SoundStart: "bell.mp3", SoundEnd: "bell.mp3"},
	},
}

func TestExpandClassDay(t *testing.T) {
	day := isoDate(t, "2025-06-16")
	info := core.DayInfo{Kind: core.DayClass, ScheduleName: "Standard"}
	dayTypes := map[string]core.DayType{"Standard": standardDay}

	events := Expand(day, info, dayTypes, testLogger())
	require.Len(t, events, 4)

	labels := make([]string, len(events))
	for i, ev := range events {
		labels[i] = ev.Label
	}
	assert.Equal(t, []string{"Start P1", "End P1", "Start P2", "End P2"}, labels)

	assert.Equal(t, time.Date(2025, 6, 16, 8, 0, 0, 0, time.Local), events[0].Time)
	assert.Equal(t, core.EventStart, events[0].Kind)
	assert.Equal(t, "bell.mp3", events[0].Sound)
	assert.Equal(t, core.EventEnd, events[1].Kind)
}

func TestExpandSilentDays(t *testing.T) {
	day := isoDate(t, "2025-06-15")
	dayTypes := map[string]core.DayType{"Standard": standardDay}

	for _, info := range []core.DayInfo{
		{Kind: core.DayWeekend},
		{Kind: core.DayHoliday, Description: "Noël"},
		{Kind: core.DayVacation, Description: "Vacances d'été"},
		{Kind: core.DayExceptionSilence, Description: "Examens"},
	} {
		assert.Empty(t, Expand(day, info, dayTypes, testLogger()))
	}
}

func TestExpandUnknownDayType(t *testing.T) {
	day := isoDate(t, "2025-06-16")
	info := core.DayInfo{Kind: core.DayClass, ScheduleName: "Disparue"}
	assert.Empty(t, Expand(day, info, map[string]core.DayType{}, testLogger()))
}

func TestExpandSkipsInvalidTimes(t *testing.T) {
	day := isoDate(t, "2025-06-16")
	info := core.DayInfo{Kind: core.DayClass, ScheduleName: "Cassée"}
	dayTypes := map[string]core.DayType{
		"Cassée": {
			Name: "Cassée",
			Periods: []core.Period{
				{Name: "P1", Start: "8h00", End: "08:55:00", SoundEnd: "bell.mp3"},
				{Name: "P2", Start: "09:00:00", End: "09:55:00", SoundStart: "bell.mp3"},
			},
		},
	}

	events := Expand(day, info, dayTypes, testLogger())
	// P1's start is unparsable but its end survives, P2 is intact.
	require.Len(t, events, 3)
	assert.Equal(t, "End P1", events[0].Label)
	assert.Equal(t, "Start P2", events[1].Label)
}

func TestExpandExceptionDayType(t *testing.T) {
	day := isoDate(t, "2025-12-25")
	info := core.DayInfo{Kind: core.DayExceptionDayType, ScheduleName: "Standard"}
	dayTypes := map[string]core.DayType{"Standard": standardDay}

	events := Expand(day, info, dayTypes, testLogger())
	assert.Len(t, events, 4)
}
