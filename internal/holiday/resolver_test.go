package holiday

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carillon/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func date(s string) time.Time {
	d, err := core.ParseISODate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(t.TempDir(), testLogger())
}

func TestClassifyPrecedence(t *testing.T) {
	r := newTestResolver(t)
	r.holidays = map[string]string{
		"2025-11-11": "Armistice 1918",
		"2025-12-25": "Noël",
	}
	r.vacations = []core.VacationPeriod{
		{Start: date("2025-10-18"), End: date("2025-11-02"), Description: "Vacances de la Toussaint"},
		{Start: date("2025-12-20"), End: date("2026-01-04"), Description: "Vacances de Noël"},
	}

	plan := core.WeeklyPlan{
		"Lundi":    "Standard",
		"Mardi":    "Standard",
		"Mercredi": "Demi-journée",
		"Jeudi":    "Standard",
		"Vendredi": "Standard",
		"Samedi":   core.NoSchedule,
		"Dimanche": core.NoSchedule,
	}
	exceptions := map[string]core.Exception{
		"2025-11-11": {Action: core.ExceptionUseDayType, DayType: "Cérémonie", Description: "Commémoration"},
		"2025-11-12": {Action: core.ExceptionSilence, Description: "Examens"},
	}

	tests := []struct {
		name string
		date string
		want core.DayInfo
	}{
		{
			name: "exception overrides holiday",
			date: "2025-11-11",
			want: core.DayInfo{Kind: core.DayExceptionDayType, Description: "Commémoration", ScheduleName: "Cérémonie"},
		},
		{
			name: "silence exception on a class day",
			date: "2025-11-12",
			want: core.DayInfo{Kind: core.DayExceptionSilence, Description: "Examens"},
		},
		{
			name: "holiday overrides vacation",
			date: "2025-12-25",
			want: core.DayInfo{Kind: core.DayHoliday, Description: "Noël"},
		},
		{
			name: "vacation overrides weekly plan",
			date: "2025-10-20", // a Monday inside Toussaint
			want: core.DayInfo{Kind: core.DayVacation, Description: "Vacances de la Toussaint"},
		},
		{
			name: "weekly plan class day",
			date: "2025-11-17", // Monday
			want: core.DayInfo{Kind: core.DayClass, ScheduleName: "Standard"},
		},
		{
			name: "weekly plan Aucune means weekend",
			date: "2025-11-15", // Saturday
			want: core.DayInfo{Kind: core.DayWeekend},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Classify(date(tt.date), plan, exceptions)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyMissingPlanEntry(t *testing.T) {
	r := newTestResolver(t)

	// No entry for Monday at all, lowercase sentinel for Tuesday.
	plan := core.WeeklyPlan{"Mardi": "aucune"}
	got := r.Classify(date("2025-11-17"), plan, nil)
	assert.Equal(t, core.DayWeekend, got.Kind)

	got = r.Classify(date("2025-11-18"), plan, nil)
	assert.Equal(t, core.DayWeekend, got.Kind)
}

const toussaintICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//FR\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:toussaint-2025\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20251018\r\n" +
	"DTEND;VALUE=DATE:20251103\r\n" +
	"SUMMARY:Vacances de la Toussaint\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICSInclusiveEnd(t *testing.T) {
	periods, err := parseICS([]byte(toussaintICS))
	require.NoError(t, err)
	require.Len(t, periods, 1)

	p := periods[0]
	assert.Equal(t, "Vacances de la Toussaint", p.Description)
	assert.Equal(t, "2025-10-18", core.ISODate(p.Start))
	// DTEND 2025-11-03 is exclusive, the last vacation day is the 2nd.
	assert.Equal(t, "2025-11-02", core.ISODate(p.End))

	assert.True(t, p.Contains(date("2025-11-02")))
	assert.False(t, p.Contains(date("2025-11-03")))
}

func TestLoadVacationsFromLocalFile(t *testing.T) {
	r := newTestResolver(t)
	r.now = func() time.Time { return date("2025-10-01") }

	local := filepath.Join(t.TempDir(), "vacances.ics")
	require.NoError(t, os.WriteFile(local, []byte(toussaintICS), 0o644))

	// Downloads fail, only the local file is usable.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := r.LoadVacations(context.Background(), "B", local, srv.URL)
	require.NoError(t, err)
	assert.True(t, r.IsVacation(date("2025-10-20")))
	assert.False(t, r.IsVacation(date("2025-11-03")))
}

func TestLoadVacationsDownloadAndStaleFallback(t *testing.T) {
	r := newTestResolver(t)
	r.now = func() time.Time { return date("2025-10-01") }

	var requested []string
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requested = append(requested, req.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(toussaintICS))
	}))
	defer srv.Close()

	require.NoError(t, r.LoadVacations(context.Background(), "B", "", srv.URL))
	// October 2025 belongs to the 2025-2026 academic year, plus the next one.
	assert.Contains(t, requested, "/ZoneB-2025-2026.ics")
	assert.Contains(t, requested, "/ZoneB-2026-2027.ics")
	assert.True(t, r.IsVacation(date("2025-10-20")))

	// Server goes down: the cached copies keep the data available.
	healthy = false
	require.NoError(t, r.LoadVacations(context.Background(), "B", "", srv.URL))
	assert.True(t, r.IsVacation(date("2025-10-20")))
}

func TestAcademicYearStart(t *testing.T) {
	assert.Equal(t, 2024, academicYearStart(date("2025-03-15")))
	assert.Equal(t, 2024, academicYearStart(date("2025-07-31")))
	assert.Equal(t, 2025, academicYearStart(date("2025-08-01")))
	assert.Equal(t, 2025, academicYearStart(date("2025-12-31")))
}

func TestLoadHolidays(t *testing.T) {
	var years []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		parts := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
		require.Len(t, parts, 2)
		assert.Equal(t, "FR", parts[1])
		years = append(years, parts[0])
		w.Write([]byte(`[{"date":"` + parts[0] + `-07-14","localName":"Fête nationale","name":"Bastille Day"}]`))
	}))
	defer srv.Close()

	r := newTestResolver(t)
	r.now = func() time.Time { return date("2025-10-01") }

	assert.True(t, r.LoadHolidays(context.Background(), srv.URL, "FR", true))
	assert.ElementsMatch(t, []string{"2024", "2025", "2026", "2027"}, years)
	assert.True(t, r.IsHoliday(date("2026-07-14")))
	assert.Equal(t, "Fête nationale", r.HolidayDescription(date("2025-07-14")))

	// The cache file was written and a fresh resolver picks it up.
	r2 := NewResolver(r.cacheDir, testLogger())
	assert.True(t, r2.IsHoliday(date("2025-07-14")))

	// Fresh cache skips the network without force.
	years = nil
	assert.False(t, r.LoadHolidays(context.Background(), srv.URL, "FR", false))
	assert.Empty(t, years)
}

func TestLoadHolidaysKeepsDataOnPartialFailure(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		parts := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
		if !healthy && parts[0] == "2026" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"date":"` + parts[0] + `-07-14","localName":"Fête nationale","name":"Bastille Day"}]`))
	}))
	defer srv.Close()

	r := newTestResolver(t)
	r.now = func() time.Time { return date("2025-10-01") }

	require.True(t, r.LoadHolidays(context.Background(), srv.URL, "FR", true))
	require.True(t, r.IsHoliday(date("2026-07-14")))

	// One year out of four fails: the complete previous set must survive,
	// in memory and on disk.
	healthy = false
	assert.False(t, r.LoadHolidays(context.Background(), srv.URL, "FR", true))
	assert.True(t, r.IsHoliday(date("2026-07-14")))
	assert.True(t, r.IsHoliday(date("2025-07-14")))

	r2 := NewResolver(r.cacheDir, testLogger())
	assert.True(t, r2.IsHoliday(date("2026-07-14")))
}

func TestLoadHolidaysKeepsDataOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := newTestResolver(t)
	r.holidays = map[string]string{"2025-12-25": "Noël"}

	assert.False(t, r.LoadHolidays(context.Background(), srv.URL, "FR", true))
	assert.True(t, r.IsHoliday(date("2025-12-25")))
}

func TestHolidaysSorted(t *testing.T) {
	r := newTestResolver(t)
	r.holidays = map[string]string{
		"2025-12-25": "Noël",
		"2025-01-01": "Jour de l'an",
		"2025-07-14": "Fête nationale",
	}
	list := r.Holidays()
	require.Len(t, list, 3)
	assert.Equal(t, "2025-01-01", list[0].Date)
	assert.Equal(t, "2025-12-25", list[2].Date)
}
