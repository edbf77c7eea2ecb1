package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"carillon/internal/core"
)

const (
	// DefaultAPIBaseURL serves public holidays as JSON per year and country.
	DefaultAPIBaseURL = "https://date.nager.at/api/v3/PublicHolidays"
	// DefaultICSBaseURL hosts the official school vacation calendars.
	DefaultICSBaseURL = "https://www.service-public.fr/simulateur/calcul/assets/dsfr-particuliers/fichiers_ics/"

	holidayCacheFile = "holiday_cache.json"
	cacheMaxAge      = 7 * 24 * time.Hour

	icsCurrentFile = "temp_vacances_current.ics"
	icsNextFile    = "temp_vacances_next.ics"
)

// Resolver classifies calendar dates using public holidays, school vacation
// periods and per-date exceptions. Holiday data comes from a JSON API with an
// on-disk cache; vacations come from the official ICS calendars.
type Resolver struct {
	mu        sync.RWMutex
	holidays  map[string]string // ISO date -> description
	vacations []core.VacationPeriod

	cacheDir string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// NewResolver creates a resolver rooted at cacheDir and loads whatever cached
// holiday data is already on disk.
func NewResolver(cacheDir string, logger *slog.Logger) *Resolver {
	r := &Resolver{
		holidays: make(map[string]string),
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger.With("component", "holiday"),
		now:      time.Now,
	}
	r.loadCacheFromDisk()
	return r
}

func (r *Resolver) cachePath() string {
	return filepath.Join(r.cacheDir, holidayCacheFile)
}

func (r *Resolver) loadCacheFromDisk() {
	data, err := os.ReadFile(r.cachePath())
	if err != nil {
		return
	}
	var cached map[string]string
	if err := json.Unmarshal(data, &cached); err != nil {
		r.logger.Warn("unreadable holiday cache, ignoring", "error", err)
		return
	}
	r.mu.Lock()
	r.holidays = cached
	r.mu.Unlock()
	r.logger.Info("loaded holiday cache", "entries", len(cached))
}

func (r *Resolver) cacheFresh() bool {
	info, err := os.Stat(r.cachePath())
	if err != nil {
		return false
	}
	return r.now().Sub(info.ModTime()) < cacheMaxAge
}

// apiHoliday is one record of the public holiday API response.
type apiHoliday struct {
	Date      string `json:"date"`
	LocalName string `json:"localName"`
	Name      string `json:"name"`
}

// LoadHolidays fetches public holidays for last year through two years ahead
// and refreshes the on-disk cache. When the cache is younger than a week the
// network is skipped unless force is set. If any year fails to fetch, the
// previously loaded data and the cache are kept untouched. Returns true when
// a complete fresh set was fetched.
func (r *Resolver) LoadHolidays(ctx context.Context, apiBaseURL, countryCode string, force bool) bool {
	if !force && r.cacheFresh() {
		r.mu.RLock()
		n := len(r.holidays)
		r.mu.RUnlock()
		if n > 0 {
			r.logger.Debug("holiday cache is fresh, skipping refresh")
			return false
		}
	}

	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}

	year := r.now().Year()
	fetched := make(map[string]string)
	failed := false
	for _, y := range []int{year - 1, year, year + 1, year + 2} {
		url := fmt.Sprintf("%s/%d/%s", strings.TrimRight(apiBaseURL, "/"), y, countryCode)
		items, err := r.fetchYear(ctx, url)
		if err != nil {
			r.logger.Warn("holiday fetch failed", "year", y, "error", err)
			failed = true
			continue
		}
		for _, it := range items {
			name := it.LocalName
			if name == "" {
				name = it.Name
			}
			fetched[it.Date] = name
		}
	}

	// A year that failed would leave a hole in the data; the previous set and
	// its cache stay in place until a complete fetch succeeds.
	if failed || len(fetched) == 0 {
		r.logger.Warn("holiday fetch incomplete, keeping previous data", "fetched", len(fetched))
		return false
	}

	r.mu.Lock()
	r.holidays = fetched
	r.mu.Unlock()

	if data, err := json.MarshalIndent(fetched, "", "  "); err == nil {
		if err := os.WriteFile(r.cachePath(), data, 0o644); err != nil {
			r.logger.Warn("could not write holiday cache", "error", err)
		}
	}
	r.logger.Info("holidays refreshed", "entries", len(fetched))
	return true
}

func (r *Resolver) fetchYear(ctx context.Context, url string) ([]apiHoliday, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var items []apiHoliday
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode holiday response: %w", err)
	}
	return items, nil
}

// academicYearStart returns the first calendar year of the academic year the
// date falls in. The school year rolls over in August.
func academicYearStart(date time.Time) int {
	if date.Month() < time.August {
		return date.Year() - 1
	}
	return date.Year()
}

// LoadVacations loads the school vacation calendars for the current and next
// academic year. For the current year an operator-provided local ICS file is
// tried first, then the download, then the stale cached copy of a previous
// download. Earlier data is kept when everything fails for a year.
func (r *Resolver) LoadVacations(ctx context.Context, zone, localPath, baseURL string) error {
	if baseURL == "" {
		baseURL = DefaultICSBaseURL
	}
	if zone == "" {
		zone = "A"
	}

	startYear := academicYearStart(r.now())
	var all []core.VacationPeriod
	var firstErr error

	years := []struct {
		start     int
		cacheFile string
		useLocal  bool
	}{
		{startYear, icsCurrentFile, true},
		{startYear + 1, icsNextFile, false},
	}
	for _, y := range years {
		local := ""
		if y.useLocal {
			local = localPath
		}
		periods, err := r.loadAcademicYear(ctx, zone, y.start, local, baseURL, y.cacheFile)
		if err != nil {
			r.logger.Warn("vacation calendar unavailable", "year", y.start, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		all = append(all, periods...)
	}

	if len(all) == 0 {
		return fmt.Errorf("no vacation data available: %w", firstErr)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })

	r.mu.Lock()
	r.vacations = all
	r.mu.Unlock()
	r.logger.Info("vacations loaded", "zone", zone, "periods", len(all))
	return nil
}

func (r *Resolver) loadAcademicYear(ctx context.Context, zone string, startYear int, localPath, baseURL, cacheFile string) ([]core.VacationPeriod, error) {
	if localPath != "" {
		if data, err := os.ReadFile(localPath); err == nil {
			periods, perr := parseICS(data)
			if perr == nil {
				r.logger.Info("vacations read from local file", "path", localPath)
				return periods, nil
			}
			r.logger.Warn("local ICS file unusable", "path", localPath, "error", perr)
		}
	}

	name := fmt.Sprintf("Zone%s-%d-%d.ics", zone, startYear, startYear+1)
	url := strings.TrimRight(baseURL, "/") + "/" + name
	cachePath := filepath.Join(r.cacheDir, cacheFile)

	data, err := r.download(ctx, url)
	if err == nil {
		periods, perr := parseICS(data)
		if perr == nil {
			if werr := os.WriteFile(cachePath, data, 0o644); werr != nil {
				r.logger.Warn("could not cache ICS file", "error", werr)
			}
			return periods, nil
		}
		err = perr
	}
	r.logger.Warn("ICS download failed, trying cached copy", "url", url, "error", err)

	cached, cerr := os.ReadFile(cachePath)
	if cerr != nil {
		return nil, err
	}
	return parseICS(cached)
}

func (r *Resolver) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// IsHoliday reports whether the date is a public holiday.
func (r *Resolver) IsHoliday(date time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.holidays[core.ISODate(date)]
	return ok
}

// HolidayDescription returns the holiday name for the date, or "".
func (r *Resolver) HolidayDescription(date time.Time) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.holidays[core.ISODate(date)]
}

// VacationInfo returns the vacation period covering the date, if any.
func (r *Resolver) VacationInfo(date time.Time) (core.VacationPeriod, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.vacations {
		if v.Contains(date) {
			return v, true
		}
	}
	return core.VacationPeriod{}, false
}

// IsVacation reports whether the date falls in a school vacation.
func (r *Resolver) IsVacation(date time.Time) bool {
	_, ok := r.VacationInfo(date)
	return ok
}

// Holidays returns all known holidays sorted by date.
func (r *Resolver) Holidays() []core.Holiday {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Holiday, 0, len(r.holidays))
	for date, desc := range r.holidays {
		out = append(out, core.Holiday{Date: date, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// VacationPeriods returns all known vacation periods sorted by start date.
func (r *Resolver) VacationPeriods() []core.VacationPeriod {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.VacationPeriod, len(r.vacations))
	copy(out, r.vacations)
	return out
}

// Classify determines how a date is treated. Precedence, highest first:
// exception, public holiday, vacation, weekly plan, weekend.
func (r *Resolver) Classify(date time.Time, plan core.WeeklyPlan, exceptions map[string]core.Exception) core.DayInfo {
	iso := core.ISODate(date)

	if exc, ok := exceptions[iso]; ok {
		switch exc.Action {
		case core.ExceptionSilence:
			return core.DayInfo{Kind: core.DayExceptionSilence, Description: exc.Description}
		case core.ExceptionUseDayType:
			return core.DayInfo{Kind: core.DayExceptionDayType, Description: exc.Description, ScheduleName: exc.DayType}
		}
		r.logger.Warn("exception with unknown action ignored", "date", iso, "action", exc.Action)
	}

	if desc := r.HolidayDescription(date); desc != "" {
		return core.DayInfo{Kind: core.DayHoliday, Description: desc}
	}

	if v, ok := r.VacationInfo(date); ok {
		return core.DayInfo{Kind: core.DayVacation, Description: v.Description}
	}

	name := plan[core.WeekdayName(date)]
	if name == "" || strings.EqualFold(name, core.NoSchedule) {
		return core.DayInfo{Kind: core.DayWeekend}
	}
	return core.DayInfo{Kind: core.DayClass, ScheduleName: name}
}
