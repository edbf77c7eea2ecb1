package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Period is a time interval inside a day type. Times are local wall-clock
// "HH:MM:SS" (or "HH:MM"); the optional sounds ring at the boundaries. An
// empty sound means the event exists but is silent.
type Period struct {
	Name       string `json:"nom"`
	Start      string `json:"heure_debut"`
	End        string `json:"heure_fin"`
	SoundStart string `json:"sonnerie_debut,omitempty"`
	SoundEnd   string `json:"sonnerie_fin,omitempty"`
}

// DayType is a named template of periods applied to a calendar day.
type DayType struct {
	Name    string   `json:"nom"`
	Periods []Period `json:"periodes"`
}

// NoSchedule is the weekly-plan sentinel meaning "no bells this day".
const NoSchedule = "Aucune"

// WeeklyPlan maps a weekday name (Lundi..Dimanche) to a day-type name or
// NoSchedule.
type WeeklyPlan map[string]string

// Exception actions.
const (
	ExceptionSilence    = "silence"
	ExceptionUseDayType = "utiliser_jt"
)

// Exception is a per-date planning override, keyed by ISO date.
type Exception struct {
	Action      string `json:"action"`
	DayType     string `json:"journee_type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Holiday is a public holiday as exposed to the calendar API.
type Holiday struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// VacationPeriod is a school vacation with an inclusive end date.
type VacationPeriod struct {
	Start       time.Time
	End         time.Time
	Description string
}

// Contains reports whether the date falls inside the vacation period.
// Comparison is by calendar date so mixed timezones (ICS dates are UTC,
// schedule dates are local) cannot shift the boundaries.
func (v VacationPeriod) Contains(date time.Time) bool {
	d := ISODate(date)
	return d >= ISODate(v.Start) && d <= ISODate(v.End)
}

// DayKind is the outcome of classifying a calendar date.
type DayKind int

const (
	DayExceptionSilence DayKind = iota
	DayExceptionDayType
	DayHoliday
	DayVacation
	DayClass
	DayWeekend
)

// DayInfo describes how a given date is to be treated by the scheduler.
// ScheduleName is empty for silent days.
type DayInfo struct {
	Kind         DayKind
	Description  string
	ScheduleName string
}

// Label returns the display type string used by the calendar API. The French
// strings are part of the wire format consumed by the existing frontend.
func (d DayInfo) Label() string {
	switch d.Kind {
	case DayExceptionSilence:
		return "Exception (Silence)"
	case DayExceptionDayType:
		return "Exception (utiliser_jt)"
	case DayHoliday:
		return "Férié"
	case DayVacation:
		return "Vacances"
	case DayClass:
		return fmt.Sprintf("Classe (%s)", d.ScheduleName)
	default:
		return "Weekend"
	}
}

// Event kinds.
const (
	EventStart = "start"
	EventEnd   = "end"
)

// ScheduledEvent is a single timed bell event expanded for a concrete date.
type ScheduledEvent struct {
	Time  time.Time
	Label string
	Kind  string
	Sound string
}

// PermissionTree is the nested permission map stored in roles_config.json:
// section -> action -> bool, plus flat "page:<name>" booleans and the
// "admin:has_all_permissions" sentinel at the top level.
type PermissionTree map[string]any

// User is a users.json record.
type User struct {
	Hash        string         `json:"hash"`
	FullName    string         `json:"nom_complet"`
	Role        string         `json:"role"`
	CustomPerms PermissionTree `json:"custom_permissions,omitempty"`
}

// Role is a roles_config.json record.
type Role struct {
	Permissions PermissionTree `json:"permissions"`
}

var (
	ErrDayTypeNotFound   = errors.New("day type not found")
	ErrDayTypeInUse      = errors.New("day type is referenced by the weekly plan or an exception")
	ErrNameExists        = errors.New("name already exists")
	ErrInvalidPeriod     = errors.New("period end must be after start")
	ErrDuplicatePeriod   = errors.New("duplicate period (name, start, end)")
	ErrInvalidClock      = errors.New("invalid time of day, expected HH:MM:SS")
	ErrInvalidException  = errors.New("invalid exception action")
	ErrUserNotFound      = errors.New("user not found")
	ErrRoleNotFound      = errors.New("role not found")
	ErrSoundNotFound     = errors.New("sound file not found")
	ErrAlertNotActive    = errors.New("no active alert")
	ErrInvalidDate       = errors.New("invalid date, expected YYYY-MM-DD")
	ErrExceptionNotFound = errors.New("exception not found")
)

// ParseClock parses "HH:MM:SS" or "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	var h, m, sec int
	switch strings.Count(s, ":") {
	case 2:
		if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
	case 1:
		if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// At combines a calendar date with a clock offset in the date's location.
func At(date time.Time, clock time.Duration) time.Time {
	return DateOf(date).Add(clock)
}

// Validate checks a DayType: each period must parse and end after its start,
// and no two periods may share (name, start, end). Overlaps are tolerated.
func (dt *DayType) Validate() error {
	if dt.Name == "" {
		return errors.New("day type name cannot be empty")
	}
	seen := make(map[string]struct{}, len(dt.Periods))
	for _, p := range dt.Periods {
		start, err := ParseClock(p.Start)
		if err != nil {
			return err
		}
		end, err := ParseClock(p.End)
		if err != nil {
			return err
		}
		if end <= start {
			return fmt.Errorf("%w: %q", ErrInvalidPeriod, p.Name)
		}
		key := p.Name + "|" + p.Start + "|" + p.End
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicatePeriod, p.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// SortedPeriods returns a copy of the periods ordered by start time.
// Unparsable starts sort last, keeping their input order.
func (dt *DayType) SortedPeriods() []Period {
	out := make([]Period, len(dt.Periods))
	copy(out, dt.Periods)
	sort.SliceStable(out, func(i, j int) bool {
		a, errA := ParseClock(out[i].Start)
		b, errB := ParseClock(out[j].Start)
		if errA != nil || errB != nil {
			return errA == nil && errB != nil
		}
		return a < b
	})
	return out
}

// Validate checks an Exception record.
func (e *Exception) Validate() error {
	switch e.Action {
	case ExceptionSilence:
		return nil
	case ExceptionUseDayType:
		if e.DayType == "" {
			return fmt.Errorf("%w: %s requires journee_type", ErrInvalidException, ExceptionUseDayType)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidException, e.Action)
	}
}

// weekdayNames maps Go weekdays to the plan keys used in the config files.
var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Lundi",
	time.Tuesday:   "Mardi",
	time.Wednesday: "Mercredi",
	time.Thursday:  "Jeudi",
	time.Friday:    "Vendredi",
	time.Saturday:  "Samedi",
	time.Sunday:    "Dimanche",
}

// WeekdayName returns the French plan key for a date's weekday.
func WeekdayName(date time.Time) string {
	return weekdayNames[date.Weekday()]
}

// WeekdayKeys lists all valid weekly-plan keys, Monday first.
func WeekdayKeys() []string {
	return []string{"Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi", "Dimanche"}
}

// DateOf truncates a time to midnight in its location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ISODate formats a date as YYYY-MM-DD.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseISODate parses YYYY-MM-DD in the local timezone.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}
