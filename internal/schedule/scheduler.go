package schedule

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"carillon/internal/core"
)

const (
	// DefaultLookaheadDays bounds the search for the next bell.
	DefaultLookaheadDays = 60

	dispatchLead = 50 * time.Millisecond
	minSleep     = 50 * time.Millisecond
	maxSleep     = 1 * time.Second
	inactiveWait = 5 * time.Second
	errorBackoff = 15 * time.Second
	joinTimeout  = 5 * time.Second
)

// Classifier determines how a calendar date is treated.
type Classifier interface {
	Classify(date time.Time, plan core.WeeklyPlan, exceptions map[string]core.Exception) core.DayInfo
}

// Player fires a sound without waiting for playback to finish.
type Player interface {
	Fire(file, device string)
}

// Snapshot is the immutable configuration view the scheduler works from.
// A new snapshot replaces the old one atomically on Reload.
type Snapshot struct {
	DayTypes    map[string]core.DayType
	WeeklyPlan  core.WeeklyPlan
	Exceptions  map[string]core.Exception
	AudioDevice string
}

// Scheduler runs the bell loop: it classifies the current day, expands it
// into timed events and dispatches each one within its tolerance window.
type Scheduler struct {
	classifier Classifier
	player     Player
	mp3Dir     string
	logger     *slog.Logger

	// LookaheadDays is how far ahead the next-bell search goes.
	LookaheadDays int

	mu           sync.Mutex
	snap         Snapshot
	active       bool
	forceRecheck bool
	lastChecked  string
	todayInfo    core.DayInfo
	todayEvents  []core.ScheduledEvent
	next         *core.ScheduledEvent
	// noUpcoming remembers that the lookahead window is empty, so the scan
	// is not repeated until the date changes or a recheck arrives.
	noUpcoming bool
	lastErr    string

	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
	recheckCh chan struct{}

	now func() time.Time
}

// NewScheduler creates a scheduler. Run must be started on its own goroutine
// and the scheduler begins inactive until Start is called.
func NewScheduler(classifier Classifier, player Player, mp3Dir string, snap Snapshot, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		classifier:    classifier,
		player:        player,
		mp3Dir:        mp3Dir,
		logger:        logger.With("component", "scheduler"),
		LookaheadDays: DefaultLookaheadDays,
		snap:          snap,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		recheckCh:     make(chan struct{}, 1),
		now:           time.Now,
	}
}

// Run is the scheduler loop. It returns when Shutdown is called.
func (s *Scheduler) Run() {
	defer close(s.doneCh)
	s.logger.Info("Scheduler loop started")

	for {
		select {
		case <-s.stopCh:
			s.logger.Info("Scheduler loop stopped")
			return
		default:
		}

		if !s.IsRunning() {
			if !s.wait(inactiveWait) {
				s.logger.Info("Scheduler loop stopped")
				return
			}
			continue
		}

		s.step()
	}
}

// step performs one scheduling cycle: refresh state if the date changed or a
// recheck was requested, then either dispatch the due event or sleep toward
// the next one.
func (s *Scheduler) step() {
	now := s.now()
	today := core.ISODate(now)

	s.mu.Lock()
	if s.forceRecheck || s.lastChecked != today {
		s.forceRecheck = false
		s.refreshTodayLocked(now)
		s.findNextLocked(now)
	}
	if s.next == nil && !s.noUpcoming {
		s.findNextLocked(now)
	}
	next := s.next
	device := s.snap.AudioDevice
	s.mu.Unlock()

	if next == nil {
		// Nothing within the lookahead window. Wake up periodically so a
		// date change or reload is picked up.
		s.wait(maxSleep)
		return
	}

	until := next.Time.Sub(now)
	if until <= 0 {
		ok := s.dispatch(*next, device)
		s.mu.Lock()
		s.findNextLocked(now.Add(time.Second))
		s.mu.Unlock()
		if !ok {
			// Back off so a misconfigured sound does not spin the loop.
			s.wait(errorBackoff)
		}
		return
	}

	sleep := until - dispatchLead
	if sleep > maxSleep {
		sleep = maxSleep
	}
	if sleep < minSleep {
		sleep = minSleep
	}
	s.wait(sleep)
}

// refreshTodayLocked recomputes the classification and event list for the
// current date. Callers hold s.mu.
func (s *Scheduler) refreshTodayLocked(now time.Time) {
	s.lastChecked = core.ISODate(now)
	s.todayInfo = s.classifier.Classify(now, s.snap.WeeklyPlan, s.snap.Exceptions)
	s.todayEvents = Expand(now, s.todayInfo, s.snap.DayTypes, s.logger)
	s.logger.Info("Day refreshed",
		"date", s.lastChecked,
		"type", s.todayInfo.Label(),
		"events", len(s.todayEvents))
}

// findNextLocked locates the earliest event at or after cutoff, looking
// through today's remaining events and then day by day up to the lookahead
// horizon. Callers hold s.mu.
func (s *Scheduler) findNextLocked(cutoff time.Time) {
	s.next = nil
	s.noUpcoming = false

	for i := range s.todayEvents {
		if !s.todayEvents[i].Time.Before(cutoff) {
			ev := s.todayEvents[i]
			s.next = &ev
			return
		}
	}

	for i := 1; i < s.LookaheadDays; i++ {
		day := core.DateOf(cutoff).AddDate(0, 0, i)
		info := s.classifier.Classify(day, s.snap.WeeklyPlan, s.snap.Exceptions)
		events := Expand(day, info, s.snap.DayTypes, s.logger)
		if len(events) > 0 {
			ev := events[0]
			s.next = &ev
			s.logger.Info("Next bell found",
				"date", core.ISODate(day),
				"label", ev.Label,
				"time", ev.Time.Format(time.RFC3339))
			return
		}
	}

	s.noUpcoming = true
	s.logger.Warn("No bell found within lookahead window", "days", s.LookaheadDays)
}

// dispatch plays the event's sound. Events without a sound are logged and
// skipped; a missing file is recorded as the last error but does not stop
// the loop.
func (s *Scheduler) dispatch(ev core.ScheduledEvent, device string) bool {
	if ev.Sound == "" {
		s.logger.Info("Silent bell event", "label", ev.Label)
		return true
	}

	path := filepath.Join(s.mp3Dir, ev.Sound)
	if _, err := os.Stat(path); err != nil {
		s.logger.Error("Bell sound file missing", "label", ev.Label, "file", ev.Sound)
		s.recordError("fichier introuvable: " + ev.Sound)
		return false
	}

	s.logger.Info("Ringing bell", "label", ev.Label, "file", ev.Sound)
	s.player.Fire(path, device)
	s.clearError()
	return true
}

// wait sleeps for d but returns early on shutdown or recheck. It reports
// false when the scheduler must stop.
func (s *Scheduler) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.recheckCh:
		s.mu.Lock()
		s.forceRecheck = true
		s.mu.Unlock()
		return true
	case <-s.stopCh:
		return false
	}
}

func (s *Scheduler) requestRecheck() {
	select {
	case s.recheckCh <- struct{}{}:
	default:
	}
}

// Start activates bell dispatching.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.active = true
	s.forceRecheck = true
	s.mu.Unlock()
	s.requestRecheck()
	s.logger.Info("Scheduler activated")
}

// Stop deactivates bell dispatching and clears the next-ring info so the
// status view does not keep announcing a bell that will not fire. The loop
// keeps running and can be reactivated with Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.active = false
	s.next = nil
	s.mu.Unlock()
	s.logger.Info("Scheduler deactivated")
}

// IsRunning reports whether bell dispatching is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Reload replaces the configuration snapshot and forces a recheck so the
// change takes effect before the next dispatch.
func (s *Scheduler) Reload(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.forceRecheck = true
	s.next = nil
	s.noUpcoming = false
	s.mu.Unlock()
	s.requestRecheck()
	s.logger.Info("Scheduler configuration reloaded")
}

// Shutdown stops the loop and waits for it to exit, bounded by the join
// timeout.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	select {
	case <-s.doneCh:
	case <-time.After(joinTimeout):
		s.logger.Warn("Scheduler loop did not stop in time")
	}
}

// NextRing returns the upcoming bell, if one is scheduled.
func (s *Scheduler) NextRing() (time.Time, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next == nil {
		return time.Time{}, "", false
	}
	return s.next.Time, s.next.Label, true
}

// LastError returns the most recent scheduling error, or "".
func (s *Scheduler) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) recordError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

func (s *Scheduler) clearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// ScheduleForDate classifies a date with the current snapshot and expands
// its bell events, for display purposes.
func (s *Scheduler) ScheduleForDate(date time.Time) (core.DayInfo, []core.ScheduledEvent) {
	s.mu.Lock()
	snap := s.snap
	s.mu.Unlock()
	info := s.classifier.Classify(date, snap.WeeklyPlan, snap.Exceptions)
	return info, Expand(date, info, snap.DayTypes, s.logger)
}
