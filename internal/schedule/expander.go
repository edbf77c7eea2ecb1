package schedule

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"carillon/internal/core"
)

// Expand turns a classified day into the concrete list of bell events for
// that date, ordered by time. Silent days (weekend, vacation, holiday,
// silence exception) produce no events. Periods with unparsable times are
// skipped with a warning; the rest of the day still expands.
func Expand(date time.Time, info core.DayInfo, dayTypes map[string]core.DayType, logger *slog.Logger) []core.ScheduledEvent {
	if info.ScheduleName == "" {
		return nil
	}

	dt, ok := dayTypes[info.ScheduleName]
	if !ok {
		logger.Warn("Day references unknown day type, treating as silent",
			"date", core.ISODate(date), "day_type", info.ScheduleName)
		return nil
	}

	var events []core.ScheduledEvent
	for _, p := range dt.SortedPeriods() {
		start, err := core.ParseClock(p.Start)
		if err != nil {
			logger.Warn("Skipping period with invalid start time",
				"day_type", dt.Name, "period", p.Name, "value", p.Start)
		} else {
			events = append(events, core.ScheduledEvent{
				Time:  core.At(date, start),
				Label: fmt.Sprintf("Start %s", p.Name),
				Kind:  core.EventStart,
				Sound: p.SoundStart,
			})
		}

		end, err := core.ParseClock(p.End)
		if err != nil {
			logger.Warn("Skipping period with invalid end time",
				"day_type", dt.Name, "period", p.Name, "value", p.End)
		} else {
			events = append(events, core.ScheduledEvent{
				Time:  core.At(date, end),
				Label: fmt.Sprintf("End %s", p.Name),
				Kind:  core.EventEnd,
				Sound: p.SoundEnd,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})
	return events
}
