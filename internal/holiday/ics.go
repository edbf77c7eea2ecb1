package holiday

import (
	"bytes"
	"fmt"

	ics "github.com/arran4/golang-ical"

	"carillon/internal/core"
)

// parseICS extracts vacation periods from an ICS calendar. DTEND is exclusive
// in the ICS format, so one day is subtracted to get the inclusive last day.
func parseICS(data []byte) ([]core.VacationPeriod, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse ICS: %w", err)
	}

	var periods []core.VacationPeriod
	for _, event := range cal.Events() {
		start, err := event.GetAllDayStartAt()
		if err != nil {
			if start, err = event.GetStartAt(); err != nil {
				continue
			}
		}
		end, err := event.GetAllDayEndAt()
		if err != nil {
			if end, err = event.GetEndAt(); err != nil {
				continue
			}
		}

		summary := ""
		if prop := event.GetProperty(ics.ComponentPropertySummary); prop != nil {
			summary = prop.Value
		}

		inclusiveEnd := end.AddDate(0, 0, -1)
		if inclusiveEnd.Before(start) {
			inclusiveEnd = start
		}
		periods = append(periods, core.VacationPeriod{
			Start:       start,
			End:         inclusiveEnd,
			Description: summary,
		})
	}
	return periods, nil
}
