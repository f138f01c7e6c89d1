package availability

import (
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// SlotStepMinutes is the fixed slot granularity.
const SlotStepMinutes = 15

type Interval struct {
	Start time.Time
	End   time.Time
}

// Blocks resolves the working-hours blocks for date's weekday into absolute intervals on
// date's calendar day, in the order the calendar lists them. Malformed blocks (unparseable
// or start >= end) are skipped.
func Blocks(date time.Time, cal model.Calendar) []Interval {
	hours := cal.WorkingHours[DayOfWeek(date)]
	if len(hours) == 0 {
		return nil
	}
	day := StartOfDay(date)
	out := make([]Interval, 0, len(hours))
	for _, wh := range hours {
		startMin, err := TimeOfDayToMinutes(wh.Start)
		if err != nil {
			continue
		}
		endMin, err := TimeOfDayToMinutes(wh.End)
		if err != nil || endMin <= startMin {
			continue
		}
		out = append(out, Interval{
			Start: day.Add(time.Duration(startMin) * time.Minute),
			End:   day.Add(time.Duration(endMin) * time.Minute),
		})
	}
	return out
}

// Generate enumerates every bookable slot of durationMinutes on date's calendar day.
//
// Each working-hours block is walked in SlotStepMinutes steps from its start up to and
// including the last start that still ends inside the block. Slots that conflict with an
// appointment (plus the calendar buffer) or a time-off are dropped. Output keeps block order,
// then chronological order within a block. A closed day yields an empty result.
//
// Generate is pure: no I/O and no dependence on the current time.
func Generate(date time.Time, cal model.Calendar, durationMinutes int, appointments []model.Appointment, timeOffs []model.TimeOff) []model.Timeslot {
	if durationMinutes <= 0 {
		return []model.Timeslot{}
	}
	duration := time.Duration(durationMinutes) * time.Minute
	step := time.Duration(SlotStepMinutes) * time.Minute

	slots := []model.Timeslot{}
	for _, block := range Blocks(date, cal) {
		for t := block.Start; !t.Add(duration).After(block.End); t = t.Add(step) {
			end := t.Add(duration)
			if HasConflict(t, end, appointments, timeOffs, cal.BufferTime) {
				continue
			}
			slots = append(slots, model.Timeslot{Start: t, End: end})
		}
	}
	return slots
}

// Match returns the slot whose start lies within tolerance of start.
func Match(slots []model.Timeslot, start time.Time, tolerance time.Duration) (model.Timeslot, bool) {
	for _, s := range slots {
		diff := s.Start.Sub(start)
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return s, true
		}
	}
	return model.Timeslot{}, false
}
