package availability

import (
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// Conflicts lists what a candidate interval collides with.
type Conflicts struct {
	Appointments []model.Appointment
	TimeOffs     []model.TimeOff
}

func (c Conflicts) Any() bool {
	return len(c.Appointments) > 0 || len(c.TimeOffs) > 0
}

// occupied is the window an appointment blocks: the buffer only extends its end.
func occupied(a model.Appointment, bufferMinutes int) (time.Time, time.Time) {
	end := a.StartTime.Add(time.Duration(a.Duration+bufferMinutes) * time.Minute)
	return a.StartTime, end
}

// HasConflict reports whether [start, end) hits a non-cancelled appointment (extended by
// bufferMinutes after its end) or a time-off (no buffer).
func HasConflict(start, end time.Time, appointments []model.Appointment, timeOffs []model.TimeOff, bufferMinutes int) bool {
	for _, a := range appointments {
		if a.IsCancelled() {
			continue
		}
		aStart, aEnd := occupied(a, bufferMinutes)
		if IntervalsOverlap(start, end, aStart, aEnd) {
			return true
		}
	}
	for _, t := range timeOffs {
		if IntervalsOverlap(start, end, t.StartAt, t.EndAt) {
			return true
		}
	}
	return false
}

// FindConflicts is HasConflict without short-circuiting, for diagnostics.
func FindConflicts(start, end time.Time, appointments []model.Appointment, timeOffs []model.TimeOff, bufferMinutes int) Conflicts {
	var out Conflicts
	for _, a := range appointments {
		if a.IsCancelled() {
			continue
		}
		aStart, aEnd := occupied(a, bufferMinutes)
		if IntervalsOverlap(start, end, aStart, aEnd) {
			out.Appointments = append(out.Appointments, a)
		}
	}
	for _, t := range timeOffs {
		if IntervalsOverlap(start, end, t.StartAt, t.EndAt) {
			out.TimeOffs = append(out.TimeOffs, t)
		}
	}
	return out
}
