package availability

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

func TestTimeOfDayToMinutes(t *testing.T) {
	cases := map[string]int{"00:00": 0, "09:00": 540, "9:30": 570, "17:45": 1065, "24:00": 1440}
	for in, want := range cases {
		got, err := TimeOfDayToMinutes(in)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("%s: expected %d, got %d", in, want, got)
		}
	}
	for _, bad := range []string{"", "9", "09:7", "25:00", "12:60", "24:30", "ab:cd", "-1:00"} {
		if _, err := TimeOfDayToMinutes(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestDayOfWeek(t *testing.T) {
	if got := DayOfWeek(monday); got != model.Monday {
		t.Fatalf("expected monday, got %s", got)
	}
	if got := DayOfWeek(monday.AddDate(0, 0, -1)); got != model.Sunday {
		t.Fatalf("expected sunday, got %s", got)
	}
	// 23:30 UTC Monday is already Tuesday in UTC+2; the location the time carries decides.
	late := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	if got := DayOfWeek(late.In(time.FixedZone("UTC+2", 2*3600))); got != model.Tuesday {
		t.Fatalf("expected tuesday in UTC+2, got %s", got)
	}
}

func TestIntervalsOverlap(t *testing.T) {
	if IntervalsOverlap(at(9, 0), at(9, 30), at(9, 30), at(10, 0)) {
		t.Fatalf("touching intervals must not overlap")
	}
	if !IntervalsOverlap(at(9, 0), at(9, 31), at(9, 30), at(10, 0)) {
		t.Fatalf("expected overlap")
	}
	if !IntervalsOverlap(at(9, 0), at(11, 0), at(9, 30), at(10, 0)) {
		t.Fatalf("containment is overlap")
	}
}

func TestFindConflicts(t *testing.T) {
	appts := []model.Appointment{
		{ID: "a1", StartTime: at(9, 0), Duration: 30, Status: model.StatusPending},
		{ID: "a2", StartTime: at(9, 0), Duration: 30, Status: model.StatusCancelled},
		{ID: "a3", StartTime: at(11, 0), Duration: 30, Status: model.StatusCompleted},
	}
	offs := []model.TimeOff{{ID: "t1", StartAt: at(9, 15), EndAt: at(9, 20)}}

	got := FindConflicts(at(9, 0), at(9, 30), appts, offs, 0)
	if !got.Any() || len(got.Appointments) != 1 || got.Appointments[0].ID != "a1" || len(got.TimeOffs) != 1 {
		t.Fatalf("unexpected conflicts %+v", got)
	}
	if FindConflicts(at(12, 0), at(12, 30), appts, offs, 0).Any() {
		t.Fatalf("expected no conflicts at noon")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-02")
	if err != nil || !d.Equal(monday) || d.Location() != time.UTC {
		t.Fatalf("unexpected %v %v", d, err)
	}
	if _, err := ParseDate("03/02/2026"); err == nil {
		t.Fatalf("expected error")
	}
}
