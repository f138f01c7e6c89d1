package booking

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
	"github.com/stretchr/testify/require"
)

// 2026-03-01 is a Sunday; bookings in these tests target Monday 2026-03-02.
var (
	testNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	monday  = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

func mon(hh, mm int) time.Time {
	return monday.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
}

type fixture struct {
	store  *storage.Store
	engine *Engine
	events *outbox.Repository
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: storage.NewMemory(), now: testNow}
	f.events = outbox.NewRepository(f.store.Outbox)
	f.engine = NewEngine(f.store, runtime.Discard(),
		WithClock(func() time.Time { return f.now }),
		WithEvents(f.events),
	)

	_, err := f.store.Organizations.Create(ctx, model.Organization{ID: "org-1", Name: "Clinic"})
	require.NoError(t, err)
	_, err = f.store.Services.Create(ctx, model.Service{
		ID: "svc-1", OrganizationID: "org-1", OwnerType: model.OwnerMember, OwnerID: "member-1",
		Name: "Consultation", Duration: 30, Price: 50,
	})
	require.NoError(t, err)
	_, err = f.store.Calendars.Create(ctx, model.Calendar{
		ID: "cal-1", OwnerType: model.OwnerMember, OwnerID: "member-1", TimeZone: "UTC",
		WorkingHours: map[model.DayOfWeek][]model.WorkingHours{
			model.Monday: {{Start: "09:00", End: "12:00"}},
		},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) request(start time.Time) Request {
	return Request{
		ServiceID:      "svc-1",
		CustomerEmail:  "ada@example.com",
		CustomerName:   "Ada Lovelace",
		CustomerPhone:  "+15550100",
		OrganizationID: "org-1",
		StartTime:      start.Format(time.RFC3339),
		AssigneeID:     "member-1",
	}
}

func (f *fixture) addAppointment(t *testing.T, start time.Time, duration int, status model.AppointmentStatus) string {
	t.Helper()
	id, err := f.store.Appointments.Create(context.Background(), model.Appointment{
		OrganizationID: "org-1", CalendarID: "cal-1", AssigneeID: "member-1", AssigneeType: model.OwnerMember,
		ServiceID: "svc-1", StartTime: start, Duration: duration, Status: status, CreatedAt: testNow,
	})
	require.NoError(t, err)
	return id
}
