package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/docstore"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"golang.org/x/sync/errgroup"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (e *Engine) timeslots(ctx context.Context, q TimeslotQuery) ([]model.Timeslot, error) {
	q.ServiceID = strings.TrimSpace(q.ServiceID)
	q.OrganizationID = strings.TrimSpace(q.OrganizationID)
	q.AssigneeID = strings.TrimSpace(q.AssigneeID)
	q.Date = strings.TrimSpace(q.Date)
	if err := checkStruct(e.validate, q); err != nil {
		return nil, err
	}
	date, err := availability.ParseDate(q.Date)
	if err != nil {
		return nil, validationf("date must be in YYYY-MM-DD format")
	}

	service, err := load(ctx, e.store.Services, "service", q.ServiceID)
	if err != nil {
		return nil, err
	}
	if service.OrganizationID != q.OrganizationID {
		return nil, &NotFoundError{Entity: "service", ID: q.ServiceID}
	}

	owner := q.AssigneeID
	if owner == "" {
		owner = service.OwnerID
	}
	cal, found, err := docstore.First(ctx, e.store.Calendars, docstore.Where("ownerId", docstore.OpEq, owner))
	if err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}
	if !found {
		return nil, &NotFoundError{Entity: "calendar", ID: owner}
	}

	var (
		appointments []model.Appointment
		timeOffs     []model.TimeOff
	)
	apptQuery, offQuery := busyQueries(cal, owner, date, date.Add(24*time.Hour))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		appointments, err = e.store.Appointments.GetAll(gctx, apptQuery)
		if err != nil {
			return fmt.Errorf("load appointments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		timeOffs, err = e.store.TimeOffs.GetAll(gctx, offQuery)
		if err != nil {
			return fmt.Errorf("load time-offs: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return availability.Generate(date, cal, service.Duration, appointments, timeOffs), nil
}

// Cancel marks an appointment cancelled. Cancelling twice returns the stored appointment
// unchanged.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (model.Appointment, error) {
	ctx, span := e.startSpan(ctx, "booking.Cancel")
	appt, err := e.cancel(ctx, req)
	endSpan(span, err)
	return appt, err
}

func (e *Engine) cancel(ctx context.Context, req CancelRequest) (model.Appointment, error) {
	req.OrganizationID = strings.TrimSpace(req.OrganizationID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := checkStruct(e.validate, req); err != nil {
		return model.Appointment{}, err
	}

	appt, err := load(ctx, e.store.Appointments, "appointment", req.AppointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.OrganizationID != req.OrganizationID {
		return model.Appointment{}, &NotFoundError{Entity: "appointment", ID: req.AppointmentID}
	}
	switch appt.Status {
	case model.StatusCancelled:
		return appt, nil
	case model.StatusCompleted:
		return model.Appointment{}, validationf("completed appointments cannot be cancelled")
	}

	cancelledAt := e.now().UTC()
	patch := map[string]any{
		"status":       model.StatusCancelled,
		"cancelledAt":  cancelledAt,
		"cancelReason": req.Reason,
	}
	if err := e.store.Appointments.Update(ctx, appt.ID, patch); err != nil {
		return model.Appointment{}, fmt.Errorf("cancel appointment: %w", err)
	}
	appt.Status = model.StatusCancelled
	appt.CancelledAt = &cancelledAt
	appt.CancelReason = req.Reason

	evt, err := outbox.NewEvent("appointment", appt.ID, outbox.EventAppointmentCancelled, map[string]any{
		"appointmentId":  appt.ID,
		"organizationId": appt.OrganizationID,
		"calendarId":     appt.CalendarID,
		"assigneeId":     appt.AssigneeID,
		"serviceId":      appt.ServiceID,
		"customerId":     appt.CustomerID,
		"startTime":      appt.StartTime.Format(time.RFC3339),
		"endTime":        appt.EndTime().Format(time.RFC3339),
		"cancelledAt":    cancelledAt.Format(time.RFC3339),
		"reason":         req.Reason,
	})
	if err != nil {
		e.logger.Error("build cancelled event failed", "appointment_id", appt.ID, "err", err)
	} else {
		e.emit(ctx, evt)
	}
	metrics.IncCancelled()
	e.logger.Info("appointment cancelled", "appointment_id", appt.ID, "organization_id", appt.OrganizationID)
	return appt, nil
}

// List returns an organization's appointments, newest first.
func (e *Engine) List(ctx context.Context, q ListQuery) ([]model.Appointment, error) {
	q.OrganizationID = strings.TrimSpace(q.OrganizationID)
	q.CalendarID = strings.TrimSpace(q.CalendarID)
	if err := checkStruct(e.validate, q); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	dq := docstore.Where("organizationId", docstore.OpEq, q.OrganizationID)
	if q.CalendarID != "" {
		dq = dq.Where("calendarId", docstore.OpEq, q.CalendarID)
	}
	if q.Status != "" {
		dq = dq.Where("status", docstore.OpEq, q.Status)
	}
	dq = dq.Order("createdAt", true).Page(limit, q.Offset)

	out, err := e.store.Appointments.GetAll(ctx, dq)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}
