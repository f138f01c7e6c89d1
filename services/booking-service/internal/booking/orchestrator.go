package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"go.opentelemetry.io/otel/attribute"
)

// SlotTolerance is how far a requested start may drift from a generated slot start and still
// match it at commit time.
const SlotTolerance = 60 * time.Second

type CustomerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type ConfirmationDetails struct {
	Service   model.Service   `json:"service"`
	Customer  CustomerSummary `json:"customer"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	Duration  int             `json:"duration"`
	Fee       float64         `json:"fee"`
}

type Confirmation struct {
	AppointmentID       string              `json:"appointmentId"`
	ConfirmationDetails ConfirmationDetails `json:"confirmationDetails"`
}

// Book validates req, re-checks the slot against freshly generated availability and stores
// a pending appointment.
func (e *Engine) Book(ctx context.Context, req Request) (Confirmation, error) {
	started := time.Now()
	ctx, span := e.startSpan(ctx, "booking.Book")
	conf, err := e.book(ctx, req)
	endSpan(span, err)

	outcome := Kind(err)
	if err == nil {
		outcome = "booked"
	}
	metrics.ObserveBooking(outcome, time.Since(started))
	return conf, err
}

func (e *Engine) book(ctx context.Context, req Request) (Confirmation, error) {
	v, err := e.Validate(ctx, req)
	if err != nil {
		return Confirmation{}, err
	}

	// Double check: regenerate the day's slots from current data. This narrows the race
	// window between validation and the write but does not close it.
	day := availability.StartOfDay(v.StartTime.UTC())
	appointments, timeOffs, err := e.loadBusy(ctx, v.Calendar, v.AssigneeID, day, day.Add(24*time.Hour))
	if err != nil {
		return Confirmation{}, err
	}
	slots := availability.Generate(day, v.Calendar, v.Service.Duration, appointments, timeOffs)
	if _, ok := availability.Match(slots, v.StartTime, SlotTolerance); !ok {
		return Confirmation{}, &SlotUnavailableError{StartTime: v.StartTime}
	}

	req.normalize()
	appt := newAppointment(v, req, e.now())
	id, err := e.store.Appointments.Create(ctx, appt)
	if err != nil {
		return Confirmation{}, fmt.Errorf("create appointment: %w", err)
	}
	appt.ID = id

	conf := Confirmation{
		AppointmentID: id,
		ConfirmationDetails: ConfirmationDetails{
			Service: v.Service,
			Customer: CustomerSummary{
				ID:    v.Customer.ID,
				Name:  v.Customer.Name,
				Email: v.Customer.Email,
				Phone: v.Customer.Phone,
			},
			StartTime: appt.StartTime,
			EndTime:   appt.EndTime(),
			Duration:  appt.Duration,
			Fee:       appt.Fee,
		},
	}

	if evt, err := outbox.NewEvent("appointment", id, outbox.EventAppointmentBooked, bookedPayload(appt, conf)); err != nil {
		e.logger.Error("build booked event failed", "appointment_id", id, "err", err)
	} else {
		e.emit(ctx, evt)
	}

	e.logger.Info("appointment booked",
		"appointment_id", id,
		"organization_id", appt.OrganizationID,
		"calendar_id", appt.CalendarID,
		"service_id", appt.ServiceID,
		"start_time", appt.StartTime.Format(time.RFC3339),
	)
	return conf, nil
}

func newAppointment(v Validation, req Request, now time.Time) model.Appointment {
	title := req.Title
	if title == "" {
		title = v.Service.Name
	}
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("%s with %s on %s", v.Service.Name, v.Customer.Name, v.StartTime.Format("Mon, 02 Jan 2006 15:04 MST"))
	}
	fee := v.Service.Price
	if req.Fee != nil {
		fee = *req.Fee
	}
	return model.Appointment{
		OrganizationID: v.Organization.ID,
		CalendarID:     v.Calendar.ID,
		AssigneeID:     v.AssigneeID,
		AssigneeType:   v.AssigneeType,
		CustomerID:     v.Customer.ID,
		ServiceID:      v.Service.ID,
		Title:          title,
		Description:    description,
		StartTime:      v.StartTime,
		Duration:       v.Service.Duration,
		Fee:            fee,
		Status:         model.StatusPending,
		CreatedAt:      now.UTC(),
	}
}

func bookedPayload(appt model.Appointment, conf Confirmation) map[string]any {
	return map[string]any{
		"appointmentId":  appt.ID,
		"organizationId": appt.OrganizationID,
		"calendarId":     appt.CalendarID,
		"assigneeId":     appt.AssigneeID,
		"assigneeType":   appt.AssigneeType,
		"serviceId":      appt.ServiceID,
		"customer":       conf.ConfirmationDetails.Customer,
		"title":          appt.Title,
		"startTime":      appt.StartTime.Format(time.RFC3339),
		"endTime":        appt.EndTime().Format(time.RFC3339),
		"duration":       appt.Duration,
		"fee":            appt.Fee,
	}
}

// Timeslots lists the open slots for a service on one UTC day.
func (e *Engine) Timeslots(ctx context.Context, q TimeslotQuery) ([]model.Timeslot, error) {
	ctx, span := e.startSpan(ctx, "booking.Timeslots")
	span.SetAttributes(attribute.String("service_id", q.ServiceID), attribute.String("date", q.Date))
	slots, err := e.timeslots(ctx, q)
	endSpan(span, err)
	metrics.ObserveSlotQuery(Kind(err), len(slots))
	return slots, err
}
