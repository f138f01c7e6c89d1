package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/docstore"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// Validation is everything Book needs once a request has passed every check.
type Validation struct {
	Organization model.Organization
	Service      model.Service
	Customer     model.Customer
	Calendar     model.Calendar
	StartTime    time.Time
	EndTime      time.Time
	AssigneeID   string
	AssigneeType model.OwnerType
}

func (v Validation) CustomerID() string { return v.Customer.ID }

// Validate runs the booking checks in order and stops at the first failure. The only write
// it performs is creating a first-time customer.
func (e *Engine) Validate(ctx context.Context, req Request) (Validation, error) {
	ctx, span := e.startSpan(ctx, "booking.Validate")
	res, err := e.validateRequest(ctx, req)
	endSpan(span, err)
	return res, err
}

func (e *Engine) validateRequest(ctx context.Context, req Request) (Validation, error) {
	req.normalize()
	if err := checkStruct(e.validate, req); err != nil {
		return Validation{}, err
	}
	startTime, err := ParseInstant(req.StartTime)
	if err != nil {
		return Validation{}, validationf("startTime must be an RFC 3339 timestamp")
	}

	org, err := load(ctx, e.store.Organizations, "organization", req.OrganizationID)
	if err != nil {
		return Validation{}, err
	}
	service, err := load(ctx, e.store.Services, "service", req.ServiceID)
	if err != nil {
		return Validation{}, err
	}
	if service.OrganizationID != org.ID {
		return Validation{}, &NotFoundError{Entity: "service", ID: req.ServiceID}
	}

	customer, err := e.resolveCustomer(ctx, org, req)
	if err != nil {
		return Validation{}, err
	}

	// Any calendar owned by the assignee is used, whatever its owner type.
	cal, found, err := docstore.First(ctx, e.store.Calendars, docstore.Where("ownerId", docstore.OpEq, req.AssigneeID))
	if err != nil {
		return Validation{}, fmt.Errorf("load calendar: %w", err)
	}
	if !found {
		return Validation{}, &NotFoundError{Entity: "calendar", ID: req.AssigneeID}
	}

	endTime := startTime.Add(time.Duration(service.Duration) * time.Minute)
	if !startTime.After(e.now()) {
		return Validation{}, &PastTimeError{StartTime: startTime}
	}

	day := availability.DayOfWeek(startTime)
	if len(cal.WorkingHours[day]) == 0 {
		return Validation{}, &OutsideBusinessHoursError{Day: day}
	}

	appointments, timeOffs, err := e.loadBusy(ctx, cal, req.AssigneeID, startTime, endTime)
	if err != nil {
		return Validation{}, err
	}
	if c := availability.FindConflicts(startTime, endTime, appointments, timeOffs, cal.BufferTime); c.Any() {
		return Validation{}, &ConflictError{Appointments: c.Appointments, TimeOffs: c.TimeOffs}
	}

	return Validation{
		Organization: org,
		Service:      service,
		Customer:     customer,
		Calendar:     cal,
		StartTime:    startTime,
		EndTime:      endTime,
		AssigneeID:   req.AssigneeID,
		AssigneeType: cal.OwnerType,
	}, nil
}

// resolveCustomer reuses the organization's customer with the same email or creates one.
func (e *Engine) resolveCustomer(ctx context.Context, org model.Organization, req Request) (model.Customer, error) {
	q := docstore.Where("organizationId", docstore.OpEq, org.ID).
		Where("email", docstore.OpEq, req.CustomerEmail)
	existing, found, err := docstore.First(ctx, e.store.Customers, q)
	if err != nil {
		return model.Customer{}, fmt.Errorf("load customer: %w", err)
	}
	if found {
		if req.Timezone != "" && req.Timezone != existing.Timezone {
			e.patchTimezone(ctx, existing.ID, req.Timezone)
			existing.Timezone = req.Timezone
		}
		return existing, nil
	}

	customer, err := BuildCustomer(org, req, e.now())
	if err != nil {
		return model.Customer{}, err
	}
	id, err := e.store.Customers.Create(ctx, customer)
	if err != nil {
		return model.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	customer.ID = id
	return customer, nil
}

// patchTimezone updates the stored timezone in the background. The booking never waits for
// it and a failure is only logged.
func (e *Engine) patchTimezone(ctx context.Context, customerID, tz string) {
	ctx = context.WithoutCancel(ctx)
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := e.store.Customers.Update(ctx, customerID, map[string]any{"timezone": tz}); err != nil {
			e.logger.Error("customer timezone update failed", "customer_id", customerID, "err", err)
		}
	}()
}

// maxAppointmentMinutes is the longest appointment a service may define.
const maxAppointmentMinutes = 1440

// busyQueries select what can block [from, to): non-cancelled appointments of the calendar
// whose buffered end may reach past from, and the owner's time-offs overlapping the window.
func busyQueries(cal model.Calendar, ownerID string, from, to time.Time) (appointments, timeOffs docstore.Query) {
	lookback := time.Duration(maxAppointmentMinutes+max(cal.BufferTime, 0)) * time.Minute
	appointments = docstore.Where("calendarId", docstore.OpEq, cal.ID).
		Where("status", docstore.OpNe, model.StatusCancelled).
		Where("startTime", docstore.OpGte, from.Add(-lookback)).
		Where("startTime", docstore.OpLt, to)
	timeOffs = docstore.Where("ownerId", docstore.OpEq, ownerID).
		Where("endAt", docstore.OpGt, from).
		Where("startAt", docstore.OpLt, to)
	return appointments, timeOffs
}

// loadBusy returns what can block [from, to) on cal for its owner.
func (e *Engine) loadBusy(ctx context.Context, cal model.Calendar, ownerID string, from, to time.Time) ([]model.Appointment, []model.TimeOff, error) {
	apptQuery, offQuery := busyQueries(cal, ownerID, from, to)
	appointments, err := e.store.Appointments.GetAll(ctx, apptQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("load appointments: %w", err)
	}
	timeOffs, err := e.store.TimeOffs.GetAll(ctx, offQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("load time-offs: %w", err)
	}
	return appointments, timeOffs, nil
}
