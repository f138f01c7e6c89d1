package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/apptbook/libs/docstore"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// UpsertCalendar replaces the working hours and buffer of the owner's calendar, creating it
// when the owner has none. Calendars are always stored in UTC.
func (e *Engine) UpsertCalendar(ctx context.Context, in CalendarInput) (model.Calendar, error) {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	if err := checkStruct(e.validate, in); err != nil {
		return model.Calendar{}, err
	}
	hours, err := checkWorkingHours(in.WorkingHours)
	if err != nil {
		return model.Calendar{}, err
	}

	now := e.now().UTC()
	q := docstore.Where("ownerId", docstore.OpEq, in.OwnerID).
		Where("ownerType", docstore.OpEq, in.OwnerType)
	existing, found, err := docstore.First(ctx, e.store.Calendars, q)
	if err != nil {
		return model.Calendar{}, fmt.Errorf("load calendar: %w", err)
	}
	if found {
		patch := map[string]any{
			"workingHours": hours,
			"bufferTime":   in.BufferTime,
			"timeZone":     "UTC",
			"updatedAt":    now,
		}
		if err := e.store.Calendars.Update(ctx, existing.ID, patch); err != nil {
			return model.Calendar{}, fmt.Errorf("update calendar: %w", err)
		}
		existing.WorkingHours = hours
		existing.BufferTime = in.BufferTime
		existing.TimeZone = "UTC"
		existing.UpdatedAt = now
		return existing, nil
	}

	cal := model.Calendar{
		OwnerType:    in.OwnerType,
		OwnerID:      in.OwnerID,
		WorkingHours: hours,
		BufferTime:   in.BufferTime,
		TimeZone:     "UTC",
		UpdatedAt:    now,
	}
	id, err := e.store.Calendars.Create(ctx, cal)
	if err != nil {
		return model.Calendar{}, fmt.Errorf("create calendar: %w", err)
	}
	cal.ID = id
	return cal, nil
}

// checkWorkingHours rejects unknown days and blocks that do not satisfy start < end.
func checkWorkingHours(in map[model.DayOfWeek][]model.WorkingHours) (map[model.DayOfWeek][]model.WorkingHours, error) {
	out := make(map[model.DayOfWeek][]model.WorkingHours, len(in))
	problems := map[string]string{}
	for day, blocks := range in {
		day = model.DayOfWeek(strings.ToLower(string(day)))
		if !day.Valid() {
			problems["workingHours."+string(day)] = "unknown day of week"
			continue
		}
		cleaned := make([]model.WorkingHours, 0, len(blocks))
		for i, b := range blocks {
			key := fmt.Sprintf("workingHours.%s[%d]", day, i)
			start, err := availability.TimeOfDayToMinutes(b.Start)
			if err != nil {
				problems[key] = "start must be HH:MM"
				continue
			}
			end, err := availability.TimeOfDayToMinutes(b.End)
			if err != nil {
				problems[key] = "end must be HH:MM"
				continue
			}
			if start >= end {
				problems[key] = "start must be before end"
				continue
			}
			cleaned = append(cleaned, model.WorkingHours{Start: strings.TrimSpace(b.Start), End: strings.TrimSpace(b.End)})
		}
		out[day] = cleaned
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Fields: problems}
	}
	return out, nil
}

func (e *Engine) CreateTimeOff(ctx context.Context, in TimeOffInput) (model.TimeOff, error) {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Reason = strings.TrimSpace(in.Reason)
	if err := checkStruct(e.validate, in); err != nil {
		return model.TimeOff{}, err
	}
	start, _ := ParseInstant(in.StartAt)
	end, _ := ParseInstant(in.EndAt)
	if !start.Before(end) {
		return model.TimeOff{}, validationf("startAt must be before endAt")
	}

	off := model.TimeOff{OwnerID: in.OwnerID, StartAt: start, EndAt: end, Reason: in.Reason}
	id, err := e.store.TimeOffs.Create(ctx, off)
	if err != nil {
		return model.TimeOff{}, fmt.Errorf("create time-off: %w", err)
	}
	off.ID = id
	return off, nil
}

func (e *Engine) CreateOrganization(ctx context.Context, in OrganizationInput) (model.Organization, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	if err := checkStruct(e.validate, in); err != nil {
		return model.Organization{}, err
	}
	seen := map[string]bool{}
	for i, f := range in.CustomerFields {
		key := fmt.Sprintf("customerFields[%d]", i)
		switch {
		case f.Key == "":
			return model.Organization{}, &ValidationError{Fields: map[string]string{key: "key is required"}}
		case seen[f.Key]:
			return model.Organization{}, &ValidationError{Fields: map[string]string{key: "duplicate key " + f.Key}}
		case f.Type == model.FieldSelect && len(f.Options) == 0:
			return model.Organization{}, &ValidationError{Fields: map[string]string{key: "select fields need options"}}
		}
		seen[f.Key] = true
	}

	org := model.Organization{ID: in.ID, Name: in.Name, CustomerFields: in.CustomerFields}
	id, err := e.store.Organizations.Create(ctx, org)
	if err != nil {
		return model.Organization{}, createError("organization", err)
	}
	org.ID = id
	return org, nil
}

func (e *Engine) CreateService(ctx context.Context, in ServiceInput) (model.Service, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.OrganizationID = strings.TrimSpace(in.OrganizationID)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Name = strings.TrimSpace(in.Name)
	if err := checkStruct(e.validate, in); err != nil {
		return model.Service{}, err
	}
	if _, err := load(ctx, e.store.Organizations, "organization", in.OrganizationID); err != nil {
		return model.Service{}, err
	}

	svc := model.Service{
		ID:             in.ID,
		OrganizationID: in.OrganizationID,
		OwnerType:      in.OwnerType,
		OwnerID:        in.OwnerID,
		Name:           in.Name,
		Duration:       in.Duration,
		Price:          in.Price,
	}
	id, err := e.store.Services.Create(ctx, svc)
	if err != nil {
		return model.Service{}, createError("service", err)
	}
	svc.ID = id
	return svc, nil
}

// createError reports a taken client-supplied id as a validation failure on "id".
func createError(entity string, err error) error {
	if errors.Is(err, docstore.ErrDuplicate) {
		return &ValidationError{Fields: map[string]string{"id": entity + " id already exists"}}
	}
	return fmt.Errorf("create %s: %w", entity, err)
}
