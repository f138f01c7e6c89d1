package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// Sentinels for errors.Is. Every typed error below matches exactly one of them.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrPastTime             = errors.New("start time is in the past")
	ErrOutsideBusinessHours = errors.New("outside business hours")
	ErrConflict             = errors.New("time slot conflict")
	ErrSlotUnavailable      = errors.New("slot unavailable")
)

type ValidationError struct {
	// Fields maps a payload field to what is wrong with it.
	Fields map[string]string
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if len(e.Fields) == 0 {
		return "invalid request"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, k := range sortedKeys(e.Fields) {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type PastTimeError struct {
	StartTime time.Time
}

func (e *PastTimeError) Error() string {
	return "cannot book appointments in the past"
}

func (e *PastTimeError) Is(target error) bool { return target == ErrPastTime }

type OutsideBusinessHoursError struct {
	Day model.DayOfWeek
}

func (e *OutsideBusinessHoursError) Error() string {
	return fmt.Sprintf("no business hours on %s", e.Day)
}

func (e *OutsideBusinessHoursError) Is(target error) bool { return target == ErrOutsideBusinessHours }

// ConflictError lists what the requested interval collided with.
type ConflictError struct {
	Appointments []model.Appointment
	TimeOffs     []model.TimeOff
}

func (e *ConflictError) Error() string {
	switch {
	case len(e.Appointments) > 0 && len(e.TimeOffs) > 0:
		return fmt.Sprintf("time slot conflicts with %d appointment(s) and %d time-off period(s)", len(e.Appointments), len(e.TimeOffs))
	case len(e.TimeOffs) > 0:
		return "time slot conflicts with a time-off period"
	default:
		return "time slot conflicts with an existing appointment"
	}
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type SlotUnavailableError struct {
	StartTime time.Time
}

func (e *SlotUnavailableError) Error() string {
	return "requested time slot is no longer available"
}

func (e *SlotUnavailableError) Is(target error) bool { return target == ErrSlotUnavailable }

// Kind names the error category for logs and metrics labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPastTime):
		return "past_time"
	case errors.Is(err, ErrOutsideBusinessHours):
		return "outside_hours"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	default:
		return "internal"
	}
}
