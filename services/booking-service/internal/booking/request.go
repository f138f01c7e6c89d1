package booking

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // timezone validation must not depend on the host zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// Request is the booking payload accepted by Book.
type Request struct {
	ServiceID                string         `json:"serviceId" validate:"required"`
	CustomerEmail            string         `json:"customerEmail" validate:"required,email"`
	CustomerName             string         `json:"customerName" validate:"required"`
	CustomerPhone            string         `json:"customerPhone" validate:"required"`
	CustomerAddress          string         `json:"customerAddress,omitempty"`
	CustomerNotes            string         `json:"customerNotes,omitempty"`
	Timezone                 string         `json:"timezone,omitempty" validate:"omitempty,timezone"`
	OrganizationID           string         `json:"organizationId" validate:"required"`
	StartTime                string         `json:"startTime" validate:"required,instant"`
	AssigneeID               string         `json:"assigneeId" validate:"required"`
	Title                    string         `json:"title,omitempty" validate:"max=200"`
	Description              string         `json:"description,omitempty" validate:"max=2000"`
	Fee                      *float64       `json:"fee,omitempty" validate:"omitempty,gte=0"`
	AdditionalCustomerFields map[string]any `json:"additionalCustomerFields,omitempty"`
}

func (r *Request) normalize() {
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.CustomerEmail = strings.TrimSpace(r.CustomerEmail)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.CustomerAddress = strings.TrimSpace(r.CustomerAddress)
	r.CustomerNotes = strings.TrimSpace(r.CustomerNotes)
	r.Timezone = strings.TrimSpace(r.Timezone)
	r.OrganizationID = strings.TrimSpace(r.OrganizationID)
	r.StartTime = strings.TrimSpace(r.StartTime)
	r.AssigneeID = strings.TrimSpace(r.AssigneeID)
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
}

// TimeslotQuery selects the open slots of one service on one UTC day. AssigneeID defaults to
// the service owner.
type TimeslotQuery struct {
	ServiceID      string `json:"serviceId" validate:"required"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	OrganizationID string `json:"organizationId" validate:"required"`
	AssigneeID     string `json:"assigneeId,omitempty"`
}

// ParseInstant accepts RFC 3339 with or without fractional seconds.
func ParseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("instant", func(fl validator.FieldLevel) bool {
		_, err := ParseInstant(fl.Field().String())
		return err == nil
	})
	return v
}

// checkStruct runs tag validation and converts failures into a *ValidationError keyed by JSON
// field name.
func checkStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Msg: err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "instant":
		return "must be an RFC 3339 timestamp"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "timezone":
		return "must be an IANA time zone"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// CalendarInput replaces the working hours of the calendar owned by (OwnerType, OwnerID),
// creating the calendar if the owner has none.
type CalendarInput struct {
	OwnerType    model.OwnerType                          `json:"ownerType" validate:"required,oneof=organization member"`
	OwnerID      string                                   `json:"ownerId" validate:"required"`
	WorkingHours map[model.DayOfWeek][]model.WorkingHours `json:"workingHours"`
	BufferTime   int                                      `json:"bufferTime" validate:"gte=0,lte=1440"`
}

type TimeOffInput struct {
	OwnerID string `json:"ownerId" validate:"required"`
	StartAt string `json:"startAt" validate:"required,instant"`
	EndAt   string `json:"endAt" validate:"required,instant"`
	Reason  string `json:"reason,omitempty" validate:"max=500"`
}

type OrganizationInput struct {
	ID             string                `json:"id,omitempty"`
	Name           string                `json:"name" validate:"required"`
	CustomerFields []model.CustomerField `json:"customerFields,omitempty"`
}

type ServiceInput struct {
	ID             string          `json:"id,omitempty"`
	OrganizationID string          `json:"organizationId" validate:"required"`
	OwnerType      model.OwnerType `json:"ownerType" validate:"required,oneof=organization member"`
	OwnerID        string          `json:"ownerId" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	Duration       int             `json:"duration" validate:"gt=0,lte=1440"`
	Price          float64         `json:"price" validate:"gte=0"`
}

type CancelRequest struct {
	OrganizationID string `json:"organizationId" validate:"required"`
	AppointmentID  string `json:"appointmentId" validate:"required"`
	Reason         string `json:"reason,omitempty" validate:"max=500"`
}

// ListQuery pages through an organization's appointments, newest first.
type ListQuery struct {
	OrganizationID string                  `json:"organizationId" validate:"required"`
	CalendarID     string                  `json:"calendarId,omitempty"`
	Status         model.AppointmentStatus `json:"status,omitempty" validate:"omitempty,oneof=pending completed cancelled"`
	Limit          int                     `json:"limit,omitempty" validate:"gte=0"`
	Offset         int                     `json:"offset,omitempty" validate:"gte=0"`
}
