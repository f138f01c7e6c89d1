package model

import "time"

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Appointment.Duration is copied from the service at booking time so later service edits
// never move existing appointments.
type Appointment struct {
	ID             string            `json:"id" bson:"_id,omitempty"`
	OrganizationID string            `json:"organizationId" bson:"organizationId"`
	CalendarID     string            `json:"calendarId" bson:"calendarId"`
	AssigneeID     string            `json:"assigneeId" bson:"assigneeId"`
	AssigneeType   OwnerType         `json:"assigneeType" bson:"assigneeType"`
	CustomerID     string            `json:"customerId" bson:"customerId"`
	ServiceID      string            `json:"serviceId" bson:"serviceId"`
	Title          string            `json:"title" bson:"title"`
	Description    string            `json:"description" bson:"description"`
	StartTime      time.Time         `json:"startTime" bson:"startTime"`
	Duration       int               `json:"duration" bson:"duration"`
	Fee            float64           `json:"fee" bson:"fee"`
	Status         AppointmentStatus `json:"status" bson:"status"`
	CancelledAt    *time.Time        `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	CancelReason   string            `json:"cancelReason,omitempty" bson:"cancelReason,omitempty"`
	CreatedAt      time.Time         `json:"createdAt" bson:"createdAt"`
}

func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.Duration) * time.Minute)
}

func (a Appointment) IsCancelled() bool {
	return a.Status == StatusCancelled
}
