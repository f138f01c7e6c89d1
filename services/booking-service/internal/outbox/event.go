package outbox

import (
	"encoding/json"
	"time"
)

const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
)

// Event is the domain event envelope stored in the outbox collection.
// The Kafka topic name equals EventType (one topic per event).
type Event struct {
	ID            string          `json:"id" bson:"_id,omitempty"`
	AggregateType string          `json:"aggregateType" bson:"aggregateType"`
	AggregateID   string          `json:"aggregateId" bson:"aggregateId"`
	EventType     string          `json:"eventType" bson:"eventType"`
	Payload       json.RawMessage `json:"payload" bson:"payload"`
	Traceparent   string          `json:"traceparent,omitempty" bson:"traceparent,omitempty"`
	Tracestate    string          `json:"tracestate,omitempty" bson:"tracestate,omitempty"`
	Published     bool            `json:"published" bson:"published"`
	PublishedAt   *time.Time      `json:"publishedAt,omitempty" bson:"publishedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt" bson:"createdAt"`
}

// NewEvent marshals payload into an unsaved Event.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
