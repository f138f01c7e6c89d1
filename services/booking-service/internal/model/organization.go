package model

import "time"

type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldSelect  FieldType = "select"
)

// CustomerField is one organization-defined extra field collected on booking.
type CustomerField struct {
	Key      string    `json:"key" bson:"key"`
	Label    string    `json:"label" bson:"label"`
	Type     FieldType `json:"type" bson:"type"`
	Required bool      `json:"required" bson:"required"`
	Options  []string  `json:"options,omitempty" bson:"options,omitempty"`
}

type Organization struct {
	ID             string          `json:"id" bson:"_id,omitempty"`
	Name           string          `json:"name" bson:"name"`
	CustomerFields []CustomerField `json:"customerFields,omitempty" bson:"customerFields,omitempty"`
}

// Customer is unique per (OrganizationID, Email).
type Customer struct {
	ID             string         `json:"id" bson:"_id,omitempty"`
	OrganizationID string         `json:"organizationId" bson:"organizationId"`
	Email          string         `json:"email" bson:"email"`
	Name           string         `json:"name" bson:"name"`
	Phone          string         `json:"phone" bson:"phone"`
	Address        string         `json:"address,omitempty" bson:"address,omitempty"`
	Notes          string         `json:"notes,omitempty" bson:"notes,omitempty"`
	Timezone       string         `json:"timezone,omitempty" bson:"timezone,omitempty"`
	Fields         map[string]any `json:"fields,omitempty" bson:"fields,omitempty"`
	CreatedAt      time.Time      `json:"createdAt" bson:"createdAt"`
}
