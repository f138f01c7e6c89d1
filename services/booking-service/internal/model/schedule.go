package model

import "time"

// OwnerType discriminates who a Calendar or Service belongs to.
type OwnerType string

const (
	OwnerOrganization OwnerType = "organization"
	OwnerMember       OwnerType = "member"
)

func (t OwnerType) Valid() bool {
	return t == OwnerOrganization || t == OwnerMember
}

type Owner struct {
	Type OwnerType `json:"ownerType" bson:"ownerType"`
	ID   string    `json:"ownerId" bson:"ownerId"`
}

type DayOfWeek string

const (
	Sunday    DayOfWeek = "sunday"
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
)

// DaysOfWeek is indexed by time.Weekday.
var DaysOfWeek = [7]DayOfWeek{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

func (d DayOfWeek) Valid() bool {
	for _, v := range DaysOfWeek {
		if v == d {
			return true
		}
	}
	return false
}

// WorkingHours is a time-of-day interval in 24h "HH:MM" UTC.
type WorkingHours struct {
	Start string `json:"start" bson:"start"`
	End   string `json:"end" bson:"end"`
}

type Calendar struct {
	ID           string                       `json:"id" bson:"_id,omitempty"`
	OwnerType    OwnerType                    `json:"ownerType" bson:"ownerType"`
	OwnerID      string                       `json:"ownerId" bson:"ownerId"`
	WorkingHours map[DayOfWeek][]WorkingHours `json:"workingHours" bson:"workingHours"`
	BufferTime   int                          `json:"bufferTime" bson:"bufferTime"`
	TimeZone     string                       `json:"timeZone" bson:"timeZone"`
	UpdatedAt    time.Time                    `json:"updatedAt" bson:"updatedAt"`
}

func (c Calendar) Owner() Owner {
	return Owner{Type: c.OwnerType, ID: c.OwnerID}
}

type Service struct {
	ID             string    `json:"id" bson:"_id,omitempty"`
	OrganizationID string    `json:"organizationId" bson:"organizationId"`
	OwnerType      OwnerType `json:"ownerType" bson:"ownerType"`
	OwnerID        string    `json:"ownerId" bson:"ownerId"`
	Name           string    `json:"name" bson:"name"`
	Duration       int       `json:"duration" bson:"duration"`
	Price          float64   `json:"price" bson:"price"`
}

// TimeOff blocks [StartAt, EndAt) for its owner. No buffer applies to it.
type TimeOff struct {
	ID      string    `json:"id" bson:"_id,omitempty"`
	OwnerID string    `json:"ownerId" bson:"ownerId"`
	StartAt time.Time `json:"startAt" bson:"startAt"`
	EndAt   time.Time `json:"endAt" bson:"endAt"`
	Reason  string    `json:"reason,omitempty" bson:"reason,omitempty"`
}

// Timeslot is a candidate or confirmed bookable window. It is never persisted.
type Timeslot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
