package models

import "time"

// EntityType names one of the registry collections.
type EntityType string

// Registry collections.
const (
	EntityStudent    EntityType = "student"
	EntityCourse     EntityType = "course"
	EntityEnrollment EntityType = "enrollment"
)

// ParseEntityType accepts singular or plural collection names.
func ParseEntityType(raw string) (EntityType, bool) {
	switch raw {
	case "student", "students":
		return EntityStudent, true
	case "course", "courses":
		return EntityCourse, true
	case "enrollment", "enrollments":
		return EntityEnrollment, true
	}
	return "", false
}

// ChangeAction describes what happened to a record.
type ChangeAction string

// Change actions published on the event stream.
const (
	ChangeCreated ChangeAction = "created"
	ChangeUpdated ChangeAction = "updated"
	ChangeDeleted ChangeAction = "deleted"
)

// ChangeEvent is pushed to subscribers after a committed mutation.
type ChangeEvent struct {
	Revision uint64       `json:"revision"`
	Entity   EntityType   `json:"entity"`
	Action   ChangeAction `json:"action"`
	Key      string       `json:"key"`
	At       time.Time    `json:"at"`
}
