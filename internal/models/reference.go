package models

// ReferenceKind identifies an entity a booking points at by id.
type ReferenceKind string

const (
	ReferenceStudent ReferenceKind = "student"
	ReferenceTeacher ReferenceKind = "teacher"
	ReferenceCourse  ReferenceKind = "course"
	ReferenceRoom    ReferenceKind = "room"
)

// Table returns the backing table for the kind.
func (k ReferenceKind) Table() (string, bool) {
	switch k {
	case ReferenceStudent:
		return "students", true
	case ReferenceTeacher:
		return "teachers", true
	case ReferenceCourse:
		return "courses", true
	case ReferenceRoom:
		return "rooms", true
	}
	return "", false
}

// ReferenceCheck pairs a kind with the id to look up.
type ReferenceCheck struct {
	Kind ReferenceKind
	ID   string
}
