package models

import "time"

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusScheduled BookingStatus = "SCHEDULED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusNoShow    BookingStatus = "NO_SHOW"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusScheduled, BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

// Active reports whether a booking in status s occupies its time slot.
func (s BookingStatus) Active() bool {
	return s != BookingStatusCancelled
}

// RecurrencePattern is the cadence of a recurring booking.
type RecurrencePattern string

const (
	RecurrenceWeekly   RecurrencePattern = "WEEKLY"
	RecurrenceBiweekly RecurrencePattern = "BIWEEKLY"
)

// StepDays returns the distance between two occurrences.
func (p RecurrencePattern) StepDays() (int, bool) {
	switch p {
	case RecurrenceWeekly:
		return 7, true
	case RecurrenceBiweekly:
		return 14, true
	}
	return 0, false
}

// Booking is one scheduled lesson. Related records are referenced by id only.
type Booking struct {
	ID                 string             `db:"id" json:"id"`
	StudentID          string             `db:"student_id" json:"student_id"`
	TeacherID          string             `db:"teacher_id" json:"teacher_id"`
	CourseID           string             `db:"course_id" json:"course_id"`
	RoomID             *string            `db:"room_id" json:"room_id,omitempty"`
	PackageID          *string            `db:"package_id" json:"package_id,omitempty"`
	Date               Date               `db:"booking_date" json:"date"`
	StartTime          TimeOfDay          `db:"start_time" json:"start_time"`
	EndTime            TimeOfDay          `db:"end_time" json:"end_time"`
	Status             BookingStatus      `db:"status" json:"status"`
	IsRecurring        bool               `db:"is_recurring" json:"is_recurring"`
	RecurrencePattern  *RecurrencePattern `db:"recurrence_pattern" json:"recurrence_pattern,omitempty"`
	RecurrenceEndDate  *Date              `db:"recurrence_end_date" json:"recurrence_end_date,omitempty"`
	ParentBookingID    *string            `db:"parent_booking_id" json:"parent_booking_id,omitempty"`
	CancellationReason *string            `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	Notes              string             `db:"notes" json:"notes,omitempty"`
	CreatedBy          string             `db:"created_by" json:"created_by"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// Slot returns the resources and window the booking occupies.
func (b Booking) Slot() BookingSlot {
	return BookingSlot{
		TeacherID: b.TeacherID,
		RoomID:    b.RoomID,
		StudentID: b.StudentID,
		Date:      b.Date,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
	}
}

// BookingSlot is a resource triple plus a half-open [StartTime, EndTime) window on Date.
// A nil RoomID means no room is assigned.
type BookingSlot struct {
	TeacherID string    `json:"teacher_id"`
	RoomID    *string   `json:"room_id,omitempty"`
	StudentID string    `json:"student_id"`
	Date      Date      `json:"date"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

// Overlaps reports whether two windows share at least one minute. Touching windows do not overlap.
func (s BookingSlot) Overlaps(startTime, endTime TimeOfDay) bool {
	return s.StartTime < endTime && s.EndTime > startTime
}

// RecurrenceTemplate describes a series of bookings sharing resources and a daily window.
type RecurrenceTemplate struct {
	StudentID string
	TeacherID string
	CourseID  string
	RoomID    *string
	PackageID *string
	StartDate Date
	EndDate   Date
	StartTime TimeOfDay
	EndTime   TimeOfDay
	Pattern   RecurrencePattern
	Notes     string
}

// ConflictDimension names the shared resource that caused a conflict.
type ConflictDimension string

const (
	ConflictTeacher ConflictDimension = "TEACHER"
	ConflictRoom    ConflictDimension = "ROOM"
	ConflictStudent ConflictDimension = "STUDENT"
)

// BookingConflict describes an existing booking that collides with a requested slot.
type BookingConflict struct {
	BookingID string            `json:"booking_id"`
	Dimension ConflictDimension `json:"dimension"`
	Date      Date              `json:"date"`
	StartTime TimeOfDay         `json:"start_time"`
	EndTime   TimeOfDay         `json:"end_time"`
	TeacherID string            `json:"teacher_id"`
	StudentID string            `json:"student_id"`
	RoomID    *string           `json:"room_id,omitempty"`
}

// BookingConflictError is returned when a booking collides with an active one.
type BookingConflictError struct {
	Message  string          `json:"message"`
	Conflict BookingConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *BookingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// BookingFilter describes query params for listing bookings.
type BookingFilter struct {
	TeacherID       string
	StudentID       string
	RoomID          string
	CourseID        string
	PackageID       string
	ParentBookingID string
	Status          BookingStatus
	From            *Date
	To              *Date
	Page            int
	PageSize        int
	SortOrder       string
}

// DaySchedule lists the active bookings on a date.
type DaySchedule struct {
	Date     Date      `json:"date"`
	Bookings []Booking `json:"bookings"`
}

// Availability reports whether a slot is free.
type Availability struct {
	Available bool             `json:"available"`
	Conflict  *BookingConflict `json:"conflict,omitempty"`
}
