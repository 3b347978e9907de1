package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionBookingCreate    = "BOOKING_CREATE"
	AuditActionBookingRecurring = "BOOKING_CREATE_RECURRING"
	AuditActionBookingUpdate    = "BOOKING_UPDATE"
	AuditActionBookingCancel    = "BOOKING_CANCEL"
	AuditActionBookingDelete    = "BOOKING_DELETE"
	AuditActionPackageCreate    = "PACKAGE_CREATE"
	AuditActionPackageCancel    = "PACKAGE_CANCEL"
)

// Audit resources.
const (
	AuditResourceBooking = "booking"
	AuditResourcePackage = "lesson_package"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
