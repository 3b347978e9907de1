package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-lesson-api/internal/models"
)

type bookingDayReader interface {
	ListActiveByDate(ctx context.Context, exec sqlx.ExtContext, date models.Date) ([]models.Booking, error)
}

// ConflictDetector decides whether a slot collides with an active booking on the same date.
type ConflictDetector struct {
	bookings bookingDayReader
}

// NewConflictDetector constructs a detector reading candidates from the booking store.
func NewConflictDetector(bookings bookingDayReader) *ConflictDetector {
	return &ConflictDetector{bookings: bookings}
}

// HasConflict reports whether slot is taken. excludeID skips the booking being edited.
func (d *ConflictDetector) HasConflict(ctx context.Context, exec sqlx.ExtContext, slot models.BookingSlot, excludeID string) (bool, error) {
	conflict, err := d.FindConflict(ctx, exec, slot, excludeID)
	if err != nil {
		return false, err
	}
	return conflict != nil, nil
}

// FindConflict returns the first active booking colliding with slot, or nil.
func (d *ConflictDetector) FindConflict(ctx context.Context, exec sqlx.ExtContext, slot models.BookingSlot, excludeID string) (*models.BookingConflict, error) {
	candidates, err := d.bookings.ListActiveByDate(ctx, exec, slot.Date)
	if err != nil {
		return nil, fmt.Errorf("load bookings for %s: %w", slot.Date, err)
	}
	return detectConflict(slot, candidates, excludeID), nil
}

// detectConflict checks teacher, room and student independently against the candidates.
func detectConflict(slot models.BookingSlot, candidates []models.Booking, excludeID string) *models.BookingConflict {
	for _, existing := range candidates {
		if excludeID != "" && existing.ID == excludeID {
			continue
		}
		if !existing.Status.Active() || !existing.Date.Equal(slot.Date) {
			continue
		}
		if !slot.Overlaps(existing.StartTime, existing.EndTime) {
			continue
		}
		if dimension, ok := sharedResource(slot, existing); ok {
			return &models.BookingConflict{
				BookingID: existing.ID,
				Dimension: dimension,
				Date:      existing.Date,
				StartTime: existing.StartTime,
				EndTime:   existing.EndTime,
				TeacherID: existing.TeacherID,
				StudentID: existing.StudentID,
				RoomID:    existing.RoomID,
			}
		}
	}
	return nil
}

func sharedResource(slot models.BookingSlot, existing models.Booking) (models.ConflictDimension, bool) {
	if existing.TeacherID == slot.TeacherID {
		return models.ConflictTeacher, true
	}
	// no room on either side never matches
	if slot.RoomID != nil && existing.RoomID != nil && *slot.RoomID == *existing.RoomID {
		return models.ConflictRoom, true
	}
	if existing.StudentID == slot.StudentID {
		return models.ConflictStudent, true
	}
	return "", false
}
