package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	appErrors "github.com/noah-isme/sma-lesson-api/pkg/errors"
)

// DefaultMaxOccurrences caps the number of candidate dates a template may produce.
const DefaultMaxOccurrences = 104

type conflictFinder interface {
	FindConflict(ctx context.Context, exec sqlx.ExtContext, slot models.BookingSlot, excludeID string) (*models.BookingConflict, error)
}

type bookingCreator interface {
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
}

// Expansion is the outcome of one template expansion.
type Expansion struct {
	Bookings []models.Booking
	Skipped  []models.BookingConflict
}

// RecurrenceExpander turns a recurrence template into an anchor booking plus its occurrences.
type RecurrenceExpander struct {
	conflicts      conflictFinder
	bookings       bookingCreator
	maxOccurrences int
	metrics        *MetricsService
	logger         *zap.Logger
}

// NewRecurrenceExpander constructs an expander.
func NewRecurrenceExpander(conflicts conflictFinder, bookings bookingCreator, maxOccurrences int, metrics *MetricsService, logger *zap.Logger) *RecurrenceExpander {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecurrenceExpander{
		conflicts:      conflicts,
		bookings:       bookings,
		maxOccurrences: maxOccurrences,
		metrics:        metrics,
		logger:         logger,
	}
}

// OccurrenceDates lists start, start+step, ... up to and including end.
func OccurrenceDates(start, end models.Date, pattern models.RecurrencePattern) []models.Date {
	step, ok := pattern.StepDays()
	if !ok || end.Before(start) {
		return nil
	}
	var dates []models.Date
	for current := start; !current.After(end); current = current.AddDays(step) {
		dates = append(dates, current)
	}
	return dates
}

// Validate checks the template shape and the occurrence cap.
func (e *RecurrenceExpander) Validate(template models.RecurrenceTemplate) error {
	if _, ok := template.Pattern.StepDays(); !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported recurrence pattern %q", template.Pattern))
	}
	if template.EndDate.Before(template.StartDate) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	if !template.StartTime.Valid() || !template.EndTime.Valid() || template.StartTime >= template.EndTime {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	if n := len(OccurrenceDates(template.StartDate, template.EndDate, template.Pattern)); n > e.maxOccurrences {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("recurrence produces %d dates, limit is %d", n, e.maxOccurrences))
	}
	return nil
}

// Expand persists the anchor unconditionally, then one occurrence per later date
// that does not collide with an active booking. Bookings holds the anchor followed
// by accepted occurrences in date order; Skipped holds the collision per skipped date.
// Expand writes only through exec.
func (e *RecurrenceExpander) Expand(ctx context.Context, exec sqlx.ExtContext, template models.RecurrenceTemplate, actorID string) (*Expansion, error) {
	if err := e.Validate(template); err != nil {
		return nil, err
	}
	dates := OccurrenceDates(template.StartDate, template.EndDate, template.Pattern)

	pattern := template.Pattern
	endDate := template.EndDate
	anchor := templateBooking(template, dates[0], actorID)
	anchor.RecurrencePattern = &pattern
	anchor.RecurrenceEndDate = &endDate
	if err := e.bookings.Create(ctx, exec, &anchor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to create anchor booking")
	}

	result := &Expansion{Bookings: []models.Booking{anchor}}
	for _, date := range dates[1:] {
		occurrence := templateBooking(template, date, actorID)
		occurrence.RecurrencePattern = &pattern
		parentID := anchor.ID
		occurrence.ParentBookingID = &parentID

		conflict, err := e.conflicts.FindConflict(ctx, exec, occurrence.Slot(), "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to check occurrence availability")
		}
		if conflict != nil {
			result.Skipped = append(result.Skipped, *conflict)
			continue
		}

		if err := e.bookings.Create(ctx, exec, &occurrence); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to create booking occurrence")
		}
		result.Bookings = append(result.Bookings, occurrence)
	}
	return result, nil
}

// ReportSkipped logs and counts the dates an expansion skipped. Call it once the
// transaction that produced the expansion has committed.
func (e *RecurrenceExpander) ReportSkipped(expansion *Expansion) {
	if expansion == nil || len(expansion.Bookings) == 0 {
		return
	}
	parentID := expansion.Bookings[0].ID
	for _, skipped := range expansion.Skipped {
		e.logger.Info("recurring occurrence skipped",
			zap.String("parent_booking_id", parentID),
			zap.String("date", skipped.Date.String()),
			zap.String("dimension", string(skipped.Dimension)),
			zap.String("conflicting_booking_id", skipped.BookingID),
		)
		e.metrics.RecordBookingConflict(skipped.Dimension)
		e.metrics.RecordOccurrenceSkipped()
	}
}

func templateBooking(template models.RecurrenceTemplate, date models.Date, actorID string) models.Booking {
	return models.Booking{
		StudentID:   template.StudentID,
		TeacherID:   template.TeacherID,
		CourseID:    template.CourseID,
		RoomID:      template.RoomID,
		PackageID:   template.PackageID,
		Date:        date,
		StartTime:   template.StartTime,
		EndTime:     template.EndTime,
		Status:      models.BookingStatusScheduled,
		IsRecurring: true,
		Notes:       template.Notes,
		CreatedBy:   actorID,
	}
}
