package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	"github.com/noah-isme/sma-lesson-api/pkg/database"
	appErrors "github.com/noah-isme/sma-lesson-api/pkg/errors"
)

const (
	dayScheduleCachePrefix = "bookings:day:"
	originSingle           = "single"
	originRecurring        = "recurring"
)

type bookingRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error)
	ListActiveByDate(ctx context.Context, exec sqlx.ExtContext, date models.Date) ([]models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	ListByParent(ctx context.Context, parentID string) ([]models.Booking, error)
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	Update(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
}

type packageBalanceStore interface {
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.LessonPackage, error)
	SaveBalance(ctx context.Context, exec sqlx.ExtContext, pkg *models.LessonPackage) error
}

type referenceChecker interface {
	Exists(ctx context.Context, kind models.ReferenceKind, id string) (bool, error)
}

type unitOfWork interface {
	Run(ctx context.Context, fn database.TxFunc) error
}

type dayScheduleCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type auditRecorder interface {
	Record(ctx context.Context, actorID, action, resource, resourceID string, payload interface{})
}

// CreateBookingRequest describes payload for creating a single booking.
type CreateBookingRequest struct {
	StudentID string           `json:"student_id" validate:"required"`
	TeacherID string           `json:"teacher_id" validate:"required"`
	CourseID  string           `json:"course_id" validate:"required"`
	RoomID    *string          `json:"room_id" validate:"omitempty,min=1"`
	PackageID *string          `json:"package_id" validate:"omitempty,min=1"`
	Date      models.Date      `json:"date"`
	StartTime models.TimeOfDay `json:"start_time"`
	EndTime   models.TimeOfDay `json:"end_time"`
	Notes     string           `json:"notes" validate:"max=1000"`
}

// CreateRecurringBookingsRequest describes a weekly or biweekly series.
type CreateRecurringBookingsRequest struct {
	StudentID string           `json:"student_id" validate:"required"`
	TeacherID string           `json:"teacher_id" validate:"required"`
	CourseID  string           `json:"course_id" validate:"required"`
	RoomID    *string          `json:"room_id" validate:"omitempty,min=1"`
	PackageID *string          `json:"package_id" validate:"omitempty,min=1"`
	StartDate models.Date      `json:"start_date"`
	EndDate   models.Date      `json:"end_date"`
	StartTime models.TimeOfDay `json:"start_time"`
	EndTime   models.TimeOfDay `json:"end_time"`
	Pattern   string           `json:"pattern" validate:"required,oneof=WEEKLY BIWEEKLY weekly biweekly"`
	Notes     string           `json:"notes" validate:"max=1000"`
}

// UpdateBookingRequest carries optional changes. An empty RoomID removes the room.
type UpdateBookingRequest struct {
	CourseID  *string           `json:"course_id" validate:"omitempty,min=1"`
	RoomID    *string           `json:"room_id"`
	Date      *models.Date      `json:"date"`
	StartTime *models.TimeOfDay `json:"start_time"`
	EndTime   *models.TimeOfDay `json:"end_time"`
	Status    *string           `json:"status" validate:"omitempty,oneof=SCHEDULED COMPLETED CANCELLED NO_SHOW"`
	Notes     *string           `json:"notes" validate:"omitempty,max=1000"`
}

// AvailabilityRequest checks a slot without writing anything.
type AvailabilityRequest struct {
	StudentID        string           `json:"student_id" validate:"required"`
	TeacherID        string           `json:"teacher_id" validate:"required"`
	RoomID           *string          `json:"room_id" validate:"omitempty,min=1"`
	Date             models.Date      `json:"date"`
	StartTime        models.TimeOfDay `json:"start_time"`
	EndTime          models.TimeOfDay `json:"end_time"`
	ExcludeBookingID string           `json:"exclude_booking_id"`
}

// BookingServiceConfig tunes booking behaviour.
type BookingServiceConfig struct {
	MaxOccurrences int
	CacheTTL       time.Duration
}

// BookingService coordinates conflict detection, recurrence expansion and the lesson ledger.
type BookingService struct {
	bookings   bookingRepository
	packages   packageBalanceStore
	references referenceChecker
	tx         unitOfWork
	detector   *ConflictDetector
	expander   *RecurrenceExpander
	cache      dayScheduleCache
	audit      auditRecorder
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        BookingServiceConfig
}

// NewBookingService instantiates BookingService. cache, audit and metrics may be nil.
func NewBookingService(
	bookings bookingRepository,
	packages packageBalanceStore,
	references referenceChecker,
	tx unitOfWork,
	cache dayScheduleCache,
	audit auditRecorder,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg BookingServiceConfig,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	detector := NewConflictDetector(bookings)
	return &BookingService{
		bookings:   bookings,
		packages:   packages,
		references: references,
		tx:         tx,
		detector:   detector,
		expander:   NewRecurrenceExpander(detector, bookings, cfg.MaxOccurrences, metrics, logger),
		cache:      cache,
		audit:      audit,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// Create books a single lesson. A conflict in any resource rejects the booking.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest, actorID string) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if err := validateWindow(req.Date, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, req.StudentID, req.TeacherID, req.CourseID, req.RoomID); err != nil {
		return nil, err
	}

	var booking models.Booking
	consumed := 0
	start := time.Now()
	err := s.tx.Run(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		booking = models.Booking{
			StudentID: req.StudentID,
			TeacherID: req.TeacherID,
			CourseID:  req.CourseID,
			RoomID:    normalizeOptional(req.RoomID),
			PackageID: normalizeOptional(req.PackageID),
			Date:      req.Date,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Status:    models.BookingStatusScheduled,
			Notes:     strings.TrimSpace(req.Notes),
			CreatedBy: actorID,
		}
		consumed = 0

		conflict, err := s.detector.FindConflict(ctx, exec, booking.Slot(), "")
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check booking conflicts")
		}
		if conflict != nil {
			return s.wrapConflict(*conflict)
		}

		pkg, err := s.lockPackage(ctx, exec, booking.PackageID, booking.StudentID)
		if err != nil {
			return err
		}

		if err := s.bookings.Create(ctx, exec, &booking); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
		}

		if pkg != nil {
			if err := s.consume(ctx, exec, *pkg, 1); err != nil {
				return err
			}
			consumed = 1
		}
		return nil
	})
	s.metrics.ObserveTransaction("booking_create", time.Since(start))
	if err != nil {
		s.recordConflict(err)
		return nil, err
	}

	s.metrics.RecordBookingsCreated(originSingle, 1)
	s.metrics.RecordLedger("consume", consumed)
	s.invalidateDay(ctx, booking.Date)
	s.recordAudit(ctx, actorID, models.AuditActionBookingCreate, models.AuditResourceBooking, booking.ID, booking)
	return &booking, nil
}

// CreateRecurring expands a template into bookings. Conflicting dates after the
// anchor are skipped, and the linked package is charged once per booking produced.
func (s *BookingService) CreateRecurring(ctx context.Context, req CreateRecurringBookingsRequest, actorID string) ([]models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recurring booking payload")
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date and end_date are required")
	}

	template := models.RecurrenceTemplate{
		StudentID: req.StudentID,
		TeacherID: req.TeacherID,
		CourseID:  req.CourseID,
		RoomID:    normalizeOptional(req.RoomID),
		PackageID: normalizeOptional(req.PackageID),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Pattern:   models.RecurrencePattern(strings.ToUpper(req.Pattern)),
		Notes:     strings.TrimSpace(req.Notes),
	}
	if err := s.expander.Validate(template); err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, template.StudentID, template.TeacherID, template.CourseID, template.RoomID); err != nil {
		return nil, err
	}

	var expansion *Expansion
	consumed := 0
	start := time.Now()
	err := s.tx.Run(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		expansion, consumed = nil, 0
		pkg, err := s.lockPackage(ctx, exec, template.PackageID, template.StudentID)
		if err != nil {
			return err
		}

		expansion, err = s.expander.Expand(ctx, exec, template, actorID)
		if err != nil {
			return err
		}

		if pkg != nil {
			if err := s.consume(ctx, exec, *pkg, len(expansion.Bookings)); err != nil {
				return err
			}
			consumed = len(expansion.Bookings)
		}
		return nil
	})
	s.metrics.ObserveTransaction("booking_create_recurring", time.Since(start))
	if err != nil {
		return nil, err
	}

	s.expander.ReportSkipped(expansion)
	created := expansion.Bookings
	s.metrics.RecordBookingsCreated(originRecurring, len(created))
	s.metrics.RecordLedger("consume", consumed)
	for _, booking := range created {
		s.invalidateDay(ctx, booking.Date)
	}
	s.recordAudit(ctx, actorID, models.AuditActionBookingRecurring, models.AuditResourceBooking, created[0].ID, map[string]interface{}{
		"pattern":     template.Pattern,
		"start_date":  template.StartDate,
		"end_date":    template.EndDate,
		"occurrences": len(created),
	})
	return created, nil
}

// Update applies changes after re-checking the resulting slot against other bookings.
// It returns a nil booking when id is unknown. Status changes are not restricted and
// have no effect on the lesson ledger.
func (s *BookingService) Update(ctx context.Context, id string, req UpdateBookingRequest, actorID string) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if req.CourseID != nil {
		if err := s.ensureExists(ctx, models.ReferenceCourse, *req.CourseID); err != nil {
			return nil, err
		}
	}
	if room := normalizeOptional(req.RoomID); room != nil {
		if err := s.ensureExists(ctx, models.ReferenceRoom, *room); err != nil {
			return nil, err
		}
	}

	var (
		result       *models.Booking
		previousDate models.Date
	)
	err := s.tx.Run(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		result = nil
		booking, err := s.bookings.FindByID(ctx, exec, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
		}
		previousDate = booking.Date

		applyBookingChanges(booking, req)
		if err := validateWindow(booking.Date, booking.StartTime, booking.EndTime); err != nil {
			return err
		}

		if booking.Status.Active() {
			conflict, err := s.detector.FindConflict(ctx, exec, booking.Slot(), booking.ID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check booking conflicts")
			}
			if conflict != nil {
				return s.wrapConflict(*conflict)
			}
		}

		if err := s.bookings.Update(ctx, exec, booking); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking")
		}
		result = booking
		return nil
	})
	if err != nil {
		s.recordConflict(err)
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	s.invalidateDay(ctx, previousDate)
	if !previousDate.Equal(result.Date) {
		s.invalidateDay(ctx, result.Date)
	}
	s.recordAudit(ctx, actorID, models.AuditActionBookingUpdate, models.AuditResourceBooking, result.ID, result)
	return result, nil
}

// Cancel marks a scheduled booking as cancelled and gives its lesson back to the
// linked package. It returns false when id is unknown. A booking that is no longer
// scheduled is left untouched.
func (s *BookingService) Cancel(ctx context.Context, id, reason, actorID string) (bool, error) {
	var (
		found     bool
		changed   bool
		released  int
		cancelled models.Booking
	)
	err := s.tx.Run(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		found, changed, released = false, false, 0
		booking, err := s.bookings.FindByID(ctx, exec, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
		}
		found = true

		if booking.Status != models.BookingStatusScheduled {
			return nil
		}

		trimmed := strings.TrimSpace(reason)
		booking.Status = models.BookingStatusCancelled
		booking.CancellationReason = &trimmed
		if err := s.bookings.Update(ctx, exec, booking); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
		}
		changed = true
		cancelled = *booking

		if booking.PackageID == nil {
			return nil
		}
		released, err = s.release(ctx, exec, *booking.PackageID, 1)
		return err
	})
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if changed {
		s.metrics.RecordLedger("release", released)
		s.invalidateDay(ctx, cancelled.Date)
		s.recordAudit(ctx, actorID, models.AuditActionBookingCancel, models.AuditResourceBooking, cancelled.ID, map[string]interface{}{
			"reason":           cancelled.CancellationReason,
			"lessons_released": released,
		})
	}
	return true, nil
}

// Delete removes a booking regardless of status. The lesson ledger is not touched.
func (s *BookingService) Delete(ctx context.Context, id, actorID string) (bool, error) {
	var removed *models.Booking
	err := s.tx.Run(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		removed = nil
		booking, err := s.bookings.FindByID(ctx, exec, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
		}
		deleted, err := s.bookings.Delete(ctx, exec, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete booking")
		}
		if deleted {
			removed = booking
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed == nil {
		return false, nil
	}
	s.invalidateDay(ctx, removed.Date)
	s.recordAudit(ctx, actorID, models.AuditActionBookingDelete, models.AuditResourceBooking, removed.ID, removed)
	return true, nil
}

// Get returns a booking or nil when absent.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// List returns bookings matching the filter.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	return bookings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListOccurrences returns the bookings generated from an anchor booking.
func (s *BookingService) ListOccurrences(ctx context.Context, parentID string) ([]models.Booking, error) {
	parent, err := s.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}
	occurrences, err := s.bookings.ListByParent(ctx, parentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list occurrences")
	}
	return occurrences, nil
}

// DaySchedule returns the active bookings on date. The flag reports a cache hit.
func (s *BookingService) DaySchedule(ctx context.Context, date models.Date) (*models.DaySchedule, bool, error) {
	if date.IsZero() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	key := dayScheduleCachePrefix + date.String()
	if s.cache != nil {
		var cached models.DaySchedule
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	bookings, err := s.bookings.ListActiveByDate(ctx, nil, date)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load day schedule")
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	schedule := &models.DaySchedule{Date: date, Bookings: bookings}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, schedule, s.cfg.CacheTTL)
	}
	return schedule, false, nil
}

// CheckAvailability reports whether a slot is free and, if not, what it collides with.
func (s *BookingService) CheckAvailability(ctx context.Context, req AvailabilityRequest) (*models.Availability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if err := validateWindow(req.Date, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	slot := models.BookingSlot{
		TeacherID: req.TeacherID,
		RoomID:    normalizeOptional(req.RoomID),
		StudentID: req.StudentID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	conflict, err := s.detector.FindConflict(ctx, nil, slot, req.ExcludeBookingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability")
	}
	return &models.Availability{Available: conflict == nil, Conflict: conflict}, nil
}

func (s *BookingService) ensureReferences(ctx context.Context, studentID, teacherID, courseID string, roomID *string) error {
	checks := []models.ReferenceCheck{
		{Kind: models.ReferenceStudent, ID: studentID},
		{Kind: models.ReferenceTeacher, ID: teacherID},
		{Kind: models.ReferenceCourse, ID: courseID},
	}
	if room := normalizeOptional(roomID); room != nil {
		checks = append(checks, models.ReferenceCheck{Kind: models.ReferenceRoom, ID: *room})
	}
	for _, check := range checks {
		if err := s.ensureExists(ctx, check.Kind, check.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *BookingService) ensureExists(ctx context.Context, kind models.ReferenceKind, id string) error {
	if s.references == nil {
		return nil
	}
	ok, err := s.references.Exists(ctx, kind, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to verify %s", kind))
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("%s %s not found", kind, id))
	}
	return nil
}

// lockPackage loads and locks the package a booking draws from. A package that is
// missing, owned by another student, or no longer ACTIVE fails the precondition.
func (s *BookingService) lockPackage(ctx context.Context, exec sqlx.ExtContext, packageID *string, studentID string) (*models.LessonPackage, error) {
	if packageID == nil {
		return nil, nil
	}
	pkg, err := s.packages.FindByIDForUpdate(ctx, exec, *packageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "lesson package not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson package")
	}
	if pkg.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "lesson package belongs to another student")
	}
	if pkg.Status != models.PackageStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("lesson package is %s", strings.ToLower(string(pkg.Status))))
	}
	return pkg, nil
}

func (s *BookingService) consume(ctx context.Context, exec sqlx.ExtContext, pkg models.LessonPackage, count int) error {
	updated := ConsumeLessons(pkg, count)
	if err := s.packages.SaveBalance(ctx, exec, &updated); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson package")
	}
	s.logger.Debug("lessons consumed",
		zap.String("package_id", pkg.ID),
		zap.Int("count", count),
		zap.Int("remaining", updated.RemainingLessons),
		zap.String("status", string(updated.Status)),
	)
	return nil
}

func (s *BookingService) release(ctx context.Context, exec sqlx.ExtContext, packageID string, count int) (int, error) {
	pkg, err := s.packages.FindByIDForUpdate(ctx, exec, packageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("lesson package missing on release", zap.String("package_id", packageID))
			return 0, nil
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson package")
	}
	updated := ReleaseLessons(*pkg, count)
	released := pkg.UsedLessons - updated.UsedLessons
	if released == 0 {
		return 0, nil
	}
	if err := s.packages.SaveBalance(ctx, exec, &updated); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson package")
	}
	s.logger.Debug("lessons released",
		zap.String("package_id", packageID),
		zap.Int("count", released),
		zap.Int("remaining", updated.RemainingLessons),
	)
	return released, nil
}

func (s *BookingService) wrapConflict(conflict models.BookingConflict) error {
	var message string
	switch conflict.Dimension {
	case models.ConflictTeacher:
		message = "teacher already booked for this slot"
	case models.ConflictRoom:
		message = "room already booked for this slot"
	default:
		message = "student already booked for this slot"
	}
	domainErr := &models.BookingConflictError{Message: message, Conflict: conflict}
	return appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, appErrors.ErrConflict.Message)
}

// recordConflict counts a rejected slot once the transaction has returned.
func (s *BookingService) recordConflict(err error) {
	var conflictErr *models.BookingConflictError
	if errors.As(err, &conflictErr) {
		s.metrics.RecordBookingConflict(conflictErr.Conflict.Dimension)
	}
}

func (s *BookingService) recordAudit(ctx context.Context, actorID, action, resource, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, actorID, action, resource, resourceID, payload)
}

func (s *BookingService) invalidateDay(ctx context.Context, date models.Date) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dayScheduleCachePrefix+date.String()); err != nil {
		s.logger.Warn("failed to invalidate day schedule", zap.String("date", date.String()), zap.Error(err))
	}
}

func applyBookingChanges(booking *models.Booking, req UpdateBookingRequest) {
	if req.CourseID != nil {
		booking.CourseID = *req.CourseID
	}
	if req.RoomID != nil {
		booking.RoomID = normalizeOptional(req.RoomID)
	}
	if req.Date != nil {
		booking.Date = *req.Date
	}
	if req.StartTime != nil {
		booking.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		booking.EndTime = *req.EndTime
	}
	if req.Status != nil {
		booking.Status = models.BookingStatus(strings.ToUpper(*req.Status))
	}
	if req.Notes != nil {
		booking.Notes = strings.TrimSpace(*req.Notes)
	}
}

func validateWindow(date models.Date, start, end models.TimeOfDay) error {
	if date.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	if !start.Valid() || !end.Valid() || start >= end {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
