package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-lesson-api/internal/models"
)

const bookingColumns = `id, student_id, teacher_id, course_id, room_id, package_id, booking_date, start_time, end_time, status,
is_recurring, recurrence_pattern, recurrence_end_date, parent_booking_id, cancellation_reason, notes, created_by, created_at, updated_at`

var bookingSelectColumns = []interface{}{
	"id", "student_id", "teacher_id", "course_id", "room_id", "package_id", "booking_date", "start_time", "end_time", "status",
	"is_recurring", "recurrence_pattern", "recurrence_end_date", "parent_booking_id", "cancellation_reason", "notes", "created_by", "created_at", "updated_at",
}

// BookingRepository persists lesson bookings.
type BookingRepository struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

// NewBookingRepository constructs a booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db, dialect: goqu.Dialect("postgres")}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a booking by id. sql.ErrNoRows is returned unwrapped when absent.
func (r *BookingRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := sqlx.GetContext(ctx, r.exec(exec), &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListActiveByDate returns every non-cancelled booking on the given date.
func (r *BookingRepository) ListActiveByDate(ctx context.Context, exec sqlx.ExtContext, date models.Date) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_date = $1 AND status <> $2 ORDER BY start_time ASC, id ASC`
	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, r.exec(exec), &bookings, query, date, models.BookingStatusCancelled); err != nil {
		return nil, fmt.Errorf("list bookings by date: %w", err)
	}
	return bookings, nil
}

// ListByParent returns the occurrences generated from an anchor booking.
func (r *BookingRepository) ListByParent(ctx context.Context, parentID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE parent_booking_id = $1 ORDER BY booking_date ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, parentID); err != nil {
		return nil, fmt.Errorf("list booking occurrences: %w", err)
	}
	return bookings, nil
}

// List returns bookings with optional filtering and pagination.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	where := bookingFilterExpressions(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}

	dateOrder := goqu.I("booking_date").Asc()
	timeOrder := goqu.I("start_time").Asc()
	if strings.EqualFold(filter.SortOrder, "desc") {
		dateOrder = goqu.I("booking_date").Desc()
		timeOrder = goqu.I("start_time").Desc()
	}

	selectStmt := r.dialect.From("bookings").
		Prepared(true).
		Select(bookingSelectColumns...).
		Where(where...).
		Order(dateOrder, timeOrder).
		Limit(uint(size)).
		Offset(uint((page - 1) * size))

	query, args, err := selectStmt.ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build booking list query: %w", err)
	}

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery, countArgs, err := r.dialect.From("bookings").
		Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(where...).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build booking count query: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	return bookings, total, nil
}

func bookingFilterExpressions(filter models.BookingFilter) []goqu.Expression {
	var where []goqu.Expression
	if filter.TeacherID != "" {
		where = append(where, goqu.C("teacher_id").Eq(filter.TeacherID))
	}
	if filter.StudentID != "" {
		where = append(where, goqu.C("student_id").Eq(filter.StudentID))
	}
	if filter.RoomID != "" {
		where = append(where, goqu.C("room_id").Eq(filter.RoomID))
	}
	if filter.CourseID != "" {
		where = append(where, goqu.C("course_id").Eq(filter.CourseID))
	}
	if filter.PackageID != "" {
		where = append(where, goqu.C("package_id").Eq(filter.PackageID))
	}
	if filter.ParentBookingID != "" {
		where = append(where, goqu.C("parent_booking_id").Eq(filter.ParentBookingID))
	}
	if filter.Status != "" {
		where = append(where, goqu.C("status").Eq(string(filter.Status)))
	}
	if filter.From != nil {
		where = append(where, goqu.C("booking_date").Gte(filter.From.String()))
	}
	if filter.To != nil {
		where = append(where, goqu.C("booking_date").Lte(filter.To.String()))
	}
	return where
}

// Create inserts a booking, assigning id and timestamps when missing.
func (r *BookingRepository) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("booking payload is nil")
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusScheduled
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	const query = `INSERT INTO bookings (id, student_id, teacher_id, course_id, room_id, package_id, booking_date, start_time, end_time, status,
is_recurring, recurrence_pattern, recurrence_end_date, parent_booking_id, cancellation_reason, notes, created_by, created_at, updated_at)
VALUES (:id, :student_id, :teacher_id, :course_id, :room_id, :package_id, :booking_date, :start_time, :end_time, :status,
:is_recurring, :recurrence_pattern, :recurrence_end_date, :parent_booking_id, :cancellation_reason, :notes, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of a booking.
func (r *BookingRepository) Update(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("booking payload is nil")
	}
	booking.UpdatedAt = time.Now().UTC()

	const query = `UPDATE bookings SET course_id = :course_id, room_id = :room_id, booking_date = :booking_date,
start_time = :start_time, end_time = :end_time, status = :status, cancellation_reason = :cancellation_reason,
notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	return nil
}

// Delete removes a booking and reports whether a row was affected.
func (r *BookingRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete booking rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListByTeacherRange returns a teacher's non-cancelled bookings between from and to inclusive.
func (r *BookingRepository) ListByTeacherRange(ctx context.Context, teacherID string, from, to models.Date) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
WHERE teacher_id = $1 AND booking_date BETWEEN $2 AND $3 AND status <> $4
ORDER BY booking_date ASC, start_time ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, teacherID, from, to, models.BookingStatusCancelled); err != nil {
		return nil, fmt.Errorf("list teacher bookings: %w", err)
	}
	return bookings, nil
}
