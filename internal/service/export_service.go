package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	appErrors "github.com/noah-isme/sma-lesson-api/pkg/errors"
	"github.com/noah-isme/sma-lesson-api/pkg/export"
)

// MaxTimetableDays bounds the range of a single timetable export.
const MaxTimetableDays = 366

type timetableReader interface {
	ListByTeacherRange(ctx context.Context, teacherID string, from, to models.Date) ([]models.Booking, error)
}

// ExportFormat is the file format of an export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult is a rendered file ready to stream to the client.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders teacher timetables.
type ExportService struct {
	bookings   timetableReader
	references referenceChecker
	renderers  map[ExportFormat]export.Renderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService with the CSV and PDF renderers.
func NewExportService(bookings timetableReader, references referenceChecker, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		bookings:   bookings,
		references: references,
		renderers: map[ExportFormat]export.Renderer{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
	}
}

// TeacherTimetable renders the teacher's non-cancelled bookings between from and to inclusive.
func (s *ExportService) TeacherTimetable(ctx context.Context, teacherID string, from, to models.Date, format ExportFormat) (*ExportResult, error) {
	teacherID = strings.TrimSpace(teacherID)
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	if from.IsZero() || to.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from and to are required")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if from.AddDays(MaxTimetableDays).Before(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("range exceeds %d days", MaxTimetableDays))
	}
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[ExportFormat(strings.ToLower(string(format)))]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}

	if s.references != nil {
		exists, err := s.references.Exists(ctx, models.ReferenceTeacher, teacherID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify teacher")
		}
		if !exists {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
	}

	bookings, err := s.bookings.ListByTeacherRange(ctx, teacherID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	body, err := renderer.Render(timetableTable(teacherID, from, to, bookings))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}
	s.logger.Debug("timetable exported",
		zap.String("teacher_id", teacherID),
		zap.String("format", renderer.Extension()),
		zap.Int("rows", len(bookings)),
	)

	return &ExportResult{
		Filename:    fmt.Sprintf("timetable_%s_%s_%s.%s", teacherID, from, to, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func timetableTable(teacherID string, from, to models.Date, bookings []models.Booking) export.Table {
	rows := make([][]string, 0, len(bookings))
	for _, b := range bookings {
		room := "-"
		if b.RoomID != nil {
			room = *b.RoomID
		}
		rows = append(rows, []string{
			b.Date.String(),
			b.Date.Weekday().String(),
			b.StartTime.String(),
			b.EndTime.String(),
			b.StudentID,
			b.CourseID,
			room,
			string(b.Status),
		})
	}
	return export.Table{
		Title:   fmt.Sprintf("Timetable %s (%s to %s)", teacherID, from, to),
		Headers: []string{"Date", "Day", "Start", "End", "Student", "Course", "Room", "Status"},
		Rows:    rows,
	}
}
