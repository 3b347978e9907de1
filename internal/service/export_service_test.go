package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	appErrors "github.com/noah-isme/sma-lesson-api/pkg/errors"
)

func timetableStore() *memoryBookingStore {
	return newMemoryBookingStore(
		models.Booking{ID: "bk-1", TeacherID: "teacher-1", StudentID: "student-1", CourseID: "piano", RoomID: stringPtr("room-1"), Date: jan(8), StartTime: at(10, 0), EndTime: at(11, 0), Status: models.BookingStatusScheduled},
		models.Booking{ID: "bk-2", TeacherID: "teacher-1", StudentID: "student-2", CourseID: "violin", Date: jan(1), StartTime: at(9, 0), EndTime: at(10, 0), Status: models.BookingStatusCompleted},
		models.Booking{ID: "bk-3", TeacherID: "teacher-1", StudentID: "student-3", CourseID: "piano", Date: jan(2), StartTime: at(9, 0), EndTime: at(10, 0), Status: models.BookingStatusCancelled},
		models.Booking{ID: "bk-4", TeacherID: "teacher-2", StudentID: "student-1", CourseID: "piano", Date: jan(3), StartTime: at(9, 0), EndTime: at(10, 0), Status: models.BookingStatusScheduled},
	)
}

func TestExportServiceTeacherTimetableCSV(t *testing.T) {
	svc := NewExportService(timetableStore(), referenceSet{}, zap.NewNop())

	result, err := svc.TeacherTimetable(context.Background(), "teacher-1", jan(1), jan(31), "")
	require.NoError(t, err)
	assert.Equal(t, "timetable_teacher-1_2024-01-01_2024-01-31.csv", result.Filename)
	assert.Equal(t, "text/csv", result.ContentType)

	lines := strings.Split(strings.TrimSpace(string(result.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Day,Start,End,Student,Course,Room,Status", lines[0])
	assert.Equal(t, "2024-01-01,Monday,09:00,10:00,student-2,violin,-,COMPLETED", lines[1])
	assert.Equal(t, "2024-01-08,Monday,10:00,11:00,student-1,piano,room-1,SCHEDULED", lines[2])
}

func TestExportServiceTeacherTimetablePDF(t *testing.T) {
	svc := NewExportService(timetableStore(), referenceSet{}, nil)

	result, err := svc.TeacherTimetable(context.Background(), "teacher-1", jan(1), jan(31), ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Body), "%PDF"))
}

func TestExportServiceTeacherTimetableRejects(t *testing.T) {
	svc := NewExportService(timetableStore(), referenceSet{missing: map[string]bool{"teacher:ghost": true}}, nil)
	ctx := context.Background()

	_, err := svc.TeacherTimetable(ctx, "teacher-1", jan(10), jan(1), ExportFormatCSV)
	requireAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.TeacherTimetable(ctx, "teacher-1", jan(1), jan(1).AddDays(MaxTimetableDays+1), ExportFormatCSV)
	requireAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.TeacherTimetable(ctx, "teacher-1", jan(1), jan(31), "xlsx")
	requireAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.TeacherTimetable(ctx, " ", jan(1), jan(31), ExportFormatCSV)
	requireAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.TeacherTimetable(ctx, "ghost", jan(1), jan(31), ExportFormatCSV)
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}
