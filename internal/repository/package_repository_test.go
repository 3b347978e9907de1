package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-lesson-api/internal/models"
)

var packageRowColumns = []string{"id", "student_id", "course_id", "total_lessons", "used_lessons", "remaining_lessons", "status", "created_at", "updated_at"}

func TestPackageRepositoryFindByIDForUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPackageRepository(db)

	rows := sqlmock.NewRows(packageRowColumns).
		AddRow("pkg-1", "student-1", "course-1", 10, 3, 7, string(models.PackageStatusActive), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM lesson_packages WHERE id = $1 FOR UPDATE")).
		WithArgs("pkg-1").
		WillReturnRows(rows)

	pkg, err := repo.FindByIDForUpdate(context.Background(), nil, "pkg-1")
	require.NoError(t, err)
	assert.Equal(t, 3, pkg.UsedLessons)
	assert.Equal(t, 7, pkg.RemainingLessons)
	assert.Equal(t, models.PackageStatusActive, pkg.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPackageRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM lesson_packages WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPackageRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lesson_packages")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	pkg := &models.LessonPackage{StudentID: "student-1", CourseID: "course-1", TotalLessons: 4, RemainingLessons: 4}
	require.NoError(t, repo.Create(context.Background(), nil, pkg))
	assert.NotEmpty(t, pkg.ID)
	assert.Equal(t, models.PackageStatusActive, pkg.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepositorySaveBalance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPackageRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE lesson_packages SET used_lessons = ")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pkg := &models.LessonPackage{ID: "pkg-1", UsedLessons: 4, RemainingLessons: 0, Status: models.PackageStatusCompleted}
	require.NoError(t, repo.SaveBalance(context.Background(), nil, pkg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPackageRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE lesson_packages SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(string(models.PackageStatusCancelled), sqlmock.AnyArg(), "pkg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "pkg-1", models.PackageStatusCancelled))
	assert.NoError(t, mock.ExpectationsWereMet())
}
