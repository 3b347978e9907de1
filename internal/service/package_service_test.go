package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	appErrors "github.com/noah-isme/sma-lesson-api/pkg/errors"
)

func TestPackageServiceCreate(t *testing.T) {
	store := newMemoryPackageStore()
	audit := &auditSpy{}
	svc := NewPackageService(store, referenceSet{}, &inlineTx{}, audit, nil, nil)

	pkg, err := svc.Create(context.Background(), CreatePackageRequest{StudentID: "student-1", CourseID: "course-1", TotalLessons: 8}, "admin-1")
	require.NoError(t, err)
	assert.NotEmpty(t, pkg.ID)
	assert.Equal(t, 8, pkg.RemainingLessons)
	assert.Equal(t, 0, pkg.UsedLessons)
	assert.Equal(t, models.PackageStatusActive, pkg.Status)
	assert.Equal(t, []string{models.AuditActionPackageCreate}, audit.actions())
}

func TestPackageServiceCreateRejects(t *testing.T) {
	svc := NewPackageService(newMemoryPackageStore(), referenceSet{missing: map[string]bool{"course:course-x": true}}, &inlineTx{}, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreatePackageRequest{StudentID: "student-1", CourseID: "course-1", TotalLessons: 0}, "admin-1")
	requireAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.Create(ctx, CreatePackageRequest{StudentID: "student-1", CourseID: "course-x", TotalLessons: 4}, "admin-1")
	requireAppError(t, err, appErrors.ErrPreconditionFailed.Code)
}

func TestPackageServiceGet(t *testing.T) {
	store := newMemoryPackageStore(models.LessonPackage{ID: "pkg-1", StudentID: "student-1", TotalLessons: 4, RemainingLessons: 4, Status: models.PackageStatusActive})
	svc := NewPackageService(store, referenceSet{}, &inlineTx{}, nil, nil, nil)

	pkg, err := svc.Get(context.Background(), "pkg-1")
	require.NoError(t, err)
	assert.Equal(t, "pkg-1", pkg.ID)

	missing, err := svc.Get(context.Background(), "pkg-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPackageServiceCancelKeepsCounters(t *testing.T) {
	store := newMemoryPackageStore(models.LessonPackage{ID: "pkg-1", StudentID: "student-1", TotalLessons: 4, UsedLessons: 1, RemainingLessons: 3, Status: models.PackageStatusActive})
	audit := &auditSpy{}
	svc := NewPackageService(store, referenceSet{}, &inlineTx{}, audit, nil, nil)

	pkg, err := svc.Cancel(context.Background(), "pkg-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.PackageStatusCancelled, pkg.Status)
	assert.Equal(t, 1, pkg.UsedLessons)
	assert.Equal(t, 3, pkg.RemainingLessons)
	assert.Equal(t, models.PackageStatusCancelled, store.get("pkg-1").Status)

	missing, err := svc.Cancel(context.Background(), "pkg-404", "admin-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Equal(t, []string{models.AuditActionPackageCancel}, audit.actions())
}

func TestCancelledPackageBlocksNewBookings(t *testing.T) {
	f := newBookingFixture(t, referenceSet{})
	packages := NewPackageService(f.packages, referenceSet{}, f.tx, nil, nil, nil)

	_, err := packages.Cancel(context.Background(), "pkg-1", "admin-1")
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), createRequest(), "admin-1")
	requireAppError(t, err, appErrors.ErrPreconditionFailed.Code)
}
