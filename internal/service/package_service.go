package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	appErrors "github.com/noah-isme/sma-lesson-api/pkg/errors"
)

type packageRepository interface {
	FindByID(ctx context.Context, id string) (*models.LessonPackage, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.LessonPackage, error)
	Create(ctx context.Context, exec sqlx.ExtContext, pkg *models.LessonPackage) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PackageStatus) error
}

// CreatePackageRequest assigns a lesson allotment to a student for a course.
type CreatePackageRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	CourseID     string `json:"course_id" validate:"required"`
	TotalLessons int    `json:"total_lessons" validate:"required,min=1,max=1000"`
}

// PackageService manages lesson package balances outside the booking flow.
type PackageService struct {
	repo       packageRepository
	references referenceChecker
	tx         unitOfWork
	audit      auditRecorder
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewPackageService instantiates PackageService.
func NewPackageService(repo packageRepository, references referenceChecker, tx unitOfWork, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *PackageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PackageService{repo: repo, references: references, tx: tx, audit: audit, validator: validate, logger: logger}
}

// Create assigns a new ACTIVE package with its full allotment remaining.
func (s *PackageService) Create(ctx context.Context, req CreatePackageRequest, actorID string) (*models.LessonPackage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid package payload")
	}
	for _, check := range []models.ReferenceCheck{
		{Kind: models.ReferenceStudent, ID: req.StudentID},
		{Kind: models.ReferenceCourse, ID: req.CourseID},
	} {
		ok, err := s.references.Exists(ctx, check.Kind, check.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify references")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, string(check.Kind)+" "+check.ID+" not found")
		}
	}

	pkg := models.LessonPackage{
		StudentID:        req.StudentID,
		CourseID:         req.CourseID,
		TotalLessons:     req.TotalLessons,
		UsedLessons:      0,
		RemainingLessons: req.TotalLessons,
		Status:           models.PackageStatusActive,
	}
	if err := s.repo.Create(ctx, nil, &pkg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson package")
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, models.AuditActionPackageCreate, models.AuditResourcePackage, pkg.ID, pkg)
	}
	return &pkg, nil
}

// Get returns a package or nil when absent.
func (s *PackageService) Get(ctx context.Context, id string) (*models.LessonPackage, error) {
	pkg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson package")
	}
	return pkg, nil
}

// Cancel marks a package CANCELLED. Lesson counters are left as they are.
// It returns nil when id is unknown.
func (s *PackageService) Cancel(ctx context.Context, id, actorID string) (*models.LessonPackage, error) {
	var result *models.LessonPackage
	err := s.tx.Run(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		result = nil
		pkg, err := s.repo.FindByIDForUpdate(ctx, exec, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson package")
		}
		if pkg.Status != models.PackageStatusCancelled {
			if err := s.repo.UpdateStatus(ctx, exec, pkg.ID, models.PackageStatusCancelled); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel lesson package")
			}
			pkg.Status = models.PackageStatusCancelled
		}
		result = pkg
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result != nil && s.audit != nil {
		s.audit.Record(ctx, actorID, models.AuditActionPackageCancel, models.AuditResourcePackage, result.ID, nil)
	}
	return result, nil
}
