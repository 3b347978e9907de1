package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-lesson-api/internal/models"
)

const packageColumns = `id, student_id, course_id, total_lessons, used_lessons, remaining_lessons, status, created_at, updated_at`

// PackageRepository persists lesson package balances.
type PackageRepository struct {
	db *sqlx.DB
}

// NewPackageRepository constructs a package repository.
func NewPackageRepository(db *sqlx.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a package by id. sql.ErrNoRows is returned unwrapped when absent.
func (r *PackageRepository) FindByID(ctx context.Context, id string) (*models.LessonPackage, error) {
	query := `SELECT ` + packageColumns + ` FROM lesson_packages WHERE id = $1`
	var pkg models.LessonPackage
	if err := r.db.GetContext(ctx, &pkg, query, id); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// FindByIDForUpdate loads a package and locks its row until the transaction ends.
func (r *PackageRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.LessonPackage, error) {
	query := `SELECT ` + packageColumns + ` FROM lesson_packages WHERE id = $1 FOR UPDATE`
	var pkg models.LessonPackage
	if err := sqlx.GetContext(ctx, r.exec(exec), &pkg, query, id); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// Create inserts a package balance.
func (r *PackageRepository) Create(ctx context.Context, exec sqlx.ExtContext, pkg *models.LessonPackage) error {
	if pkg == nil {
		return fmt.Errorf("package payload is nil")
	}
	if pkg.ID == "" {
		pkg.ID = uuid.NewString()
	}
	if pkg.Status == "" {
		pkg.Status = models.PackageStatusActive
	}
	now := time.Now().UTC()
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = now
	}
	pkg.UpdatedAt = now

	const query = `INSERT INTO lesson_packages (id, student_id, course_id, total_lessons, used_lessons, remaining_lessons, status, created_at, updated_at)
VALUES (:id, :student_id, :course_id, :total_lessons, :used_lessons, :remaining_lessons, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, pkg); err != nil {
		return fmt.Errorf("create lesson package: %w", err)
	}
	return nil
}

// SaveBalance persists the counters and status produced by the lesson ledger.
func (r *PackageRepository) SaveBalance(ctx context.Context, exec sqlx.ExtContext, pkg *models.LessonPackage) error {
	if pkg == nil {
		return fmt.Errorf("package payload is nil")
	}
	pkg.UpdatedAt = time.Now().UTC()

	const query = `UPDATE lesson_packages SET used_lessons = :used_lessons, remaining_lessons = :remaining_lessons,
status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, pkg); err != nil {
		return fmt.Errorf("save lesson package balance: %w", err)
	}
	return nil
}

// UpdateStatus changes only the package status.
func (r *PackageRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PackageStatus) error {
	const query = `UPDATE lesson_packages SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.exec(exec).ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update lesson package status: %w", err)
	}
	return nil
}
