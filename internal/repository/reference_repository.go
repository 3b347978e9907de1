package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-lesson-api/internal/models"
)

// ReferenceRepository answers existence checks for the entities a booking references.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs a reference repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// Exists reports whether a row with the given id exists for the kind.
func (r *ReferenceRepository) Exists(ctx context.Context, kind models.ReferenceKind, id string) (bool, error) {
	table, ok := kind.Table()
	if !ok {
		return false, fmt.Errorf("unknown reference kind %q", kind)
	}
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE id = $1 LIMIT 1`, table)
	var marker int
	if err := r.db.GetContext(ctx, &marker, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check %s exists: %w", kind, err)
	}
	return true, nil
}
