package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-lesson-api/internal/models"
)

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs (id, user_id, action, resource, resource_id, new_values, created_at)")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	actor := "admin-1"
	resourceID := "bk-1"
	entry := &models.AuditLog{
		UserID:     &actor,
		Action:     models.AuditActionBookingCreate,
		Resource:   models.AuditResourceBooking,
		ResourceID: &resourceID,
		NewValues:  []byte(`{"id":"bk-1"}`),
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryCreateNil(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	assert.Error(t, NewAuditRepository(db).Create(context.Background(), nil))
}
