package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	"github.com/noah-isme/sma-lesson-api/pkg/jobs"
)

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type auditQueue interface {
	Enqueue(job jobs.Job[models.AuditLog]) error
}

// AuditService records booking and package changes off the request path.
type AuditService struct {
	queue  auditQueue
	logger *zap.Logger
}

// NewAuditService constructs an audit service. A nil queue disables auditing.
func NewAuditService(queue auditQueue, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{queue: queue, logger: logger}
}

// Record enqueues an audit entry. Failures are logged and never returned.
func (s *AuditService) Record(ctx context.Context, actorID, action, resource, resourceID string, payload interface{}) {
	if s == nil || s.queue == nil {
		return
	}
	entry := models.AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		Resource:  resource,
		CreatedAt: time.Now().UTC(),
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if payload != nil {
		raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(payload)
		if err != nil {
			s.logger.Warn("audit payload not serialisable", zap.String("action", action), zap.Error(err))
		} else {
			entry.NewValues = raw
		}
	}

	if err := s.queue.Enqueue(jobs.Job[models.AuditLog]{ID: entry.ID, Type: action, Payload: entry}); err != nil {
		s.logger.Warn("failed to enqueue audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

// AuditWorker persists queued audit entries.
type AuditWorker struct {
	store  auditStore
	logger *zap.Logger
}

// NewAuditWorker constructs the worker backing the audit queue.
func NewAuditWorker(store auditStore, logger *zap.Logger) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditWorker{store: store, logger: logger}
}

// Handle stores one audit entry. Returned errors make the queue retry.
func (w *AuditWorker) Handle(ctx context.Context, job jobs.Job[models.AuditLog]) error {
	entry := job.Payload
	if err := w.store.Create(ctx, &entry); err != nil {
		return err
	}
	w.logger.Debug("audit log stored", zap.String("action", entry.Action), zap.String("id", entry.ID))
	return nil
}
