package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	"github.com/noah-isme/sma-lesson-api/pkg/jobs"
)

type auditQueueStub struct {
	jobs []jobs.Job[models.AuditLog]
	err  error
}

func (q *auditQueueStub) Enqueue(job jobs.Job[models.AuditLog]) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type auditStoreStub struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (s *auditStoreStub) Create(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return nil
}

func (s *auditStoreStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

func TestAuditServiceRecordEnqueues(t *testing.T) {
	queue := &auditQueueStub{}
	svc := NewAuditService(queue, nil)

	svc.Record(context.Background(), "admin-1", models.AuditActionBookingCreate, models.AuditResourceBooking, "bk-1", map[string]string{"id": "bk-1"})
	require.Len(t, queue.jobs, 1)

	entry := queue.jobs[0].Payload
	assert.Equal(t, models.AuditActionBookingCreate, queue.jobs[0].Type)
	assert.Equal(t, models.AuditResourceBooking, entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "admin-1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.JSONEq(t, `{"id":"bk-1"}`, string(entry.NewValues))
}

func TestAuditServiceToleratesFailures(t *testing.T) {
	var nilSvc *AuditService
	assert.NotPanics(t, func() {
		nilSvc.Record(context.Background(), "", models.AuditActionBookingDelete, models.AuditResourceBooking, "bk-1", nil)
	})

	queue := &auditQueueStub{err: errors.New("queue full")}
	svc := NewAuditService(queue, nil)
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), "", models.AuditActionBookingDelete, models.AuditResourceBooking, "", func() {})
	})
}

func TestAuditWorkerThroughQueue(t *testing.T) {
	store := &auditStoreStub{}
	worker := NewAuditWorker(store, nil)
	queue := jobs.NewQueue[models.AuditLog]("audit", worker.Handle, jobs.QueueConfig{Workers: 1, BufferSize: 4})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)

	svc := NewAuditService(queue, nil)
	svc.Record(ctx, "admin-1", models.AuditActionPackageCreate, models.AuditResourcePackage, "pkg-1", nil)
	queue.Stop()

	assert.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 10*time.Millisecond)
}
