package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	"github.com/noah-isme/sma-lesson-api/pkg/database"
)

type memoryBookingStore struct {
	mu       sync.Mutex
	seq      int
	bookings map[string]models.Booking
	created  []string
	failOn   string
}

func newMemoryBookingStore(seed ...models.Booking) *memoryBookingStore {
	store := &memoryBookingStore{bookings: map[string]models.Booking{}}
	for _, b := range seed {
		store.bookings[b.ID] = b
	}
	return store
}

func (s *memoryBookingStore) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (s *memoryBookingStore) ListActiveByDate(ctx context.Context, exec sqlx.ExtContext, date models.Date) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "list" {
		return nil, fmt.Errorf("connection reset")
	}
	var out []models.Booking
	for _, b := range s.bookings {
		if b.Date.Equal(date) && b.Status != models.BookingStatusCancelled {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (s *memoryBookingStore) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if filter.TeacherID != "" && b.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, b)
	}
	return out, len(out), nil
}

func (s *memoryBookingStore) ListByParent(ctx context.Context, parentID string) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.ParentBookingID != nil && *b.ParentBookingID == parentID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *memoryBookingStore) ListByTeacherRange(ctx context.Context, teacherID string, from, to models.Date) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.TeacherID != teacherID || b.Status == models.BookingStatusCancelled {
			continue
		}
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *memoryBookingStore) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "create" {
		return fmt.Errorf("insert failed")
	}
	if booking.ID == "" {
		s.seq++
		booking.ID = fmt.Sprintf("bk-%d", s.seq)
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusScheduled
	}
	booking.CreatedAt = time.Now().UTC()
	booking.UpdatedAt = booking.CreatedAt
	s.bookings[booking.ID] = *booking
	s.created = append(s.created, booking.ID)
	return nil
}

func (s *memoryBookingStore) Update(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[booking.ID]; !ok {
		return sql.ErrNoRows
	}
	booking.UpdatedAt = time.Now().UTC()
	s.bookings[booking.ID] = *booking
	return nil
}

func (s *memoryBookingStore) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return false, nil
	}
	delete(s.bookings, id)
	return true, nil
}

func (s *memoryBookingStore) get(id string) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memoryBookingStore) checkpoint() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	bookings := make(map[string]models.Booking, len(s.bookings))
	for id, b := range s.bookings {
		bookings[id] = b
	}
	created := append([]string(nil), s.created...)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.bookings, s.created = bookings, created
	}
}

type memoryPackageStore struct {
	mu       sync.Mutex
	packages map[string]models.LessonPackage
	saves    int
}

func newMemoryPackageStore(seed ...models.LessonPackage) *memoryPackageStore {
	store := &memoryPackageStore{packages: map[string]models.LessonPackage{}}
	for _, p := range seed {
		store.packages[p.ID] = p
	}
	return store
}

func (s *memoryPackageStore) FindByID(ctx context.Context, id string) (*models.LessonPackage, error) {
	return s.FindByIDForUpdate(ctx, nil, id)
}

func (s *memoryPackageStore) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.LessonPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (s *memoryPackageStore) Create(ctx context.Context, exec sqlx.ExtContext, pkg *models.LessonPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pkg.ID == "" {
		pkg.ID = fmt.Sprintf("pkg-%d", len(s.packages)+1)
	}
	s.packages[pkg.ID] = *pkg
	return nil
}

func (s *memoryPackageStore) SaveBalance(ctx context.Context, exec sqlx.ExtContext, pkg *models.LessonPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.packages[pkg.ID] = *pkg
	return nil
}

func (s *memoryPackageStore) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PackageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status = status
	s.packages[id] = p
	return nil
}

func (s *memoryPackageStore) get(id string) models.LessonPackage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packages[id]
}

func (s *memoryPackageStore) checkpoint() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	packages := make(map[string]models.LessonPackage, len(s.packages))
	for id, p := range s.packages {
		packages[id] = p
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.packages = packages
	}
}

type referenceSet struct {
	missing map[string]bool
	err     error
}

func (r referenceSet) Exists(ctx context.Context, kind models.ReferenceKind, id string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return !r.missing[string(kind)+":"+id], nil
}

// inlineTx runs the unit of work once without a database.
type inlineTx struct {
	runs int
}

func (t *inlineTx) Run(ctx context.Context, fn database.TxFunc) error {
	t.runs++
	return fn(ctx, nil)
}

type checkpointer interface {
	checkpoint() func()
}

// replayTx discards the first attempt and runs the unit of work a second time,
// like TxRunner after a serialization failure.
type replayTx struct {
	stores []checkpointer
	runs   int
}

func (t *replayTx) Run(ctx context.Context, fn database.TxFunc) error {
	restores := make([]func(), 0, len(t.stores))
	for _, store := range t.stores {
		restores = append(restores, store.checkpoint())
	}
	t.runs++
	_ = fn(ctx, nil)
	for _, restore := range restores {
		restore()
	}
	t.runs++
	return fn(ctx, nil)
}

type recordedAudit struct {
	actorID, action, resource, resourceID string
}

type auditSpy struct {
	mu      sync.Mutex
	entries []recordedAudit
}

func (a *auditSpy) Record(ctx context.Context, actorID, action, resource, resourceID string, payload interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, recordedAudit{actorID: actorID, action: action, resource: resource, resourceID: resourceID})
}

func (a *auditSpy) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.action)
	}
	return out
}

type dayCacheSpy struct {
	values      map[string]models.DaySchedule
	invalidated []string
}

func newDayCacheSpy() *dayCacheSpy {
	return &dayCacheSpy{values: map[string]models.DaySchedule{}}
}

func (c *dayCacheSpy) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	v, ok := c.values[key]
	if !ok {
		return false, nil
	}
	*(dest.(*models.DaySchedule)) = v
	return true, nil
}

func (c *dayCacheSpy) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.values[key] = *(value.(*models.DaySchedule))
	return nil
}

func (c *dayCacheSpy) Invalidate(ctx context.Context, pattern string) error {
	c.invalidated = append(c.invalidated, pattern)
	delete(c.values, pattern)
	return nil
}

func jan(day int) models.Date {
	return models.NewDate(2024, time.January, day)
}

func at(hour, minute int) models.TimeOfDay {
	return models.NewTimeOfDay(hour, minute)
}

func stringPtr(v string) *string {
	return &v
}
