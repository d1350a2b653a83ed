package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/datacheck/internal/domain/dataset"
	"github.com/okian/datacheck/internal/domain/model"
	"github.com/okian/datacheck/pkg/metrics"
)

// MemStore defaults.
const (
	defaultTTL           = 30 * time.Minute
	defaultCapacity      = 256
	defaultSweepInterval = time.Minute
)

// MemStore is an in-memory Store. Datasets are small enough and
// short-lived enough that a map under one mutex beats anything fancier;
// the janitor goroutine handles expiry and the checksum index makes
// repeated uploads of the same bytes idempotent.
type MemStore struct {
	mu        sync.RWMutex
	records   map[string]*Record
	checksums map[uint64]string
	closed    bool

	ttl           time.Duration
	capacity      int
	sweepInterval time.Duration
	now           func() time.Time

	stop chan struct{}
	done chan struct{}
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates a store with configuration options and starts its
// janitor.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		records:       make(map[string]*Record),
		checksums:     make(map[uint64]string),
		ttl:           defaultTTL,
		capacity:      defaultCapacity,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.janitor()
	return s
}

// Put implements Store.
func (s *MemStore) Put(ctx context.Context, ds *dataset.Dataset) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}

	now := s.now()
	if id, ok := s.checksums[ds.Checksum()]; ok {
		if rec, live := s.records[id]; live && now.Before(rec.ExpiresAt) {
			metrics.RecordDatasetDuplicate()
			return id, true, nil
		}
	}

	if len(s.records) >= s.capacity {
		s.evictOldestLocked()
	}

	id := uuid.NewString()
	s.records[id] = &Record{
		ID:        id,
		Dataset:   ds,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.checksums[ds.Checksum()] = id
	metrics.UpdateStoreDatasets(len(s.records))
	return id, false, nil
}

// Get implements Store. It returns a snapshot of the record taken under
// the lock, so callers can read it while the setters mutate the stored
// copy. The report pointers are immutable once set, so a shallow copy is
// enough.
func (s *MemStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rec, ok := s.records[id]
	var snapshot Record
	if ok {
		snapshot = *rec
	}
	s.mu.RUnlock()
	if !ok || !s.now().Before(snapshot.ExpiresAt) {
		metrics.RecordStoreMiss()
		return nil, ErrNotFound
	}
	metrics.RecordStoreHit()
	return &snapshot, nil
}

// SetQuality implements Store.
func (s *MemStore) SetQuality(ctx context.Context, id string, report *model.QualityReport) error {
	return s.update(ctx, id, func(rec *Record) { rec.Quality = report })
}

// SetAnomaly implements Store.
func (s *MemStore) SetAnomaly(ctx context.Context, id string, report *model.AnomalyReport) error {
	return s.update(ctx, id, func(rec *Record) { rec.Anomaly = report })
}

// SetRecommendations implements Store.
func (s *MemStore) SetRecommendations(ctx context.Context, id string, set *model.RecommendationSet) error {
	return s.update(ctx, id, func(rec *Record) { rec.Recommendations = set })
}

func (s *MemStore) update(ctx context.Context, id string, apply func(*Record)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || !s.now().Before(rec.ExpiresAt) {
		return ErrNotFound
	}
	apply(rec)
	return nil
}

// Count implements Store.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	now := s.now()
	for _, rec := range s.records {
		if now.Before(rec.ExpiresAt) {
			n++
		}
	}
	return n
}

// Close implements Store.
func (s *MemStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.stop)
	<-s.done
}

// evictOldestLocked removes the record with the earliest creation time.
func (s *MemStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, rec := range s.records {
		if oldestID == "" || rec.CreatedAt.Before(oldest) {
			oldestID = id
			oldest = rec.CreatedAt
		}
	}
	if oldestID != "" {
		s.removeLocked(oldestID)
		metrics.RecordStoreEviction()
	}
}

func (s *MemStore) removeLocked(id string) {
	rec, ok := s.records[id]
	if !ok {
		return
	}
	delete(s.records, id)
	if cur, ok := s.checksums[rec.Dataset.Checksum()]; ok && cur == id {
		delete(s.checksums, rec.Dataset.Checksum())
	}
	metrics.UpdateStoreDatasets(len(s.records))
}

func (s *MemStore) janitor() {
	defer close(s.done)
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if !now.Before(rec.ExpiresAt) {
			s.removeLocked(id)
			metrics.RecordStoreExpiration()
		}
	}
}
