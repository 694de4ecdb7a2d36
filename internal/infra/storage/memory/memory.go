package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/pricewatch/internal/infra/storage"
)

// MemoryStorage keeps report records in process. Records are bounded per feed.
type MemoryStorage struct {
	records map[string][]*storage.ReportRecord
	limit   int
	mu      sync.RWMutex
}

// DefaultRetention is the number of records kept per feed.
const DefaultRetention = 1000

func NewMemoryStorage() *MemoryStorage {
	return NewMemoryStorageWithRetention(DefaultRetention)
}

func NewMemoryStorageWithRetention(limit int) *MemoryStorage {
	if limit <= 0 {
		limit = DefaultRetention
	}
	return &MemoryStorage{
		records: make(map[string][]*storage.ReportRecord),
		limit:   limit,
	}
}

// -----------------------------------------------------------------------------
// Report Repository
// -----------------------------------------------------------------------------

type ReportRepo struct {
	store *MemoryStorage
}

func NewReportRepo(store *MemoryStorage) *ReportRepo {
	return &ReportRepo{store: store}
}

func (r *ReportRepo) Save(ctx context.Context, rec *storage.ReportRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	cp := *rec
	if cp.ID == "" {
		cp.ID = uuid.NewString()
		rec.ID = cp.ID
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	list := append(r.store.records[cp.Feed], &cp)
	if len(list) > r.store.limit {
		list = list[len(list)-r.store.limit:]
	}
	r.store.records[cp.Feed] = list
	return nil
}

func (r *ReportRepo) Recent(ctx context.Context, feed string, limit int) ([]*storage.ReportRecord, error) {
	limit = storage.NormalizeLimit(limit)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	list := r.store.records[feed]
	out := make([]*storage.ReportRecord, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *ReportRepo) Count(ctx context.Context, feed string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.records[feed]), nil
}

// DeleteOlderThan drops records stored before the cutoff.
func (r *ReportRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	deleted := 0
	for feed, list := range r.store.records {
		kept := list[:0]
		for _, rec := range list {
			if rec.StoredAt.Before(before) {
				deleted++
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			delete(r.store.records, feed)
			continue
		}
		r.store.records[feed] = kept
	}
	return deleted, nil
}
