package history

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// MemoryStore keeps history in process memory. It backs the "memory"
// history backend and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements ports.HistoryStore.
func (m *MemoryStore) Append(_ context.Context, record domain.HistoryRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	m.records = append(m.records, record)
	return record.ID, nil
}

// Query implements ports.HistoryStore.
func (m *MemoryStore) Query(_ context.Context, query domain.HistoryQuery) (domain.HistoryPage, error) {
	m.mu.Lock()
	records := append([]domain.HistoryRecord(nil), m.records...)
	m.mu.Unlock()
	return paginate(records, query), nil
}

// Delete implements ports.HistoryStore.
func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.records {
		if rec.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Clear implements ports.HistoryStore.
func (m *MemoryStore) Clear(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return true, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// paginate filters by search, orders newest first and cuts one page.
func paginate(records []domain.HistoryRecord, query domain.HistoryQuery) domain.HistoryPage {
	query = query.Normalize()
	matched := records[:0:0]
	for _, rec := range records {
		if rec.Matches(query.Search) {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	page := domain.HistoryPage{Total: len(matched)}
	start := query.Offset()
	if start >= len(matched) {
		return page
	}
	end := start + query.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	page.Items = matched[start:end]
	return page
}

var _ ports.HistoryStore = (*MemoryStore)(nil)
