package archive

import (
	"context"
	"slices"
	"sync"

	"github.com/Urzzard/Operador-IA/pkg/core/types"
)

const defaultMemoryRecords = 1000

// Memory keeps the most recent records in process.
type Memory struct {
	mu      sync.RWMutex
	max     int
	records map[string]CallRecord
	order   []string
}

// NewMemory creates a store holding at most max records (1000 when max <= 0).
// The oldest saved record is evicted first.
func NewMemory(max int) *Memory {
	if max <= 0 {
		max = defaultMemoryRecords
	}
	return &Memory{max: max, records: make(map[string]CallRecord)}
}

func (m *Memory) Save(_ context.Context, rec CallRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	rec.Transcript = types.Clone(rec.Transcript)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.CallSID]; ok {
		m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == rec.CallSID })
	}
	m.records[rec.CallSID] = rec
	m.order = append(m.order, rec.CallSID)
	for len(m.order) > m.max {
		delete(m.records, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *Memory) Get(_ context.Context, callSID string) (CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[callSID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	rec.Transcript = types.Clone(rec.Transcript)
	return rec, nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]CallRecord, error) {
	m.mu.RLock()
	out := make([]CallRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b CallRecord) int {
		return b.EndedAt.Compare(a.EndedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
