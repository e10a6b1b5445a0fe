package demanda

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore guarda demandas em memória. Usada em testes e com
// STORAGE_DRIVER=memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	seq   int64
	now   func() time.Time
}

type memoryEntry struct {
	demand Demand
	seq    int64
}

// NewMemoryStore cria uma store vazia.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryEntry), now: time.Now}
}

// WithClock troca o relógio usado para createdAt/updatedAt.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *MemoryStore) Get(_ context.Context, id string) (Demand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return Demand{}, ErrNotFound
	}
	return e.demand.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, d Demand) (Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if _, exists := s.items[d.ID]; exists {
		return Demand{}, ErrConflict
	}
	now := s.now().UTC()
	d = d.Clone()
	if d.Status == "" {
		d.Status = StatusEmAberto
	}
	if d.Usuarios == nil {
		d.Usuarios = []string{}
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	d.Versao = 1
	s.seq++
	s.items[d.ID] = memoryEntry{demand: d, seq: s.seq}
	return d.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, d Demand) (Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[d.ID]
	if !ok {
		return Demand{}, ErrNotFound
	}
	if current.demand.Versao != d.Versao {
		return Demand{}, ErrConflict
	}
	d = d.Clone()
	d.CreatedAt = current.demand.CreatedAt
	d.UpdatedAt = s.now().UTC()
	d.Versao = current.demand.Versao + 1
	s.items[d.ID] = memoryEntry{demand: d, seq: current.seq}
	return d.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, q Query) ([]Demand, int, error) {
	s.mu.RLock()
	matched := make([]memoryEntry, 0)
	for _, e := range s.items {
		if q.matches(e.demand) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.demand.CreatedAt.Equal(b.demand.CreatedAt) {
			if q.Ascending {
				return a.demand.CreatedAt.Before(b.demand.CreatedAt)
			}
			return a.demand.CreatedAt.After(b.demand.CreatedAt)
		}
		if q.Ascending {
			return a.seq < b.seq
		}
		return a.seq > b.seq
	})

	total := len(matched)
	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	out := make([]Demand, 0, end-start)
	for _, e := range matched[start:end] {
		out = append(out, e.demand.Clone())
	}
	return out, total, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}
