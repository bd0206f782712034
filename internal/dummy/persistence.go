package dummy

import (
	"context"
	"sort"
	"sync"

	"github.com/morezero/components/pkg/apperr"
)

// Persistence stores dummies. Lookups of missing ids return nil without error.
type Persistence interface {
	List(ctx context.Context, traceID string, filter Filter, paging Paging) (*Page, error)
	GetByID(ctx context.Context, traceID, id string) (*Dummy, error)
	Create(ctx context.Context, traceID string, d Dummy) (*Dummy, error)
	Update(ctx context.Context, traceID string, d Dummy) (*Dummy, error)
	DeleteByID(ctx context.Context, traceID, id string) (*Dummy, error)
}

// MemoryPersistence keeps dummies in a map. Lists are ordered by id.
type MemoryPersistence struct {
	mu    sync.RWMutex
	items map[string]Dummy
}

// NewMemoryPersistence creates an empty store.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{items: map[string]Dummy{}}
}

// List filters by key and ids, ordered by id.
func (p *MemoryPersistence) List(_ context.Context, _ string, filter Filter, paging Paging) (*Page, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var matched []Dummy
	for _, d := range p.items {
		if filter.matches(d) {
			matched = append(matched, d)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	page := &Page{Data: []Dummy{}}
	if paging.Total {
		total := int64(len(matched))
		page.Total = &total
	}
	if paging.Skip >= len(matched) {
		return page, nil
	}
	end := min(paging.Skip+paging.take(), len(matched))
	page.Data = append(page.Data, matched[paging.Skip:end]...)
	return page, nil
}

// GetByID returns a copy of the stored dummy, or nil.
func (p *MemoryPersistence) GetByID(_ context.Context, _, id string) (*Dummy, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.items[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// Create fails with DUMMY_EXISTS when the id is taken.
func (p *MemoryPersistence) Create(_ context.Context, traceID string, d Dummy) (*Dummy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.items[d.ID]; exists {
		return nil, apperr.NewConflictError(traceID, "DUMMY_EXISTS", "Dummy already exists").
			WithDetails("id", d.ID)
	}
	p.items[d.ID] = d
	return &d, nil
}

// Update replaces the stored dummy, or returns nil when the id is unknown.
func (p *MemoryPersistence) Update(_ context.Context, _ string, d Dummy) (*Dummy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.items[d.ID]; !exists {
		return nil, nil
	}
	p.items[d.ID] = d
	return &d, nil
}

// DeleteByID returns the removed dummy, or nil.
func (p *MemoryPersistence) DeleteByID(_ context.Context, _, id string) (*Dummy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, exists := p.items[id]
	if !exists {
		return nil, nil
	}
	delete(p.items, id)
	return &d, nil
}
