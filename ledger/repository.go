package ledger

import (
	"sort"
	"sync"
)

// Repository abstracts the backing store for positions so SQL, an
// embedded KV store or plain memory are interchangeable.
type Repository interface {
	Get(owner, symbol string) (Position, bool, error)
	Save(p Position) error
	Delete(owner, symbol string) error
	List(owner string) ([]Position, error)
	Close() error
}

type posKey struct {
	owner  string
	symbol string
}

// MemoryRepository is a map-backed Repository used by tests and the
// paper venue.
type MemoryRepository struct {
	mu        sync.RWMutex
	positions map[posKey]Position
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{positions: make(map[posKey]Position)}
}

func (r *MemoryRepository) Get(owner, symbol string) (Position, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.positions[posKey{owner, symbol}]
	return p, ok, nil
}

func (r *MemoryRepository) Save(p Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[posKey{p.Owner, p.Symbol}] = p
	return nil
}

func (r *MemoryRepository) Delete(owner, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions, posKey{owner, symbol})
	return nil
}

func (r *MemoryRepository) List(owner string) ([]Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Position
	for k, p := range r.positions {
		if k.owner == owner {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *MemoryRepository) Close() error { return nil }
