package history

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/papertrade/order"
)

// ErrNotFound indicates no record exists for an order id.
var ErrNotFound = errors.New("history: record not found")

// Store is the append-only trade history. Fills carry a monotonically
// increasing sequence per store so chronological reconstruction is
// stable even when timestamps collide.
type Store interface {
	Append(rec TradeRecord) error
	RecordFill(f order.Fill) error
	UpdateStatus(orderID string, status order.Status, reason string, at time.Time) error
	Get(orderID string) (TradeRecord, error)
	ListByOwner(owner string) ([]TradeRecord, error)
	ListOpen(owner string) ([]TradeRecord, error)
	Fills(owner string) ([]order.Fill, error)
	Close() error
}

type seqFill struct {
	seq  int64
	fill order.Fill
}

// MemoryStore is a map-backed Store for tests and short-lived runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]TradeRecord
	fills   []seqFill
	nextSeq int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]TradeRecord)}
}

func (s *MemoryStore) Append(rec TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.OrderID]; ok {
		return fmt.Errorf("history: record for order %s already exists", rec.OrderID)
	}
	s.records[rec.OrderID] = rec
	return nil
}

func (s *MemoryStore) RecordFill(f order.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[f.OrderID]
	if !ok {
		return fmt.Errorf("record fill for order %s: %w", f.OrderID, ErrNotFound)
	}

	// Idempotent on fill id: a replayed fill is dropped, not doubled.
	for _, sf := range s.fills {
		if sf.fill.ID == f.ID {
			return nil
		}
	}

	s.nextSeq++
	s.fills = append(s.fills, seqFill{seq: s.nextSeq, fill: f})

	rec.FilledQuantity += f.Quantity
	rec.FillPrice = f.Price
	rec.Commission += f.Commission
	if rec.FilledQuantity >= rec.Quantity {
		rec.Status = order.StatusFilled
	} else {
		rec.Status = order.StatusPartiallyFilled
	}
	rec.UpdatedAt = f.Time
	s.records[f.OrderID] = rec
	return nil
}

func (s *MemoryStore) UpdateStatus(orderID string, status order.Status, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[orderID]
	if !ok {
		return fmt.Errorf("update status for order %s: %w", orderID, ErrNotFound)
	}
	rec.Status = status
	rec.Reason = reason
	rec.UpdatedAt = at
	s.records[orderID] = rec
	return nil
}

func (s *MemoryStore) Get(orderID string) (TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[orderID]
	if !ok {
		return TradeRecord{}, fmt.Errorf("get order %s: %w", orderID, ErrNotFound)
	}
	return rec, nil
}

func (s *MemoryStore) ListByOwner(owner string) ([]TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []TradeRecord
	for _, rec := range s.records {
		if rec.Owner == owner {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ListOpen(owner string) ([]TradeRecord, error) {
	all, err := s.ListByOwner(owner)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, rec := range all {
		if rec.Open() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) Fills(owner string) ([]order.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []order.Fill
	for _, sf := range s.fills {
		if sf.fill.Owner == owner {
			out = append(out, sf.fill)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
