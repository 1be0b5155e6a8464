// Package venue abstracts exchange backends behind one client
// interface so the coordinator and reconciler treat every venue the
// same way. Wire formats and authentication live in concrete clients
// outside this core; the paper client here is the reference
// implementation.
package venue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rustyeddy/papertrade/order"
)

// ErrUnknownVenue indicates a lookup for a name never registered.
var ErrUnknownVenue = errors.New("venue: unknown venue")

// ErrUnknownOrder indicates a cancel for an order the venue does not
// hold.
var ErrUnknownOrder = errors.New("venue: unknown order")

// Position is a venue-reported open position.
type Position struct {
	Symbol     string
	Quantity   float64
	EntryPrice float64
}

// OrderResult is a venue's answer to PlaceOrder: a fill when the order
// executed, otherwise an acknowledgment with the resting status.
type OrderResult struct {
	OrderID string
	Status  order.Status
	Fill    *order.Fill
	Reason  string
}

// Client is the uniform exchange interface.
type Client interface {
	Name() string
	PlaceOrder(ctx context.Context, req order.Request) (OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetPositions(ctx context.Context) ([]Position, error)
	GetBalance(ctx context.Context) (map[string]float64, error)
}

// Registry holds the configured venue clients in registration order.
// It is plain per-process state passed by handle, not a package-level
// singleton.
type Registry struct {
	mu      sync.RWMutex
	names   []string
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds a client under its name. Duplicate names are an error.
func (r *Registry) Register(c Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, ok := r.clients[name]; ok {
		return fmt.Errorf("venue: %q already registered", name)
	}
	r.clients[name] = c
	r.names = append(r.names, name)
	return nil
}

// Get returns the client registered under name.
func (r *Registry) Get(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVenue, name)
	}
	return c, nil
}

// Names returns venue names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
