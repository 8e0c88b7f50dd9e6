// Package market implements the marketplace shared by producers and
// consumers: per-producer bounded queues and per-consumer carts.
package market

import (
	"errors"
	"sync"
)

// ProducerID identifies a registered producer.
type ProducerID int

// CartID identifies a cart created with NewCart.
type CartID int

var (
	// ErrInvalidCapacity is returned by New for a capacity below one.
	ErrInvalidCapacity = errors.New("queue capacity must be positive")
	// ErrUnknownProducer indicates a producer id that was never registered.
	ErrUnknownProducer = errors.New("unknown producer")
	// ErrUnknownCart indicates a cart id that was never created.
	ErrUnknownCart = errors.New("unknown cart")
)

// Marketplace coordinates producers publishing into their own bounded
// queues and consumers moving units between those queues and their carts.
//
// Every producer queue has its own lock. Registration locks only guard the
// id-to-slot and id-to-cart tables and are never held while a slot lock is
// taken. A cart is not locked at all: each cart must be driven by a single
// goroutine from NewCart through PlaceOrder.
type Marketplace[P comparable] struct {
	capacity int

	producersMu sync.RWMutex
	slots       []*slot[P]

	cartsMu sync.RWMutex
	carts   []*cart[P]

	printMu sync.Mutex
}

// New returns an empty marketplace whose producer queues hold at most
// capacity units each.
func New[P comparable](capacity int) (*Marketplace[P], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &Marketplace[P]{capacity: capacity}, nil
}

// Capacity returns the per-producer queue limit.
func (m *Marketplace[P]) Capacity() int {
	return m.capacity
}

// RegisterProducer allocates the next producer id with an empty queue.
func (m *Marketplace[P]) RegisterProducer() ProducerID {
	m.producersMu.Lock()
	defer m.producersMu.Unlock()
	id := ProducerID(len(m.slots))
	m.slots = append(m.slots, newSlot[P](m.capacity))
	return id
}

// NewCart allocates the next cart id with an empty cart.
func (m *Marketplace[P]) NewCart() CartID {
	m.cartsMu.Lock()
	defer m.cartsMu.Unlock()
	id := CartID(len(m.carts))
	m.carts = append(m.carts, &cart[P]{})
	return id
}

// Producers returns the number of registered producers.
func (m *Marketplace[P]) Producers() int {
	m.producersMu.RLock()
	defer m.producersMu.RUnlock()
	return len(m.slots)
}

// Carts returns the number of carts created so far.
func (m *Marketplace[P]) Carts() int {
	m.cartsMu.RLock()
	defer m.cartsMu.RUnlock()
	return len(m.carts)
}

// Publish offers one unit to the producer's queue. It reports false without
// waiting when the queue is full; retrying is up to the caller.
func (m *Marketplace[P]) Publish(id ProducerID, p P) (bool, error) {
	s, err := m.slot(id)
	if err != nil {
		return false, err
	}
	return s.put(p), nil
}

// Available returns the number of units currently queued by the producer.
func (m *Marketplace[P]) Available(id ProducerID) (int, error) {
	s, err := m.slot(id)
	if err != nil {
		return 0, err
	}
	return s.size(), nil
}

// AddToCart moves one unit equal to p from the first producer queue that
// holds one into the cart. It reports false, leaving everything untouched,
// when no producer currently has such a unit.
func (m *Marketplace[P]) AddToCart(id CartID, p P) (bool, error) {
	c, err := m.cart(id)
	if err != nil {
		return false, err
	}
	for pid, s := range m.snapshot() {
		if s.take(p) {
			c.push(p, ProducerID(pid))
			return true, nil
		}
	}
	return false, nil
}

// RemoveFromCart returns the first unit equal to p in the cart to the queue
// it was taken from. It reports false when the cart holds no such unit.
func (m *Marketplace[P]) RemoveFromCart(id CartID, p P) (bool, error) {
	c, err := m.cart(id)
	if err != nil {
		return false, err
	}
	origin, ok := c.pop(p)
	if !ok {
		return false, nil
	}
	s, err := m.slot(origin)
	if err != nil {
		return false, err
	}
	// The unit goes back even if the producer refilled its place meanwhile;
	// dropping it would lose a unit.
	s.restore(p)
	return true, nil
}

// CartSize returns the number of units in the cart.
func (m *Marketplace[P]) CartSize(id CartID) (int, error) {
	c, err := m.cart(id)
	if err != nil {
		return 0, err
	}
	return len(c.lines), nil
}

// PlaceOrder returns the cart's products in the order they were added,
// without the units that were removed again.
func (m *Marketplace[P]) PlaceOrder(id CartID) ([]P, error) {
	c, err := m.cart(id)
	if err != nil {
		return nil, err
	}
	return c.products(), nil
}

// Checkout places the order and hands it to emit while holding the print
// lock, so reports of different carts never interleave.
func (m *Marketplace[P]) Checkout(id CartID, emit func([]P)) error {
	items, err := m.PlaceOrder(id)
	if err != nil {
		return err
	}
	m.Serialize(func() { emit(items) })
	return nil
}

// Serialize runs fn under the marketplace's print lock.
func (m *Marketplace[P]) Serialize(fn func()) {
	m.printMu.Lock()
	defer m.printMu.Unlock()
	fn()
}

func (m *Marketplace[P]) slot(id ProducerID) (*slot[P], error) {
	m.producersMu.RLock()
	defer m.producersMu.RUnlock()
	if id < 0 || int(id) >= len(m.slots) {
		return nil, ErrUnknownProducer
	}
	return m.slots[id], nil
}

func (m *Marketplace[P]) cart(id CartID) (*cart[P], error) {
	m.cartsMu.RLock()
	defer m.cartsMu.RUnlock()
	if id < 0 || int(id) >= len(m.carts) {
		return nil, ErrUnknownCart
	}
	return m.carts[id], nil
}

// snapshot returns the slots registered so far, indexed by producer id.
// Slots are append-only, so the returned slice stays valid.
func (m *Marketplace[P]) snapshot() []*slot[P] {
	m.producersMu.RLock()
	defer m.producersMu.RUnlock()
	return m.slots[:len(m.slots):len(m.slots)]
}
