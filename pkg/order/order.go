package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Order is a placed cart, as recorded in the ledger.
type Order struct {
	ID       string    `json:"id"`
	Buyer    string    `json:"buyer"`
	CartID   int       `json:"cart_id"`
	Items    []string  `json:"items"`
	PlacedAt time.Time `json:"placed_at"`
}

// New returns an order with a fresh id, placed now.
func New(buyer string, cartID int, items []string) Order {
	return Order{
		ID:       uuid.NewString(),
		Buyer:    buyer,
		CartID:   cartID,
		Items:    items,
		PlacedAt: time.Now().UTC(),
	}
}

// Repository defines behavior for recording placed orders.
type Repository interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context) ([]Order, error)
	Delete(ctx context.Context, id string) error
}

var (
	// ErrNotFound indicates the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicate indicates an order with the same id was already recorded.
	ErrDuplicate = errors.New("order already exists")
)
