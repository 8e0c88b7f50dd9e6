package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"marketplace/pkg/order"
)

// Schema creates the table the repository writes to.
const Schema = `CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	buyer TEXT NOT NULL,
	cart_id INT NOT NULL,
	items TEXT[] NOT NULL,
	placed_at TIMESTAMPTZ NOT NULL
)`

// uniqueViolation is the PostgreSQL error code for a duplicate key.
const uniqueViolation = "23505"

// Repository records orders in PostgreSQL.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the orders table if it is missing.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Create inserts a new order.
func (r *Repository) Create(ctx context.Context, o order.Order) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO orders (id,buyer,cart_id,items,placed_at) VALUES ($1,$2,$3,$4,$5)",
		o.ID, o.Buyer, o.CartID, pq.Array(o.Items), o.PlacedAt)
	return insertError(err)
}

// insertError maps a duplicate key to order.ErrDuplicate.
func insertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return order.ErrDuplicate
	}
	return err
}

// Get retrieves an order by ID.
func (r *Repository) Get(ctx context.Context, id string) (order.Order, error) {
	var o order.Order
	err := r.db.QueryRowContext(ctx,
		"SELECT id,buyer,cart_id,items,placed_at FROM orders WHERE id=$1", id).
		Scan(&o.ID, &o.Buyer, &o.CartID, pq.Array(&o.Items), &o.PlacedAt)
	if err == sql.ErrNoRows {
		return order.Order{}, order.ErrNotFound
	}
	return o, err
}

// List fetches all orders, oldest first.
func (r *Repository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,buyer,cart_id,items,placed_at FROM orders ORDER BY placed_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []order.Order
	for rows.Next() {
		var o order.Order
		if err := rows.Scan(&o.ID, &o.Buyer, &o.CartID, pq.Array(&o.Items), &o.PlacedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Delete removes a recorded order. It returns order.ErrNotFound when no
// row has the id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM orders WHERE id=$1", id)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return deletedOne(res)
}

func deletedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return order.ErrNotFound
	}
	return nil
}
