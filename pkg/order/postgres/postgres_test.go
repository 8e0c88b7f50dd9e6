package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"marketplace/pkg/order"
)

type result struct {
	n   int64
	err error
}

func (r result) LastInsertId() (int64, error) { return 0, nil }
func (r result) RowsAffected() (int64, error) { return r.n, r.err }

func TestInsertError(t *testing.T) {
	other := errors.New("connection reset")
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"unique violation", &pq.Error{Code: uniqueViolation}, order.ErrDuplicate},
		{"wrapped unique violation", fmt.Errorf("exec: %w", &pq.Error{Code: uniqueViolation}), order.ErrDuplicate},
		{"other pq error", &pq.Error{Code: "23502"}, &pq.Error{Code: "23502"}},
		{"other error", other, other},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, insertError(tc.in))
		})
	}
}

func TestDeletedOne(t *testing.T) {
	assert.NoError(t, deletedOne(result{n: 1}))
	assert.ErrorIs(t, deletedOne(result{n: 0}), order.ErrNotFound)
	assert.Error(t, deletedOne(result{err: errors.New("unsupported")}))
}

func TestSchemaColumns(t *testing.T) {
	for _, col := range []string{"id TEXT PRIMARY KEY", "buyer", "cart_id", "items TEXT[]", "placed_at"} {
		assert.Contains(t, Schema, col)
	}
}
