package market

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarket(t *testing.T, capacity int) *Marketplace[string] {
	t.Helper()
	m, err := New[string](capacity)
	require.NoError(t, err)
	return m
}

func TestNewRejectsInvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		_, err := New[string](c)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	}
}

func TestIDsAreAssignedInCallOrder(t *testing.T) {
	m := newMarket(t, 3)

	assert.Equal(t, ProducerID(0), m.RegisterProducer())
	assert.Equal(t, CartID(0), m.NewCart())
	assert.Equal(t, ProducerID(1), m.RegisterProducer())
	assert.Equal(t, CartID(1), m.NewCart())
	assert.Equal(t, 2, m.Producers())
	assert.Equal(t, 2, m.Carts())
}

func TestPublishRespectsCapacity(t *testing.T) {
	m := newMarket(t, 3)
	p := m.RegisterProducer()

	for i := 0; i < 3; i++ {
		ok, err := m.Publish(p, "tea")
		require.NoError(t, err)
		require.True(t, ok, "publish %d", i)
	}
	ok, err := m.Publish(p, "tea")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := m.Available(p)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPublishQueuesAreIndependent(t *testing.T) {
	m := newMarket(t, 1)
	a := m.RegisterProducer()
	b := m.RegisterProducer()

	ok, _ := m.Publish(a, "tea")
	require.True(t, ok)
	ok, _ = m.Publish(b, "tea")
	assert.True(t, ok, "a full queue must not affect another producer")
}

func TestAddToCartTakesEachUnitOnce(t *testing.T) {
	m := newMarket(t, 5)
	p := m.RegisterProducer()
	c := m.NewCart()

	for i := 0; i < 2; i++ {
		ok, _ := m.Publish(p, "coffee")
		require.True(t, ok)
	}
	for i := 0; i < 2; i++ {
		ok, err := m.AddToCart(c, "coffee")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := m.AddToCart(c, "coffee")
	require.NoError(t, err)
	assert.False(t, ok)

	size, _ := m.CartSize(c)
	assert.Equal(t, 2, size)
}

func TestAddToCartMissingProductLeavesStateUntouched(t *testing.T) {
	m := newMarket(t, 5)
	p := m.RegisterProducer()
	c := m.NewCart()
	_, _ = m.Publish(p, "tea")

	ok, err := m.AddToCart(c, "coffee")
	require.NoError(t, err)
	assert.False(t, ok)

	n, _ := m.Available(p)
	assert.Equal(t, 1, n)
	size, _ := m.CartSize(c)
	assert.Zero(t, size)
}

func TestAddToCartSearchesAllProducers(t *testing.T) {
	m := newMarket(t, 5)
	a := m.RegisterProducer()
	b := m.RegisterProducer()
	c := m.NewCart()
	_, _ = m.Publish(a, "tea")
	_, _ = m.Publish(b, "coffee")

	ok, err := m.AddToCart(c, "coffee")
	require.NoError(t, err)
	require.True(t, ok)

	na, _ := m.Available(a)
	nb, _ := m.Available(b)
	assert.Equal(t, 1, na)
	assert.Equal(t, 0, nb)
}

func TestRemoveFromCartReturnsUnitToOrigin(t *testing.T) {
	m := newMarket(t, 5)
	a := m.RegisterProducer()
	b := m.RegisterProducer()
	c := m.NewCart()
	_, _ = m.Publish(b, "tea")

	ok, _ := m.AddToCart(c, "tea")
	require.True(t, ok)
	nb, _ := m.Available(b)
	require.Equal(t, 0, nb)

	removed, err := m.RemoveFromCart(c, "tea")
	require.NoError(t, err)
	assert.True(t, removed)

	na, _ := m.Available(a)
	nb, _ = m.Available(b)
	assert.Equal(t, 0, na)
	assert.Equal(t, 1, nb)
	size, _ := m.CartSize(c)
	assert.Zero(t, size)
}

func TestRemoveFromCartReturnsUnitToRefilledQueue(t *testing.T) {
	m := newMarket(t, 1)
	p := m.RegisterProducer()
	c := m.NewCart()

	ok, _ := m.Publish(p, "coffee")
	require.True(t, ok)
	ok, _ = m.AddToCart(c, "coffee")
	require.True(t, ok)
	ok, _ = m.Publish(p, "coffee")
	require.True(t, ok, "the taken unit frees its place")

	removed, err := m.RemoveFromCart(c, "coffee")
	require.NoError(t, err)
	require.True(t, removed)

	n, _ := m.Available(p)
	assert.Equal(t, 2, n, "the returned unit is kept even above capacity")
	size, _ := m.CartSize(c)
	assert.Zero(t, size)

	ok, _ = m.Publish(p, "coffee")
	assert.False(t, ok, "publish stays rejected until the queue drains below capacity")
	for i := 0; i < 2; i++ {
		ok, _ = m.AddToCart(c, "coffee")
		require.True(t, ok)
	}
	ok, _ = m.AddToCart(c, "coffee")
	assert.False(t, ok)
}

func TestRemoveFromCartMissingIsNoop(t *testing.T) {
	m := newMarket(t, 5)
	p := m.RegisterProducer()
	c := m.NewCart()
	_, _ = m.Publish(p, "tea")
	_, _ = m.AddToCart(c, "tea")

	removed, err := m.RemoveFromCart(c, "coffee")
	require.NoError(t, err)
	assert.False(t, removed)

	size, _ := m.CartSize(c)
	assert.Equal(t, 1, size)
	n, _ := m.Available(p)
	assert.Zero(t, n)
}

func TestPlaceOrderKeepsInsertionOrderNetOfRemovals(t *testing.T) {
	m := newMarket(t, 10)
	p := m.RegisterProducer()
	c := m.NewCart()
	for _, item := range []string{"a", "b", "a", "c"} {
		ok, _ := m.Publish(p, item)
		require.True(t, ok)
	}
	for _, item := range []string{"a", "b", "a", "c"} {
		ok, _ := m.AddToCart(c, item)
		require.True(t, ok)
	}
	removed, _ := m.RemoveFromCart(c, "a")
	require.True(t, removed)

	items, err := m.PlaceOrder(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, items)

	// placing an order does not consume the cart
	again, _ := m.PlaceOrder(c)
	assert.Equal(t, items, again)
}

func TestCoffeeScenario(t *testing.T) {
	m := newMarket(t, 10)
	p := m.RegisterProducer()
	c := m.NewCart()

	for i := 0; i < 8; i++ {
		ok, err := m.Publish(p, "Coffee-A")
		require.NoError(t, err)
		require.True(t, ok)
	}
	n, _ := m.Available(p)
	require.Equal(t, 8, n)

	for i := 0; i < 8; i++ {
		ok, err := m.AddToCart(c, "Coffee-A")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, _ := m.AddToCart(c, "Coffee-A")
	require.False(t, ok)

	removed, _ := m.RemoveFromCart(c, "Coffee-A")
	require.True(t, removed)

	n, _ = m.Available(p)
	assert.Equal(t, 1, n)
	size, _ := m.CartSize(c)
	assert.Equal(t, 7, size)

	items, err := m.PlaceOrder(c)
	require.NoError(t, err)
	require.Len(t, items, 7)
	for _, it := range items {
		assert.Equal(t, "Coffee-A", it)
	}
}

func TestUnknownIDs(t *testing.T) {
	m := newMarket(t, 1)

	_, err := m.Publish(0, "tea")
	assert.ErrorIs(t, err, ErrUnknownProducer)
	_, err = m.Publish(-1, "tea")
	assert.ErrorIs(t, err, ErrUnknownProducer)
	_, err = m.Available(3)
	assert.ErrorIs(t, err, ErrUnknownProducer)

	_, err = m.AddToCart(0, "tea")
	assert.ErrorIs(t, err, ErrUnknownCart)
	_, err = m.RemoveFromCart(0, "tea")
	assert.ErrorIs(t, err, ErrUnknownCart)
	_, err = m.PlaceOrder(0)
	assert.ErrorIs(t, err, ErrUnknownCart)
	_, err = m.CartSize(0)
	assert.ErrorIs(t, err, ErrUnknownCart)
	assert.ErrorIs(t, m.Checkout(0, func([]string) {}), ErrUnknownCart)
}

func TestCheckoutEmitsPlacedOrder(t *testing.T) {
	m := newMarket(t, 2)
	p := m.RegisterProducer()
	c := m.NewCart()
	_, _ = m.Publish(p, "tea")
	_, _ = m.AddToCart(c, "tea")

	var got []string
	require.NoError(t, m.Checkout(c, func(items []string) { got = items }))
	assert.Equal(t, []string{"tea"}, got)
}

// Concurrency tests, meant to be run with -race.

func TestConcurrentRegistration(t *testing.T) {
	m := newMarket(t, 1)
	const n = 100

	var wg sync.WaitGroup
	producers := make([]ProducerID, n)
	carts := make([]CartID, n)
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			producers[i] = m.RegisterProducer()
		}(i)
		go func(i int) {
			defer wg.Done()
			carts[i] = m.NewCart()
		}(i)
	}
	wg.Wait()

	seenP := make(map[ProducerID]bool, n)
	seenC := make(map[CartID]bool, n)
	for i := 0; i < n; i++ {
		seenP[producers[i]] = true
		seenC[carts[i]] = true
	}
	assert.Len(t, seenP, n)
	assert.Len(t, seenC, n)
	assert.Equal(t, n, m.Producers())
	assert.Equal(t, n, m.Carts())
}

func TestConcurrentPublishNeverLosesUnits(t *testing.T) {
	const (
		producers = 8
		capacity  = 50
		attempts  = 80
	)
	m := newMarket(t, capacity)

	var wg sync.WaitGroup
	accepted := make([]int, producers)
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		id := m.RegisterProducer()
		go func(i int, id ProducerID) {
			defer wg.Done()
			for j := 0; j < attempts; j++ {
				if ok, _ := m.Publish(id, "unit"); ok {
					accepted[i]++
				}
			}
		}(i, id)
	}
	wg.Wait()

	for i := 0; i < producers; i++ {
		n, err := m.Available(ProducerID(i))
		require.NoError(t, err)
		assert.Equal(t, accepted[i], n)
		assert.Equal(t, capacity, n)
	}
}

func TestConcurrentConsumersConserveUnits(t *testing.T) {
	const (
		producers = 4
		consumers = 8
		perQueue  = 25
	)
	m := newMarket(t, perQueue)
	for i := 0; i < producers; i++ {
		id := m.RegisterProducer()
		for j := 0; j < perQueue; j++ {
			ok, _ := m.Publish(id, "unit")
			require.True(t, ok)
		}
	}

	var wg sync.WaitGroup
	carts := make([]CartID, consumers)
	wg.Add(consumers)
	for i := 0; i < consumers; i++ {
		carts[i] = m.NewCart()
		go func(c CartID) {
			defer wg.Done()
			returned := false
			for {
				ok, err := m.AddToCart(c, "unit")
				if err != nil || !ok {
					return
				}
				// give one unit back once to exercise the return path
				if size, _ := m.CartSize(c); size == 3 && !returned {
					_, _ = m.RemoveFromCart(c, "unit")
					returned = true
				}
			}
		}(carts[i])
	}
	wg.Wait()

	inCarts := 0
	for _, c := range carts {
		items, err := m.PlaceOrder(c)
		require.NoError(t, err)
		inCarts += len(items)
	}
	inQueues := 0
	for i := 0; i < producers; i++ {
		n, _ := m.Available(ProducerID(i))
		assert.LessOrEqual(t, n, perQueue)
		inQueues += n
	}
	assert.Equal(t, producers*perQueue, inCarts+inQueues)
}

func TestConcurrentPublishAndConsume(t *testing.T) {
	const (
		producers = 4
		consumers = 4
		units     = 200
	)
	m := newMarket(t, 5)

	var wg sync.WaitGroup
	wg.Add(producers + consumers)
	for i := 0; i < producers; i++ {
		id := m.RegisterProducer()
		go func(id ProducerID) {
			defer wg.Done()
			for sent := 0; sent < units; {
				if ok, _ := m.Publish(id, "unit"); ok {
					sent++
				}
			}
		}(id)
	}
	carts := make([]CartID, consumers)
	for i := 0; i < consumers; i++ {
		carts[i] = m.NewCart()
		go func(c CartID) {
			defer wg.Done()
			for got := 0; got < units; {
				if ok, _ := m.AddToCart(c, "unit"); ok {
					got++
				}
			}
		}(carts[i])
	}
	wg.Wait()

	for _, c := range carts {
		size, _ := m.CartSize(c)
		assert.Equal(t, units, size)
	}
	for i := 0; i < producers; i++ {
		n, _ := m.Available(ProducerID(i))
		assert.Zero(t, n)
	}
}

func TestCheckoutDoesNotInterleave(t *testing.T) {
	m := newMarket(t, 1)
	const consumers = 16

	var (
		mu     sync.Mutex
		log    []int
		inside bool
		wg     sync.WaitGroup
	)
	wg.Add(consumers)
	for i := 0; i < consumers; i++ {
		c := m.NewCart()
		go func(i int, c CartID) {
			defer wg.Done()
			err := m.Checkout(c, func([]string) {
				mu.Lock()
				if inside {
					t.Errorf("emit %d overlapped another emit", i)
				}
				inside = true
				log = append(log, i)
				mu.Unlock()

				mu.Lock()
				log = append(log, i)
				inside = false
				mu.Unlock()
			})
			assert.NoError(t, err)
		}(i, c)
	}
	wg.Wait()

	require.Len(t, log, 2*consumers)
	for i := 0; i < len(log); i += 2 {
		assert.Equal(t, log[i], log[i+1])
	}
}
