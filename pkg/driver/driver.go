// Package driver runs producers and consumers against a marketplace. The
// marketplace never waits; the retry loops with their delays live here.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"marketplace/pkg/logger"
	"marketplace/pkg/market"
	"marketplace/pkg/metrics"
	"marketplace/pkg/product"
)

// Market is the part of the marketplace the drivers use.
type Market interface {
	RegisterProducer() market.ProducerID
	Publish(id market.ProducerID, p product.Product) (bool, error)
	NewCart() market.CartID
	AddToCart(id market.CartID, p product.Product) (bool, error)
	RemoveFromCart(id market.CartID, p product.Product) (bool, error)
	Checkout(id market.CartID, emit func([]product.Product)) error
}

var _ Market = (*market.Marketplace[product.Product])(nil)

// errUnavailable marks an attempt that should be retried after the delay.
var errUnavailable = errors.New("marketplace rejected the attempt")

type options struct {
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Option configures a producer or consumer.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records attempts in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// retry calls attempt until it reports true, waiting delay between
// unsuccessful calls. An error from attempt stops the loop, as does ctx.
func retry(ctx context.Context, delay time.Duration, attempt func() (bool, error), onRetry func(time.Duration)) error {
	ropts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(delay)),
		backoff.WithMaxElapsedTime(0),
	}
	if onRetry != nil {
		ropts = append(ropts, backoff.WithNotify(func(_ error, d time.Duration) { onRetry(d) }))
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := attempt()
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !ok {
			return struct{}{}, errUnavailable
		}
		return struct{}{}, nil
	}, ropts...)
	return err
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
