package driver

import (
	"context"
	"time"

	"marketplace/pkg/market"
	"marketplace/pkg/product"
)

// CatalogEntry is a product a producer makes Quantity units of per round,
// waiting Pace after each published unit.
type CatalogEntry struct {
	Product  product.Product
	Quantity int
	Pace     time.Duration
}

// Producer publishes its catalog over and over until stopped.
type Producer struct {
	name       string
	id         market.ProducerID
	market     Market
	catalog    []CatalogEntry
	retryDelay time.Duration
	opts       options
}

// NewProducer registers a producer with m.
func NewProducer(m Market, name string, catalog []CatalogEntry, retryDelay time.Duration, opts ...Option) *Producer {
	p := &Producer{
		name:       name,
		id:         m.RegisterProducer(),
		market:     m,
		catalog:    catalog,
		retryDelay: retryDelay,
		opts:       buildOptions(opts),
	}
	p.opts.log = p.opts.log.With("producer", name, "producer_id", int(p.id))
	p.opts.log.Info(context.Background(), "producer registered")
	return p
}

// ID returns the id assigned at registration.
func (p *Producer) ID() market.ProducerID {
	return p.id
}

// Run publishes until ctx is cancelled and returns the cancellation cause,
// or returns early if the marketplace rejects the producer id. A producer
// with nothing to make just waits for ctx.
func (p *Producer) Run(ctx context.Context) error {
	if p.roundSize() == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, e := range p.catalog {
			for i := 0; i < e.Quantity; i++ {
				if err := p.publish(ctx, e.Product); err != nil {
					return err
				}
				if err := sleep(ctx, e.Pace); err != nil {
					return err
				}
			}
		}
	}
}

func (p *Producer) roundSize() int {
	n := 0
	for _, e := range p.catalog {
		if e.Quantity > 0 {
			n += e.Quantity
		}
	}
	return n
}

func (p *Producer) publish(ctx context.Context, item product.Product) error {
	return retry(ctx, p.retryDelay, func() (bool, error) {
		ok, err := p.market.Publish(p.id, item)
		if err == nil {
			p.opts.metrics.ObservePublish(ok)
		}
		return ok, err
	}, func(d time.Duration) {
		p.opts.log.Debug(ctx, "queue full, retrying", "product", item.String(), "delay", d)
	})
}
