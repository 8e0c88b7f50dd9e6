package driver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"marketplace/pkg/config"
	"marketplace/pkg/market"
	"marketplace/pkg/order"
	"marketplace/pkg/product"
)

// RunScenario builds a marketplace for s, registers its producers and then
// its consumers in file order, and runs them all. It returns once every
// consumer has placed its order; producers are stopped at that point.
// Orders are printed to out and recorded in ledger when it is not nil.
func RunScenario(ctx context.Context, s config.Scenario, out io.Writer, ledger order.Repository, opts ...Option) ([]order.Order, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	m, err := market.New[product.Product](s.QueueSizePerProducer)
	if err != nil {
		return nil, err
	}

	producers := make([]*Producer, 0, len(s.Producers))
	for i, pc := range s.Producers {
		entries := make([]CatalogEntry, 0, len(pc.Products))
		for _, e := range pc.Products {
			entries = append(entries, CatalogEntry{Product: catalog[e.Product], Quantity: e.Quantity, Pace: e.Pace})
		}
		producers = append(producers, NewProducer(m, nameOr(pc.Name, "prod", i), entries, pc.RepublishWaitTime, opts...))
	}

	printer := NewPrinter(out)
	consumers := make([]*Consumer, 0, len(s.Consumers))
	for i, cc := range s.Consumers {
		script := make([]Operation, 0, len(cc.Operations))
		for _, op := range cc.Operations {
			script = append(script, Operation{Kind: OpKind(op.Type), Product: catalog[op.Product], Quantity: op.Quantity})
		}
		consumers = append(consumers, NewConsumer(m, nameOr(cc.Name, "cons", i), script, cc.RetryWaitTime, printer, ledger, opts...))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pg errgroup.Group
	for _, p := range producers {
		pg.Go(func() error {
			err := p.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			// a producer that fails for any other reason would starve the consumers
			cancel()
			return err
		})
	}

	cg, cctx := errgroup.WithContext(ctx)
	orders := make([]order.Order, len(consumers))
	for i, c := range consumers {
		cg.Go(func() error {
			o, err := c.Run(cctx)
			orders[i] = o
			return err
		})
	}

	cerr := cg.Wait()
	cancel()
	perr := pg.Wait()
	if perr != nil {
		return nil, fmt.Errorf("producer: %w", perr)
	}
	if cerr != nil {
		return nil, cerr
	}
	return orders, nil
}

func nameOr(name, prefix string, i int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%s%d", prefix, i+1)
}
