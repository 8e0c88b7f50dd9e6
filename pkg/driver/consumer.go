package driver

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"marketplace/pkg/market"
	"marketplace/pkg/order"
	"marketplace/pkg/otel"
	"marketplace/pkg/product"
)

// OpKind is the kind of a scripted cart operation.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpRemove OpKind = "remove"
)

// Operation adds or removes Quantity units of Product.
type Operation struct {
	Kind     OpKind
	Product  product.Product
	Quantity int
}

// Printer writes placed orders. It is only called while the marketplace's
// print lock is held.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Order writes one "<buyer> bought <product>" line per unit.
func (p *Printer) Order(buyer string, items []product.Product) error {
	for _, it := range items {
		if _, err := fmt.Fprintf(p.w, "%s bought %s\n", buyer, it); err != nil {
			return err
		}
	}
	return nil
}

// Consumer runs a script of cart operations once and places the order.
type Consumer struct {
	name       string
	cart       market.CartID
	market     Market
	script     []Operation
	retryDelay time.Duration
	printer    *Printer
	ledger     order.Repository
	opts       options
}

// NewConsumer creates the consumer's cart in m. ledger may be nil.
func NewConsumer(m Market, name string, script []Operation, retryDelay time.Duration,
	printer *Printer, ledger order.Repository, opts ...Option) *Consumer {
	c := &Consumer{
		name:       name,
		cart:       m.NewCart(),
		market:     m,
		script:     script,
		retryDelay: retryDelay,
		printer:    printer,
		ledger:     ledger,
		opts:       buildOptions(opts),
	}
	c.opts.log = c.opts.log.With("consumer", name, "cart_id", int(c.cart))
	return c
}

// Cart returns the consumer's cart id.
func (c *Consumer) Cart() market.CartID {
	return c.cart
}

// Run executes the script, then checks out. Adds are retried until they
// succeed; removes of units not in the cart are ignored.
func (c *Consumer) Run(ctx context.Context) (order.Order, error) {
	ctx, span := otel.AddSpan(ctx, "consumer.run",
		attribute.String("consumer", c.name), attribute.Int("cart_id", int(c.cart)))
	defer span.End()

	for _, op := range c.script {
		switch op.Kind {
		case OpAdd:
			for i := 0; i < op.Quantity; i++ {
				if err := c.add(ctx, op.Product); err != nil {
					return order.Order{}, fmt.Errorf("%s: add %s: %w", c.name, op.Product, err)
				}
			}
		case OpRemove:
			for i := 0; i < op.Quantity; i++ {
				ok, err := c.market.RemoveFromCart(c.cart, op.Product)
				if err != nil {
					return order.Order{}, fmt.Errorf("%s: remove %s: %w", c.name, op.Product, err)
				}
				c.opts.metrics.ObserveRemove(ok)
			}
		default:
			return order.Order{}, fmt.Errorf("%s: unknown operation %q", c.name, op.Kind)
		}
	}
	return c.checkout(ctx)
}

func (c *Consumer) add(ctx context.Context, item product.Product) error {
	return retry(ctx, c.retryDelay, func() (bool, error) {
		ok, err := c.market.AddToCart(c.cart, item)
		if err == nil {
			c.opts.metrics.ObserveAdd(ok)
		}
		return ok, err
	}, func(d time.Duration) {
		c.opts.log.Debug(ctx, "product unavailable, retrying", "product", item.String(), "delay", d)
	})
}

func (c *Consumer) checkout(ctx context.Context) (order.Order, error) {
	ctx, span := otel.AddSpan(ctx, "consumer.checkout")
	defer span.End()

	var (
		placed   []product.Product
		printErr error
	)
	err := c.market.Checkout(c.cart, func(items []product.Product) {
		placed = items
		if c.printer != nil {
			printErr = c.printer.Order(c.name, items)
		}
	})
	if err != nil {
		return order.Order{}, fmt.Errorf("%s: checkout: %w", c.name, err)
	}
	if printErr != nil {
		return order.Order{}, fmt.Errorf("%s: print order: %w", c.name, printErr)
	}

	names := make([]string, 0, len(placed))
	for _, p := range placed {
		names = append(names, p.String())
	}
	o := order.New(c.name, int(c.cart), names)
	if c.ledger != nil {
		if err := c.ledger.Create(ctx, o); err != nil {
			return order.Order{}, fmt.Errorf("%s: record order: %w", c.name, err)
		}
	}
	c.opts.metrics.ObserveOrder(len(placed))
	c.opts.log.Info(ctx, "order placed", "order_id", o.ID, "items", len(placed))
	return o, nil
}
