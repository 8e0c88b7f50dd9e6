package market

// line is a unit in a cart together with the producer it came from.
type line[P comparable] struct {
	product  P
	producer ProducerID
}

// cart is owned by exactly one goroutine and therefore has no lock.
type cart[P comparable] struct {
	lines []line[P]
}

func (c *cart[P]) push(p P, from ProducerID) {
	c.lines = append(c.lines, line[P]{product: p, producer: from})
}

// pop removes the first line holding p and returns its origin.
func (c *cart[P]) pop(p P) (ProducerID, bool) {
	for i, l := range c.lines {
		if l.product == p {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return l.producer, true
		}
	}
	return 0, false
}

func (c *cart[P]) products() []P {
	out := make([]P, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, l.product)
	}
	return out
}
