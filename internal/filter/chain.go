package filter

// Chain runs filters in order and hands packets that pass all of them to
// the handler.
type Chain struct {
	filters []Filter
	handler func(p *Packet)
	current Filter
	chain   *Chain
}

func NewChain(handler func(p *Packet), filters []Filter) *Chain {
	allFilters := make([]Filter, len(filters))
	copy(allFilters, filters)
	chain := initChain(allFilters, handler)
	return &Chain{
		filters: allFilters,
		handler: handler,
		chain:   chain.chain,
		current: chain.current,
	}
}

func newChain(filters []Filter, handler func(p *Packet), current Filter, chain *Chain) *Chain {
	return &Chain{
		filters: filters,
		handler: handler,
		current: current,
		chain:   chain,
	}
}

func initChain(filters []Filter, handler func(p *Packet)) *Chain {
	chain := newChain(filters, handler, nil, nil)
	for i := len(filters) - 1; i >= 0; i-- {
		chain = newChain(filters, handler, filters[i], chain)
	}
	return chain
}

func (c *Chain) GetFilters() []Filter {
	return c.filters
}

func (c *Chain) Filter(p *Packet) {
	if c.current != nil && c.chain != nil {
		c.current.Filter(p, c.chain)
	} else {
		c.handler(p)
	}
}
