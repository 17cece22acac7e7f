package chain

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"

	"swapledger/internal/ledger"
)

// DecimalsFetcher loads the decimals of a tick from its source.
type DecimalsFetcher interface {
	TickDecimals(ctx context.Context, tick string) (uint8, error)
}

// DecimalsCache caches tick decimals. LP ticks are resolved locally.
type DecimalsCache struct {
	fetcher DecimalsFetcher
	data    *xsync.Map[string, uint8]
}

func NewDecimalsCache(fetcher DecimalsFetcher) *DecimalsCache {
	return &DecimalsCache{fetcher: fetcher, data: xsync.NewMap[string, uint8]()}
}

// Decimals returns the decimals of tick, fetching it on first use.
func (c *DecimalsCache) Decimals(ctx context.Context, tick string) (uint8, error) {
	if ledger.IsLpTick(tick) {
		return ledger.LpDecimals, nil
	}
	if d, ok := c.data.Load(tick); ok {
		return d, nil
	}
	if c.fetcher == nil {
		return 0, fmt.Errorf("no decimals source for tick %q", tick)
	}
	d, err := c.fetcher.TickDecimals(ctx, tick)
	if err != nil {
		return 0, err
	}
	c.data.Store(tick, d)
	return d, nil
}

// Set seeds the cache, e.g. from configuration.
func (c *DecimalsCache) Set(tick string, decimals uint8) {
	c.data.Store(tick, decimals)
}

func (c *DecimalsCache) Len() int {
	return c.data.Size()
}
