package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"swapledger/internal/chain"
	"swapledger/internal/ledger"
	"swapledger/internal/model"
)

// confirmations returns the number of blocks that confirm height.
func confirmations(best, height uint32) uint32 {
	if height == model.UnconfirmedHeight || best < height {
		return 0
	}
	return best - height + 1
}

// admits reports whether tier t may apply an event with conf confirmations.
func (c *Coordinator) admits(t Tier, conf uint32) bool {
	switch t {
	case Snapshot:
		return conf > c.cfg.InsertHeightNum
	case Confirmed:
		return conf > 0
	default:
		return true
	}
}

func (c *Coordinator) fetchPage(ctx context.Context, cursor uint64) (*chain.EventPage, error) {
	var page *chain.EventPage
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		page, err = c.source.FetchEvents(ctx, cursor, c.cfg.PageSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// checkPage verifies the page starts at cursor, has no gaps and never goes
// back in height.
func checkPage(cursor uint64, events []*model.OpEvent) error {
	var prevHeight uint32
	for i, ev := range events {
		want := cursor + uint64(i)
		if ev.Cursor != want {
			return &ConsistencyError{Cursor: want, Reason: fmt.Sprintf("got event cursor %d", ev.Cursor)}
		}
		if i > 0 && ev.Height < prevHeight {
			return &ConsistencyError{Cursor: ev.Cursor, Reason: fmt.Sprintf("height %d after %d", ev.Height, prevHeight)}
		}
		prevHeight = ev.Height
	}
	return nil
}

// move applies one page of events starting at cursor to the tiers in set,
// each under its own confirmation gate. A tier whose gate rejects an event
// stops for the rest of the page. It reports whether another page should be
// fetched for the same tiers.
func (c *Coordinator) move(ctx context.Context, set tierSet, cursor uint64) (bool, error) {
	page, err := c.fetchPage(ctx, cursor)
	if err != nil {
		return false, err
	}
	if err := checkPage(cursor, page.Events); err != nil {
		return false, err
	}

	var blocked, advanced [len(allTiers)]bool
	for _, ev := range page.Events {
		conf := confirmations(c.bestHeight, ev.Height)
		// Deeper tiers apply after shallower ones so the cursor order holds
		// even if a later apply fails.
		for i := len(allTiers) - 1; i >= 0; i-- {
			t := allTiers[i]
			if !set.has(t) || blocked[t] {
				continue
			}
			ts := c.tiers[t]
			cur := ts.ledger.Cursor()
			if int64(ev.Cursor) <= cur {
				continue
			}
			if int64(ev.Cursor) != cur+1 {
				return false, &ConsistencyError{
					Cursor: ev.Cursor,
					Reason: fmt.Sprintf("%s tier is at cursor %d", t, cur),
				}
			}
			if !c.admits(t, conf) {
				blocked[t] = true
				continue
			}
			if err := c.apply(t, ev); err != nil {
				return false, err
			}
			advanced[t] = true
		}
	}

	if advanced[Snapshot] || advanced[Confirmed] {
		c.dirtySC = true
	}
	if advanced[Confirmed] || advanced[Mempool] {
		c.dirtyCM = true
	}
	c.observeTiers()

	for _, t := range allTiers {
		if !advanced[t] {
			continue
		}
		ts := c.tiers[t]
		if t == Snapshot && ts.ledger.Cursor()-ts.collector.windowStart < c.cfg.SnapshotCheckpointInterval {
			continue
		}
		// Flush failures keep the collector and are retried on the next page.
		_ = c.flush(ctx, t)
	}

	if len(page.Events) < c.cfg.PageSize {
		return false, nil
	}
	for _, t := range allTiers {
		if set.has(t) && blocked[t] {
			return false, nil
		}
	}
	return true, nil
}

func (c *Coordinator) apply(t Tier, ev *model.OpEvent) error {
	ts := c.tiers[t]
	_, err := ts.ledger.Apply(ev, ts.collector.track(ev))
	if err == nil {
		c.metrics.EventsApplied.WithLabelValues(t.String(), ev.OpName).Inc()
		return nil
	}
	if ledger.IsFatal(err) {
		return fmt.Errorf("%s tier at cursor %d: %w", t, ev.Cursor, err)
	}

	c.metrics.EventsRejected.WithLabelValues(t.String(), string(ledger.CodeOf(err))).Inc()
	c.logger.Debug("event rejected",
		zap.String("tier", t.String()),
		zap.Uint64("cursor", ev.Cursor),
		zap.Uint32("height", ev.Height),
		zap.String("op", ev.OpName),
		zap.Error(err))
	return nil
}
