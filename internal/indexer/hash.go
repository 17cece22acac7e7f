package indexer

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"swapledger/internal/model"
)

// EmptyHash is the content hash of an empty cursor window.
var EmptyHash = common.Hash{}

// ContentHash refetches the count events starting at start and hashes them.
// It measures whether the source's view of already-seen history changed.
func ContentHash(ctx context.Context, source EventSource, start uint64, count int64, pageSize int) (common.Hash, error) {
	if count <= 0 {
		return EmptyHash, nil
	}
	ranges, err := SplitRange(start, count, pageSize)
	if err != nil {
		return EmptyHash, err
	}

	h := crypto.NewKeccakState()
	var buf []byte
	for _, r := range ranges {
		page, err := source.FetchEvents(ctx, r.From, r.Size())
		if err != nil {
			return EmptyHash, fmt.Errorf("fetch events %d-%d: %w", r.From, r.To, err)
		}
		for _, ev := range page.Events {
			if ev.Cursor < r.From || ev.Cursor > r.To {
				continue
			}
			buf = appendEvent(buf[:0], ev)
			h.Write(buf)
		}
	}
	return common.BytesToHash(h.Sum(nil)), nil
}

func appendEvent(b []byte, ev *model.OpEvent) []byte {
	b = binary.BigEndian.AppendUint64(b, ev.Cursor)
	b = binary.BigEndian.AppendUint32(b, ev.Height)
	if ev.Valid {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = binary.BigEndian.AppendUint64(b, uint64(ev.InscriptionNumber))
	b = binary.BigEndian.AppendUint64(b, uint64(ev.Blocktime))
	for _, s := range []string{ev.From, ev.To, ev.InscriptionID, ev.TxID, ev.OpName} {
		b = appendBytes(b, []byte(s))
	}
	b = appendBytes(b, ev.Content)

	keys := make([]string, 0, len(ev.Data))
	for k := range ev.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b = binary.BigEndian.AppendUint32(b, uint32(len(keys)))
	for _, k := range keys {
		b = appendBytes(b, []byte(k))
		b = appendBytes(b, []byte(ev.Data[k]))
	}
	return b
}

func appendBytes(b, v []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(v)))
	return append(b, v...)
}

// window returns the cursors after the lower tier's cursor up to and
// including the upper tier's cursor.
func (c *Coordinator) window(lower, upper Tier) (uint64, int64) {
	lo := c.tiers[lower].ledger.Cursor()
	hi := c.tiers[upper].ledger.Cursor()
	return uint64(lo + 1), hi - lo
}

func (c *Coordinator) windowHash(ctx context.Context, lower, upper Tier) (common.Hash, int64, error) {
	start, size := c.window(lower, upper)
	var h common.Hash
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		h, err = ContentHash(ctx, c.source, start, size, c.cfg.PageSize)
		return err
	})
	return h, size, err
}

// hasReorg reports whether confirmed history between the snapshot and
// confirmed tiers changed. A changed hash is trusted only when the window
// has the same size as at the previous check.
func (c *Coordinator) hasReorg(ctx context.Context) (bool, error) {
	h, size, err := c.windowHash(ctx, Snapshot, Confirmed)
	if err != nil {
		return false, err
	}
	reorg := h != c.hashSC && size == c.prevSizeReorg
	c.prevSizeReorg = size
	return reorg, nil
}

// hasUnconfirmedDiscord is the same check between the confirmed and mempool
// tiers.
func (c *Coordinator) hasUnconfirmedDiscord(ctx context.Context) (bool, error) {
	h, size, err := c.windowHash(ctx, Confirmed, Mempool)
	if err != nil {
		return false, err
	}
	discord := h != c.hashCM && size == c.prevSizeDiscord
	c.prevSizeDiscord = size
	return discord, nil
}

// refreshHashes recomputes the cached window hashes the last moves made
// stale. A hash that cannot be computed is cleared along with its size so
// the next check cannot report against it.
func (c *Coordinator) refreshHashes(ctx context.Context) error {
	var firstErr error
	if c.dirtySC {
		c.dirtySC = false
		h, _, err := c.windowHash(ctx, Snapshot, Confirmed)
		if err != nil {
			h, c.prevSizeReorg = EmptyHash, 0
			firstErr = err
		}
		c.hashSC = h
	}
	if c.dirtyCM {
		c.dirtyCM = false
		h, _, err := c.windowHash(ctx, Confirmed, Mempool)
		if err != nil {
			h, c.prevSizeDiscord = EmptyHash, 0
			if firstErr == nil {
				firstErr = err
			}
		}
		c.hashCM = h
	}
	return firstErr
}
