package indexer

import (
	"swapledger/internal/ledger"
	"swapledger/internal/model"
	"swapledger/internal/storage"
)

// collector gathers the items a tier touched since its last checkpoint,
// each annotated with the latest event that changed it.
type collector struct {
	windowStart int64
	items       map[ledger.TouchedItem]storage.Annotation
}

func newCollector(windowStart int64) *collector {
	return &collector{
		windowStart: windowStart,
		items:       make(map[ledger.TouchedItem]storage.Annotation),
	}
}

// track returns a TouchFunc that records items touched by ev.
func (c *collector) track(ev *model.OpEvent) ledger.TouchFunc {
	ann := storage.Annotation{
		Cursor:       int64(ev.Cursor),
		Height:       ev.Height,
		CommitParent: ev.CommitParent(),
		OpType:       ev.OpName,
	}
	return func(item ledger.TouchedItem) {
		c.items[item] = ann
	}
}

func (c *collector) len() int {
	return len(c.items)
}

// reset empties the collector and moves its window start to cursor.
func (c *collector) reset(cursor int64) {
	c.windowStart = cursor
	c.items = make(map[ledger.TouchedItem]storage.Annotation)
}
