package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"swapledger/internal/amount"
	"swapledger/internal/chain"
	"swapledger/internal/ledger"
	"swapledger/internal/metrics"
	"swapledger/internal/model"
	"swapledger/internal/storage"
)

const (
	sequencer  = "bc1qsequencer"
	moduleAddr = "bc1qmodule"
	alice      = "bc1qalice"
)

// fakeSource serves an in-memory event list.
type fakeSource struct {
	events    []*model.OpEvent
	best      uint32
	fetchErr  error
	heightErr error
	panicMsg  string
	fetches   int
}

func (s *fakeSource) FetchEvents(_ context.Context, cursor uint64, size int) (*chain.EventPage, error) {
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	page := &chain.EventPage{Total: uint64(len(s.events))}
	for i := cursor; i < uint64(len(s.events)) && len(page.Events) < size; i++ {
		page.Events = append(page.Events, s.events[i])
	}
	return page, nil
}

func (s *fakeSource) BestHeight(context.Context) (uint32, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.heightErr != nil {
		return 0, s.heightErr
	}
	return s.best, nil
}

func (s *fakeSource) add(ev *model.OpEvent) {
	ev.Cursor = uint64(len(s.events))
	s.events = append(s.events, ev)
}

// recordingStore wraps a file store and can be told to fail.
type recordingStore struct {
	inner *storage.FileStore
	fail  error
	saved []*storage.Checkpoint
}

func newRecordingStore(t *testing.T) *recordingStore {
	return &recordingStore{inner: storage.NewFileStore(t.TempDir())}
}

func (s *recordingStore) SaveCheckpoint(ctx context.Context, cp *storage.Checkpoint) error {
	if s.fail != nil {
		return &storage.PersistenceError{Tier: cp.Tier, Err: s.fail}
	}
	s.saved = append(s.saved, cp)
	return s.inner.SaveCheckpoint(ctx, cp)
}

func (s *recordingStore) LoadCheckpoint(ctx context.Context, tier string) (*storage.Checkpoint, error) {
	return s.inner.LoadCheckpoint(ctx, tier)
}

func (s *recordingStore) lastFor(tier string) *storage.Checkpoint {
	for i := len(s.saved) - 1; i >= 0; i-- {
		if s.saved[i].Tier == tier {
			return s.saved[i]
		}
	}
	return nil
}

type fakeDecimals map[string]uint8

func (d fakeDecimals) Decimals(_ context.Context, tick string) (uint8, error) {
	v, ok := d[tick]
	if !ok {
		return 0, errors.New("unknown tick")
	}
	return v, nil
}

type recordingNotifier struct {
	events []ResetEvent
}

func (n *recordingNotifier) NotifyReset(_ context.Context, ev ResetEvent) {
	n.events = append(n.events, ev)
}

type harness struct {
	source   *fakeSource
	store    *recordingStore
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	coord    *Coordinator
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.PageSize == 0 {
		cfg.PageSize = 2
	}
	if cfg.InsertHeightNum == 0 {
		cfg.InsertHeightNum = 5
	}
	if cfg.SnapshotCheckpointInterval == 0 {
		cfg.SnapshotCheckpointInterval = 10
	}
	cfg.RetryBackoff = time.Millisecond

	h := &harness{
		source:   &fakeSource{best: 110},
		store:    newRecordingStore(t),
		notifier: &recordingNotifier{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	coord, err := NewCoordinator(cfg, Dependencies{
		Source:   h.source,
		Store:    h.store,
		Decimals: fakeDecimals{"ordi": 2, "sats": 0},
		Notifier: h.notifier,
		Metrics:  h.metrics,
	})
	require.NoError(t, err)
	h.coord = coord
	return h
}

func deployEvent() *model.OpEvent {
	return &model.OpEvent{
		Height:        100,
		Valid:         true,
		From:          sequencer,
		To:            moduleAddr,
		InscriptionID: "deploy-0",
		OpName:        string(model.OpDeploy),
		Content:       []byte(`{"gas_tick":"sats","sequencer":"bc1qsequencer","swap_fee_rate":"0.003"}`),
		Op:            &model.DeployOp{Sequencer: sequencer, GasTick: "sats", SwapFeeRate: "0.003"},
	}
}

func transferEvent(height uint32, tick string, v uint64) *model.OpEvent {
	return &model.OpEvent{
		Height:        height,
		Valid:         true,
		From:          alice,
		To:            moduleAddr,
		InscriptionID: fmt.Sprintf("transfer-%s-%d-%d", tick, height, v),
		OpName:        string(model.OpTransfer),
		Content:       []byte(fmt.Sprintf(`{"amount":"%d","tick":"%s"}`, v, tick)),
		Op:            &model.TransferOp{Tick: tick, Amount: amount.FromUint64(v)},
	}
}

// seedTiers loads a deploy, a deeply confirmed deposit, a shallow deposit
// and a mempool deposit.
func (h *harness) seedTiers() {
	h.source.add(deployEvent())
	h.source.add(transferEvent(100, "ordi", 100))
	h.source.add(transferEvent(108, "ordi", 50))
	h.source.add(transferEvent(model.UnconfirmedHeight, "ordi", 7))
}

func swapBalance(c *Coordinator, t Tier, tick string) uint64 {
	v := c.Ledger(t).Balance(ledger.Swap, tick, alice)
	return v.Uint64()
}

func requireOrdered(t *testing.T, c *Coordinator) {
	t.Helper()
	require.LessOrEqual(t, c.Cursor(Snapshot), c.Cursor(Confirmed))
	require.LessOrEqual(t, c.Cursor(Confirmed), c.Cursor(Mempool))
}
