package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"swapledger/internal/amount"
	"swapledger/internal/model"
)

const (
	sequencer  = "bc1qsequencer"
	moduleAddr = "bc1qmodule"
	alice      = "bc1qalice"
	bob        = "bc1qbob"
	gasTo      = "bc1qgas"
	feeTo      = "bc1qfee"
)

func amt(v uint64) amount.Amount {
	return amount.FromUint64(v)
}

func deployOp() *model.DeployOp {
	return &model.DeployOp{
		Sequencer:   sequencer,
		GasTo:       gasTo,
		GasTick:     "X",
		SwapFeeRate: "0.003",
	}
}

// replay drives a ledger with consecutive cursors and a valid commit chain.
type replay struct {
	t      *testing.T
	l      *Ledger
	next   uint64
	height uint32
}

func newReplay(t *testing.T, op *model.DeployOp, opts ...Option) *replay {
	t.Helper()
	r := &replay{t: t, l: New(opts...), height: 100}
	_, err := r.apply(&model.OpEvent{Valid: true, From: sequencer, To: moduleAddr, OpName: "deploy", Op: op})
	require.NoError(t, err)
	return r
}

func (r *replay) apply(ev *model.OpEvent) ([]model.CallResult, error) {
	ev.Cursor = r.next
	if ev.Height == 0 {
		ev.Height = r.height
	}
	if ev.InscriptionID == "" {
		ev.InscriptionID = fmt.Sprintf("insc-%d", r.next)
	}
	r.next++
	return r.l.Apply(ev, nil)
}

func (r *replay) deposit(addr, tick string, v uint64) {
	r.t.Helper()
	_, err := r.apply(&model.OpEvent{
		Valid: true, From: addr, To: moduleAddr, OpName: "transfer",
		Op: &model.TransferOp{Tick: tick, Amount: amt(v)},
	})
	require.NoError(r.t, err)
}

func (r *replay) commit(calls ...model.FuncCall) []model.CallResult {
	r.t.Helper()
	results, err := r.apply(&model.OpEvent{
		Valid: true, From: sequencer, To: moduleAddr, OpName: "commit",
		Op: &model.CommitOp{Parent: r.l.LastCommitID(), Calls: calls},
	})
	require.NoError(r.t, err)
	require.Len(r.t, results, len(calls))
	return results
}

func (r *replay) mustCommit(calls ...model.FuncCall) []model.CallResult {
	r.t.Helper()
	results := r.commit(calls...)
	for _, res := range results {
		require.True(r.t, res.Success, "call %s failed: %s", res.Func, res.Error)
	}
	return results
}

func meta(addr string) model.CallMeta {
	return model.CallMeta{ID: "call", Address: addr}
}

func deployPool(addr, t0, t1 string) model.DeployPoolCall {
	return model.DeployPoolCall{CallMeta: meta(addr), Tick0: t0, Tick1: t1}
}

func addLiq(addr, t0, t1 string, a0, a1 uint64) model.AddLiqCall {
	return model.AddLiqCall{CallMeta: meta(addr), Tick0: t0, Tick1: t1, Amount0: amt(a0), Amount1: amt(a1)}
}

func removeLiq(addr, t0, t1 string, lp amount.Amount) model.RemoveLiqCall {
	return model.RemoveLiqCall{CallMeta: meta(addr), Tick0: t0, Tick1: t1, Lp: lp}
}

func swapIn(addr, tickIn, tickOut string, v uint64) model.SwapCall {
	return model.SwapCall{CallMeta: meta(addr), TickIn: tickIn, TickOut: tickOut, Amount: amt(v), ExactType: model.ExactIn}
}

func swapOut(addr, tickIn, tickOut string, v uint64) model.SwapCall {
	return model.SwapCall{CallMeta: meta(addr), TickIn: tickIn, TickOut: tickOut, Amount: amt(v), ExactType: model.ExactOut}
}

func balance(l *Ledger, class AssetClass, tick, addr string) uint64 {
	v := l.Balance(class, tick, addr)
	return v.Uint64()
}
