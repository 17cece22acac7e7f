package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapledger/internal/amount"
	"swapledger/internal/model"
)

func TestScenarioDeployPoolThenAddLiquidity(t *testing.T) {
	st := NewState()
	st.Module = deployOp()
	st.ModuleAddress = moduleAddr
	st.Cursor = 0
	st.Balances[BalanceKey{Class: Swap, Tick: "ordi", Address: alice}] = amt(5000)
	st.Balances[BalanceKey{Class: Swap, Tick: "sats", Address: alice}] = amt(5000)
	l, err := FromState(st)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), l.FeeRate())

	_, err = l.Apply(&model.OpEvent{
		Cursor: 1, Height: 100, Valid: true, From: sequencer, InscriptionID: "c1", OpName: "commit",
		Op: &model.CommitOp{Calls: []model.FuncCall{deployPool(alice, "sats", "ordi")}},
	}, nil)
	require.NoError(t, err)

	pair := EncodePair("ordi", "sats")
	assert.Equal(t, "ordi/sats", pair)
	state, ok := l.PoolState(pair)
	require.True(t, ok)
	assert.Equal(t, &model.PoolState{Reserve0: "0", Reserve1: "0", LpSupply: "0"}, state)

	results, err := l.Apply(&model.OpEvent{
		Cursor: 2, Height: 100, Valid: true, From: sequencer, InscriptionID: "c2", OpName: "commit",
		Op: &model.CommitOp{Parent: "c1", Calls: []model.FuncCall{addLiq(alice, "ordi", "sats", 1000, 1000)}},
	}, nil)
	require.NoError(t, err)
	require.True(t, results[0].Success, results[0].Error)

	r0, r1 := l.Reserves(pair)
	assert.Equal(t, uint64(1000), r0.Uint64())
	assert.Equal(t, uint64(1000), r1.Uint64())
	supply := l.Supply(pair)
	assert.False(t, supply.IsZero())
	assert.Equal(t, uint64(1000), balance(l, Swap, pair, alice))
	assert.Equal(t, int64(2), l.Cursor())
}

func TestAddRemoveLiquidityRoundTrip(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 1000)
	r.deposit(alice, "sats", 1000)
	r.mustCommit(deployPool(alice, "ordi", "sats"))
	res := r.mustCommit(addLiq(alice, "ordi", "sats", 1000, 1000))

	lp := amount.MustParse(res[0].Output["lp"])
	res = r.mustCommit(removeLiq(alice, "ordi", "sats", lp))

	out0 := amount.MustParse(res[0].Output["amount0"])
	out1 := amount.MustParse(res[0].Output["amount1"])
	assert.LessOrEqual(t, out0.Uint64(), uint64(1000))
	assert.LessOrEqual(t, out1.Uint64(), uint64(1000))
	assert.Equal(t, uint64(1000), balance(r.l, Swap, "ordi", alice))
	assert.Equal(t, uint64(1000), balance(r.l, Swap, "sats", alice))
	supply := r.l.Supply("ordi/sats")
	assert.True(t, supply.IsZero())
}

func TestSwapZeroAmountIsInvalidAmount(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 1000)
	r.deposit(alice, "sats", 1000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 500, 500))

	var res model.CallResult
	err := r.l.swap(swapIn(alice, "ordi", "sats", 0), &res)
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
	assert.Equal(t, CodeInvalidAmount, CodeOf(err))

	results := r.commit(swapIn(alice, "ordi", "sats", 0))
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, string(CodeInvalidAmount))
}

func TestSwapExactInAndExactOut(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 2000)
	r.deposit(alice, "sats", 2000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 1000, 1000))

	res := r.mustCommit(swapIn(alice, "ordi", "sats", 100))
	assert.Equal(t, "100", res[0].Output["amount_in"])
	assert.Equal(t, "90", res[0].Output["amount_out"])
	assert.Equal(t, "1000", res[0].PreState.Reserve0)
	assert.Equal(t, "1100", res[0].PostState.Reserve0)
	assert.Equal(t, "910", res[0].PostState.Reserve1)

	r2 := newReplay(t, deployOp())
	r2.deposit(alice, "ordi", 2000)
	r2.deposit(alice, "sats", 2000)
	r2.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 1000, 1000))
	res = r2.mustCommit(swapOut(alice, "ordi", "sats", 90))
	assert.Equal(t, "100", res[0].Output["amount_in"])
	assert.Equal(t, "90", res[0].Output["amount_out"])

	res = r2.commit(swapOut(alice, "ordi", "sats", 910))
	assert.False(t, res[0].Success)
	assert.Contains(t, res[0].Error, string(CodeInsufficientLiquidity))
}

func TestSwapFeeOverride(t *testing.T) {
	r := newReplay(t, deployOp(), WithSwapFeeRate(0))
	assert.Equal(t, uint64(0), r.l.FeeRate())
	r.deposit(alice, "ordi", 2000)
	r.deposit(alice, "sats", 2000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 1000, 1000))
	res := r.mustCommit(swapIn(alice, "ordi", "sats", 100))
	assert.Equal(t, "90", res[0].Output["amount_out"])

	clone := r.l.Clone()
	assert.Equal(t, uint64(0), clone.FeeRate())
}

func TestDuplicateDeployIsFatal(t *testing.T) {
	r := newReplay(t, deployOp())
	before := r.l.Cursor()
	_, err := r.apply(&model.OpEvent{Valid: true, From: sequencer, OpName: "deploy", Op: deployOp()})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, CodeDuplicateDeploy, CodeOf(err))
	assert.Equal(t, before, r.l.Cursor())
}

func TestEventBeforeDeployIsFatal(t *testing.T) {
	l := New()
	_, err := l.Apply(&model.OpEvent{Cursor: 0, Valid: true, OpName: "approve", Op: &model.ApproveOp{Tick: "ordi", Amount: amt(1)}}, nil)
	assert.True(t, IsFatal(err))
	assert.Equal(t, int64(-1), l.Cursor())
}

func TestCursorRegressionIsFatal(t *testing.T) {
	r := newReplay(t, deployOp())
	_, err := r.l.Apply(&model.OpEvent{Cursor: 0, Valid: true, OpName: "deploy", Op: deployOp()}, nil)
	assert.Equal(t, CodeCursorRegression, CodeOf(err))
}

func TestInvalidFlagDoesNotMutate(t *testing.T) {
	r := newReplay(t, deployOp())
	_, err := r.apply(&model.OpEvent{
		Valid: false, From: alice, To: moduleAddr, OpName: "transfer",
		Op: &model.TransferOp{Tick: "ordi", Amount: amt(10)},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance(r.l, Swap, "ordi", alice))
	assert.Equal(t, int64(1), r.l.Cursor())
}

func TestDecodeErrorIsRejectedButConsumed(t *testing.T) {
	r := newReplay(t, deployOp())
	_, err := r.apply(&model.OpEvent{Valid: true, OpName: "mint", DecodeErr: &model.DecodeError{Reason: "unknown op"}})
	assert.True(t, IsInvalid(err))
	assert.Equal(t, CodeMalformed, CodeOf(err))
	assert.Equal(t, int64(1), r.l.Cursor())
}

func TestTransferToOtherAddressIsIgnored(t *testing.T) {
	r := newReplay(t, deployOp())
	_, err := r.apply(&model.OpEvent{
		Valid: true, From: alice, To: bob, OpName: "transfer",
		Op: &model.TransferOp{Tick: "ordi", Amount: amt(10)},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance(r.l, Swap, "ordi", alice))
}

func TestApprovalFlows(t *testing.T) {
	r := newReplay(t, deployOp())
	_, err := r.apply(&model.OpEvent{Valid: true, From: alice, OpName: "approve", Op: &model.ApproveOp{Tick: "ordi", Amount: amt(50)}})
	require.NoError(t, err)
	_, err = r.apply(&model.OpEvent{Valid: true, From: alice, OpName: "conditional-approve",
		Op: &model.ConditionalApproveOp{Tick: "ordi", Amount: amt(30), TransferRef: "ref"}})
	require.NoError(t, err)

	r.mustCommit(model.DecreaseApprovalCall{CallMeta: meta(alice), Tick: "ordi", Amount: amt(20)})
	assert.Equal(t, uint64(30), balance(r.l, Approve, "ordi", alice))

	_, err = r.apply(&model.OpEvent{Valid: true, From: alice, OpName: "withdraw", Op: &model.WithdrawOp{Tick: "ordi", Amount: amt(31)}})
	assert.Equal(t, CodeInsufficientBalance, CodeOf(err))
	assert.Equal(t, uint64(30), balance(r.l, ConditionalApprove, "ordi", alice))

	_, err = r.apply(&model.OpEvent{Valid: true, From: alice, OpName: "withdraw", Op: &model.WithdrawOp{Tick: "ordi", Amount: amt(30)}})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance(r.l, ConditionalApprove, "ordi", alice))
}

func TestCommitRejections(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 100)

	_, err := r.apply(&model.OpEvent{
		Valid: true, From: alice, OpName: "commit",
		Op: &model.CommitOp{Calls: []model.FuncCall{model.SendCall{CallMeta: meta(alice), To: bob, Tick: "ordi", Amount: amt(1)}}},
	})
	assert.Equal(t, CodeUnauthorized, CodeOf(err))

	_, err = r.apply(&model.OpEvent{
		Valid: true, From: sequencer, OpName: "commit",
		Op: &model.CommitOp{Parent: "nope", Calls: []model.FuncCall{model.SendCall{CallMeta: meta(alice), To: bob, Tick: "ordi", Amount: amt(1)}}},
	})
	assert.Equal(t, CodeCommitParentMismatch, CodeOf(err))
	assert.Equal(t, uint64(100), balance(r.l, Swap, "ordi", alice))
	assert.Equal(t, int64(3), r.l.Cursor())
}

func TestFailedCallRollsBackAlone(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 100)
	r.deposit(alice, "X", 10)

	results, err := r.apply(&model.OpEvent{
		Valid: true, From: sequencer, OpName: "commit",
		Op: &model.CommitOp{GasPrice: amt(2), Calls: []model.FuncCall{
			model.SendCall{CallMeta: meta(alice), To: bob, Tick: "ordi", Amount: amt(500)},
			model.SendCall{CallMeta: meta(alice), To: bob, Tick: "ordi", Amount: amt(40)},
		}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Equal(t, "0", results[0].Gas)
	assert.True(t, results[1].Success)
	assert.Equal(t, "2", results[1].Gas)

	assert.Equal(t, uint64(60), balance(r.l, Swap, "ordi", alice))
	assert.Equal(t, uint64(40), balance(r.l, Swap, "ordi", bob))
	assert.Equal(t, uint64(8), balance(r.l, Swap, "X", alice))
	assert.Equal(t, uint64(2), balance(r.l, Swap, "X", gasTo))
	assert.Equal(t, "insc-3", r.l.LastCommitID())
}

func TestSendRejectsLpTick(t *testing.T) {
	r := newReplay(t, deployOp())
	res := r.commit(model.SendCall{CallMeta: meta(alice), To: bob, Tick: "ordi/sats", Amount: amt(1)})
	assert.False(t, res[0].Success)
	assert.Contains(t, res[0].Error, string(CodeInvalidPair))
}

func TestSendLp(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 1000)
	r.deposit(alice, "sats", 1000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 400, 900))
	r.mustCommit(model.SendLpCall{CallMeta: meta(alice), To: bob, Tick0: "sats", Tick1: "ordi", Amount: amt(100)})
	assert.Equal(t, uint64(500), balance(r.l, Swap, "ordi/sats", alice))
	assert.Equal(t, uint64(100), balance(r.l, Swap, "ordi/sats", bob))
}

func TestDeployPoolIdempotentOnlyWhileEmpty(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 1000)
	r.deposit(alice, "sats", 1000)
	r.mustCommit(deployPool(alice, "ordi", "sats"))
	r.mustCommit(deployPool(bob, "sats", "ordi"))
	r.mustCommit(addLiq(alice, "sats", "ordi", 100, 100))

	res := r.commit(deployPool(alice, "ordi", "sats"))
	assert.False(t, res[0].Success)
	assert.Contains(t, res[0].Error, string(CodePoolExisted))

	res = r.commit(deployPool(alice, "ordi/sats", "btc"))
	assert.False(t, res[0].Success)
}

func TestAddLiquidityUsesOptimalRatio(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 10000)
	r.deposit(alice, "sats", 10000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 1000, 4000))

	res := r.mustCommit(addLiq(alice, "ordi", "sats", 500, 500))
	assert.Equal(t, "125", res[0].Output["amount0"])
	assert.Equal(t, "500", res[0].Output["amount1"])
	assert.Equal(t, "250", res[0].Output["lp"])
}

func TestProtocolFeeMintsToFeeTo(t *testing.T) {
	op := deployOp()
	op.FeeTo = feeTo
	r := newReplay(t, op)
	r.deposit(alice, "ordi", 1000000)
	r.deposit(alice, "sats", 1000000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 100000, 100000))

	k, ok := r.l.KLast("ordi/sats")
	require.True(t, ok)
	assert.Equal(t, "10000000000", amount.String(k))

	for i := 0; i < 10; i++ {
		r.mustCommit(swapIn(alice, "ordi", "sats", 20000), swapIn(alice, "sats", "ordi", 20000))
	}
	assert.Equal(t, uint64(0), balance(r.l, Swap, "ordi/sats", feeTo))

	r.mustCommit(addLiq(alice, "ordi", "sats", 10, 10))
	minted := balance(r.l, Swap, "ordi/sats", feeTo)
	assert.Greater(t, minted, uint64(0))

	supply := r.l.Supply("ordi/sats")
	assert.Equal(t, balance(r.l, Swap, "ordi/sats", alice)+minted, supply.Uint64())

	r0, r1 := r.l.Reserves("ordi/sats")
	want, _ := amount.Mul(r0, r1)
	k, _ = r.l.KLast("ordi/sats")
	assert.True(t, k.Eq(&want))
}

func TestKLastStaysZeroWithoutFeeTo(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 1000)
	r.deposit(alice, "sats", 1000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 1000, 1000))
	k, ok := r.l.KLast("ordi/sats")
	require.True(t, ok)
	assert.True(t, k.IsZero())
}

func TestNotifyReceivesTouchedItems(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 1000)
	r.deposit(alice, "sats", 1000)

	var touched []TouchedItem
	_, err := r.l.Apply(&model.OpEvent{
		Cursor: r.next, Valid: true, From: sequencer, OpName: "commit",
		Op: &model.CommitOp{Calls: []model.FuncCall{
			deployPool(alice, "ordi", "sats"),
			addLiq(alice, "ordi", "sats", 100, 100),
			model.SendCall{CallMeta: meta(alice), To: bob, Tick: "ordi", Amount: amt(5000)},
		}},
	}, func(item TouchedItem) { touched = append(touched, item) })
	require.NoError(t, err)

	kinds := map[TouchKind]bool{}
	for _, item := range touched {
		kinds[item.Kind] = true
		assert.NotEqual(t, bob, item.Address, "rolled back call must not be reported")
	}
	assert.True(t, kinds[TouchBalance])
	assert.True(t, kinds[TouchKLast])
	assert.True(t, kinds[TouchSupply])
	assert.Contains(t, touched, TouchedItem{Kind: TouchBalance, Class: Swap, Tick: "ordi/sats", Address: alice})
}

func TestCloneIsIndependent(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 100)

	clone := r.l.Clone()
	r.deposit(alice, "ordi", 50)
	assert.Equal(t, uint64(150), balance(r.l, Swap, "ordi", alice))
	assert.Equal(t, uint64(100), balance(clone, Swap, "ordi", alice))
	assert.Equal(t, int64(1), clone.Cursor())

	_, err := clone.Apply(&model.OpEvent{Cursor: 2, Valid: true, From: bob, To: moduleAddr, OpName: "transfer",
		Op: &model.TransferOp{Tick: "ordi", Amount: amt(7)}}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance(r.l, Swap, "ordi", bob))
	assert.Equal(t, uint64(7), balance(clone, Swap, "ordi", bob))
}

func TestDumpFromStateRoundTrip(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 1000)
	r.deposit(alice, "sats", 1000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 300, 600))

	dump := r.l.Dump()
	restored, err := FromState(dump)
	require.NoError(t, err)
	assert.Equal(t, dump, restored.Dump())
	assert.Equal(t, r.l.FeeRate(), restored.FeeRate())

	_, err = FromState(&State{Cursor: 4})
	assert.Error(t, err)
}
