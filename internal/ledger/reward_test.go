package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapledger/internal/model"
)

func rewardDeploy() *model.DeployOp {
	op := deployOp()
	op.RewardTick = "rwd"
	op.RewardPerBlock = amt(10)
	return op
}

func lockCall(addr string, v uint64) model.LockCall {
	return model.LockCall{CallMeta: meta(addr), Tick0: "ordi", Tick1: "sats", Amount: amt(v)}
}

func unlockCall(addr string, v uint64) model.UnlockCall {
	return model.UnlockCall{CallMeta: meta(addr), Tick0: "ordi", Tick1: "sats", Amount: amt(v)}
}

func claimCall(addr string) model.ClaimCall {
	return model.ClaimCall{CallMeta: meta(addr), Tick0: "ordi", Tick1: "sats"}
}

func TestRewardAccrualAndClaim(t *testing.T) {
	r := newReplay(t, rewardDeploy())
	r.deposit(alice, "ordi", 1000)
	r.deposit(alice, "sats", 1000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 1000, 1000))
	r.mustCommit(lockCall(alice, 400))

	assert.Equal(t, uint64(600), balance(r.l, Swap, "ordi/sats", alice))
	assert.Equal(t, uint64(400), balance(r.l, Lock, "ordi/sats", alice))
	acc, ok := r.l.RewardPool("ordi/sats")
	require.True(t, ok)
	assert.Equal(t, uint64(100), uint64(acc.LastRewardHeight))
	assert.Equal(t, uint64(400), acc.TotalLocked.Uint64())

	r.height = 110
	res := r.mustCommit(claimCall(alice))
	assert.Equal(t, "100", res[0].Output["amount"])
	assert.Equal(t, uint64(100), balance(r.l, Swap, "rwd", alice))

	user, ok := r.l.RewardUser("ordi/sats", alice)
	require.True(t, ok)
	assert.True(t, user.Unclaimed.IsZero())
	assert.Equal(t, uint64(100), user.RewardDebt.Uint64())

	res = r.commit(claimCall(alice))
	assert.False(t, res[0].Success)
	assert.Contains(t, res[0].Error, string(CodeNothingToClaim))
}

func TestRewardIgnoresUnconfirmedHeights(t *testing.T) {
	r := newReplay(t, rewardDeploy())
	r.deposit(alice, "ordi", 1000)
	r.deposit(alice, "sats", 1000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 1000, 1000), lockCall(alice, 1000))

	r.height = model.UnconfirmedHeight
	r.mustCommit(unlockCall(alice, 500))
	acc, _ := r.l.RewardPool("ordi/sats")
	assert.Equal(t, uint32(100), acc.LastRewardHeight)
	assert.True(t, acc.AccPerShare.IsZero())

	r.height = 104
	r.mustCommit(unlockCall(alice, 500))
	user, _ := r.l.RewardUser("ordi/sats", alice)
	assert.Equal(t, uint64(40), user.Unclaimed.Uint64())
	assert.True(t, user.Amount.IsZero())
	assert.Equal(t, uint64(1000), balance(r.l, Swap, "ordi/sats", alice))
	assert.Equal(t, uint64(0), balance(r.l, Lock, "ordi/sats", alice))
}

func TestRewardSplitsBetweenStakers(t *testing.T) {
	r := newReplay(t, rewardDeploy())
	r.deposit(alice, "ordi", 1000)
	r.deposit(alice, "sats", 1000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 1000, 1000))
	r.mustCommit(model.SendLpCall{CallMeta: meta(alice), To: bob, Tick0: "ordi", Tick1: "sats", Amount: amt(500)})
	r.mustCommit(lockCall(alice, 500), lockCall(bob, 500))

	r.height = 120
	r.mustCommit(claimCall(alice), claimCall(bob))
	assert.Equal(t, uint64(100), balance(r.l, Swap, "rwd", alice))
	assert.Equal(t, uint64(100), balance(r.l, Swap, "rwd", bob))
}

func TestSettleRejectsNegativePending(t *testing.T) {
	r := newReplay(t, rewardDeploy())
	r.l.rewardPools.Set("ordi/sats", RewardAcc{})
	r.l.rewardUsers.Set(RewardUserKey{Pair: "ordi/sats", Address: alice}, RewardDebt{Amount: amt(10), RewardDebt: amt(1)})
	err := r.l.Settle("ordi/sats", alice)
	assert.Equal(t, CodeNegativeReward, CodeOf(err))
}

func TestClaimWithoutRewardModule(t *testing.T) {
	r := newReplay(t, deployOp())
	r.deposit(alice, "ordi", 1000)
	r.deposit(alice, "sats", 1000)
	r.mustCommit(deployPool(alice, "ordi", "sats"), addLiq(alice, "ordi", "sats", 1000, 1000), lockCall(alice, 10))
	res := r.commit(claimCall(alice))
	assert.False(t, res[0].Success)
	assert.Contains(t, res[0].Error, string(CodeRewardDisabled))
}
