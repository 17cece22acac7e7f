package ledger

import (
	"swapledger/internal/amount"
	"swapledger/internal/model"
)

func (l *Ledger) deploy(ev *model.OpEvent, op *model.DeployOp) error {
	if l.module != nil {
		return fatalf(CodeDuplicateDeploy, "module already deployed, second deploy at cursor %d", ev.Cursor)
	}
	rate := l.feeRate
	if l.feeOverride == nil {
		parsed, err := amount.ParseFeeRate(op.SwapFeeRate)
		if err != nil {
			return fatalf(CodeInvalidFeeRate, "%v", err)
		}
		rate = parsed
	}
	m := *op
	l.module = &m
	l.moduleAddr = ev.To
	l.feeRate = rate
	return nil
}

func (l *Ledger) transfer(ev *model.OpEvent, op *model.TransferOp) error {
	if op.Amount.IsZero() {
		return invalidf(CodeInvalidAmount, "transfer amount must be positive")
	}
	if l.moduleAddr != "" && ev.To != l.moduleAddr {
		return nil
	}
	return l.credit(Swap, op.Tick, ev.From, op.Amount)
}

func (l *Ledger) approve(ev *model.OpEvent, op *model.ApproveOp) error {
	if op.Amount.IsZero() {
		return invalidf(CodeInvalidAmount, "approve amount must be positive")
	}
	return l.credit(Approve, op.Tick, ev.From, op.Amount)
}

func (l *Ledger) conditionalApprove(ev *model.OpEvent, op *model.ConditionalApproveOp) error {
	if op.Amount.IsZero() {
		return invalidf(CodeInvalidAmount, "conditional approve amount must be positive")
	}
	return l.credit(ConditionalApprove, op.Tick, ev.From, op.Amount)
}

func (l *Ledger) withdraw(ev *model.OpEvent, op *model.WithdrawOp) error {
	if op.Amount.IsZero() {
		return invalidf(CodeInvalidAmount, "withdraw amount must be positive")
	}
	return l.debit(ConditionalApprove, op.Tick, ev.From, op.Amount)
}

// commit runs each call in order. A failing call is rolled back on its own
// and recorded as unsuccessful; later calls still run.
func (l *Ledger) commit(ev *model.OpEvent, op *model.CommitOp) ([]model.CallResult, error) {
	if seq := l.module.Sequencer; seq != "" && ev.From != seq {
		return nil, invalidf(CodeUnauthorized, "commit from %s, sequencer is %s", ev.From, seq)
	}
	if op.Parent != l.lastCommitID {
		return nil, invalidf(CodeCommitParentMismatch, "parent %q, last commit %q", op.Parent, l.lastCommitID)
	}

	results := make([]model.CallResult, 0, len(op.Calls))
	for _, call := range op.Calls {
		sp := l.journal.mark()
		res := model.CallResult{ID: call.CallID(), Func: call.Func(), Gas: "0"}

		err := l.chargeGas(call.Caller(), op.GasPrice, &res)
		if err == nil {
			err = l.execCall(ev, call, &res)
		}
		if err != nil {
			if IsFatal(err) {
				return nil, err
			}
			l.journal.rollback(sp)
			res = model.CallResult{ID: call.CallID(), Func: call.Func(), Gas: "0", Error: err.Error()}
		} else {
			res.Success = true
		}
		results = append(results, res)
	}

	l.lastCommitID = ev.InscriptionID
	return results, nil
}

func (l *Ledger) chargeGas(address string, price amount.Amount, res *model.CallResult) error {
	m := l.module
	if price.IsZero() || m.GasTick == "" || m.GasTo == "" {
		return nil
	}
	if err := l.transferBalance(Swap, m.GasTick, address, m.GasTo, price); err != nil {
		return err
	}
	res.Gas = amount.String(price)
	return nil
}

func (l *Ledger) execCall(ev *model.OpEvent, call model.FuncCall, res *model.CallResult) error {
	switch c := call.(type) {
	case model.SwapCall:
		return l.swap(c, res)
	case model.AddLiqCall:
		return l.addLiq(c, ev.Height, res)
	case model.RemoveLiqCall:
		return l.removeLiq(c, ev.Height, res)
	case model.DeployPoolCall:
		return l.deployPool(c, res)
	case model.DecreaseApprovalCall:
		if c.Amount.IsZero() {
			return invalidf(CodeInvalidAmount, "decrease approval amount must be positive")
		}
		return l.debit(Approve, c.Tick, c.Address, c.Amount)
	case model.SendCall:
		return l.send(c)
	case model.SendLpCall:
		return l.sendLp(c, ev.Height)
	case model.LockCall:
		return l.lock(c, ev.Height, res)
	case model.UnlockCall:
		return l.unlock(c, ev.Height, res)
	case model.ClaimCall:
		return l.claim(c, ev.Height, res)
	default:
		return invalidf(CodeUnknownOperation, "func %q", call.Func())
	}
}

func (l *Ledger) send(c model.SendCall) error {
	if c.Amount.IsZero() {
		return invalidf(CodeInvalidAmount, "send amount must be positive")
	}
	if IsLpTick(c.Tick) {
		return invalidf(CodeInvalidPair, "send of LP tick %s, use sendLp", c.Tick)
	}
	return l.transferBalance(Swap, c.Tick, c.Address, c.To, c.Amount)
}

func (l *Ledger) sendLp(c model.SendLpCall, height uint32) error {
	if c.Amount.IsZero() {
		return invalidf(CodeInvalidAmount, "sendLp amount must be positive")
	}
	pair, err := l.existingPair(c.Tick0, c.Tick1)
	if err != nil {
		return err
	}
	if err := l.settleReward(pair, c.Address, height); err != nil {
		return err
	}
	if err := l.settleReward(pair, c.To, height); err != nil {
		return err
	}
	return l.transferBalance(Swap, pair, c.Address, c.To, c.Amount)
}
