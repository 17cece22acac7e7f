package model

import (
	"encoding/json"
	"fmt"

	"swapledger/internal/amount"
)

type wireDeploy struct {
	Sequencer      string `json:"sequencer"`
	FeeTo          string `json:"fee_to"`
	GasTo          string `json:"gas_to"`
	GasTick        string `json:"gas_tick"`
	SwapFeeRate    string `json:"swap_fee_rate"`
	RewardTick     string `json:"reward_tick"`
	RewardPerBlock string `json:"reward_per_block"`
}

type wireCommit struct {
	Parent   string     `json:"parent"`
	GasPrice string     `json:"gas_price"`
	Calls    []wireCall `json:"calls"`
}

type wireCall struct {
	ID      string            `json:"id"`
	Func    string            `json:"func"`
	Address string            `json:"address"`
	Params  map[string]string `json:"params"`
}

type wireTickAmount struct {
	Tick        string `json:"tick"`
	Amount      string `json:"amount"`
	TransferRef string `json:"transfer_ref"`
}

func parseOperation(op OpType, content json.RawMessage) (Operation, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("missing content for op %q", op)
	}
	switch op {
	case OpDeploy:
		var w wireDeploy
		if err := json.Unmarshal(content, &w); err != nil {
			return nil, fmt.Errorf("deploy: %w", err)
		}
		perBlock, err := optionalAmount(w.RewardPerBlock)
		if err != nil {
			return nil, fmt.Errorf("deploy reward_per_block: %w", err)
		}
		if w.SwapFeeRate == "" {
			w.SwapFeeRate = "0"
		}
		return &DeployOp{
			Sequencer:      w.Sequencer,
			FeeTo:          w.FeeTo,
			GasTo:          w.GasTo,
			GasTick:        w.GasTick,
			SwapFeeRate:    w.SwapFeeRate,
			RewardTick:     w.RewardTick,
			RewardPerBlock: perBlock,
		}, nil
	case OpCommit:
		var w wireCommit
		if err := json.Unmarshal(content, &w); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		gas, err := optionalAmount(w.GasPrice)
		if err != nil {
			return nil, fmt.Errorf("commit gas_price: %w", err)
		}
		calls := make([]FuncCall, 0, len(w.Calls))
		for i, wc := range w.Calls {
			call, err := parseCall(wc)
			if err != nil {
				return nil, fmt.Errorf("commit call %d: %w", i, err)
			}
			calls = append(calls, call)
		}
		return &CommitOp{Parent: w.Parent, GasPrice: gas, Calls: calls}, nil
	case OpTransfer, OpApprove, OpConditionalApprove, OpWithdraw:
		var w wireTickAmount
		if err := json.Unmarshal(content, &w); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if w.Tick == "" {
			return nil, fmt.Errorf("%s: missing tick", op)
		}
		amt, err := amount.Parse(w.Amount)
		if err != nil {
			return nil, fmt.Errorf("%s amount: %w", op, err)
		}
		switch op {
		case OpTransfer:
			return &TransferOp{Tick: w.Tick, Amount: amt}, nil
		case OpApprove:
			return &ApproveOp{Tick: w.Tick, Amount: amt}, nil
		case OpConditionalApprove:
			return &ConditionalApproveOp{Tick: w.Tick, Amount: amt, TransferRef: w.TransferRef}, nil
		default:
			return &WithdrawOp{Tick: w.Tick, Amount: amt}, nil
		}
	default:
		return nil, fmt.Errorf("unknown op %q", op)
	}
}

type paramReader struct {
	params map[string]string
	err    error
}

func (r *paramReader) str(key string) string {
	v := r.params[key]
	if v == "" && r.err == nil {
		r.err = fmt.Errorf("missing param %q", key)
	}
	return v
}

func (r *paramReader) amount(key string) amount.Amount {
	s := r.str(key)
	if r.err != nil {
		return amount.Zero()
	}
	v, err := amount.Parse(s)
	if err != nil {
		r.err = fmt.Errorf("param %q: %w", key, err)
	}
	return v
}

func (r *paramReader) optionalAmount(key string) amount.Amount {
	v, err := optionalAmount(r.params[key])
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("param %q: %w", key, err)
	}
	return v
}

func parseCall(w wireCall) (FuncCall, error) {
	if w.Address == "" {
		return nil, fmt.Errorf("missing address")
	}
	meta := CallMeta{ID: w.ID, Address: w.Address}
	r := &paramReader{params: w.Params}

	var call FuncCall
	switch FuncName(w.Func) {
	case FuncSwap:
		c := SwapCall{
			CallMeta:  meta,
			TickIn:    r.str("tick_in"),
			TickOut:   r.str("tick_out"),
			Amount:    r.amount("amount"),
			ExactType: ExactType(r.str("exact_type")),
			Expect:    r.optionalAmount("expect"),
			Slippage:  r.params["slippage"],
		}
		if r.err == nil && c.ExactType != ExactIn && c.ExactType != ExactOut {
			r.err = fmt.Errorf("invalid exact_type %q", c.ExactType)
		}
		call = c
	case FuncAddLiq:
		call = AddLiqCall{
			CallMeta: meta,
			Tick0:    r.str("tick0"),
			Tick1:    r.str("tick1"),
			Amount0:  r.amount("amount0"),
			Amount1:  r.amount("amount1"),
			ExpectLp: r.optionalAmount("expect_lp"),
			Slippage: r.params["slippage"],
		}
	case FuncRemoveLiq:
		call = RemoveLiqCall{
			CallMeta: meta,
			Tick0:    r.str("tick0"),
			Tick1:    r.str("tick1"),
			Lp:       r.amount("lp"),
			Amount0:  r.optionalAmount("amount0"),
			Amount1:  r.optionalAmount("amount1"),
			Slippage: r.params["slippage"],
		}
	case FuncDeployPool:
		call = DeployPoolCall{CallMeta: meta, Tick0: r.str("tick0"), Tick1: r.str("tick1")}
	case FuncDecreaseApproval:
		call = DecreaseApprovalCall{CallMeta: meta, Tick: r.str("tick"), Amount: r.amount("amount")}
	case FuncSend:
		call = SendCall{CallMeta: meta, To: r.str("to"), Tick: r.str("tick"), Amount: r.amount("amount")}
	case FuncSendLp:
		call = SendLpCall{
			CallMeta: meta,
			To:       r.str("to"),
			Tick0:    r.str("tick0"),
			Tick1:    r.str("tick1"),
			Amount:   r.amount("amount"),
		}
	case FuncLock:
		call = LockCall{CallMeta: meta, Tick0: r.str("tick0"), Tick1: r.str("tick1"), Amount: r.amount("amount")}
	case FuncUnlock:
		call = UnlockCall{CallMeta: meta, Tick0: r.str("tick0"), Tick1: r.str("tick1"), Amount: r.amount("amount")}
	case FuncClaim:
		call = ClaimCall{CallMeta: meta, Tick0: r.str("tick0"), Tick1: r.str("tick1")}
	default:
		return nil, fmt.Errorf("unknown func %q", w.Func)
	}
	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", w.Func, r.err)
	}
	return call, nil
}

func optionalAmount(s string) (amount.Amount, error) {
	if s == "" {
		return amount.Zero(), nil
	}
	return amount.Parse(s)
}
