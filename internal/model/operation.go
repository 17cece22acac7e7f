package model

import "swapledger/internal/amount"

// OpType names an operation variant.
type OpType string

const (
	OpDeploy             OpType = "deploy"
	OpCommit             OpType = "commit"
	OpTransfer           OpType = "transfer"
	OpApprove            OpType = "approve"
	OpConditionalApprove OpType = "conditional-approve"
	OpWithdraw           OpType = "withdraw"
)

// Operation is implemented by every operation variant. The set is closed.
type Operation interface {
	Type() OpType
	isOperation()
}

// DeployOp initializes the module. It must be the first event.
type DeployOp struct {
	Sequencer   string `json:"sequencer"`
	FeeTo       string `json:"fee_to"`
	GasTo       string `json:"gas_to"`
	GasTick     string `json:"gas_tick"`
	SwapFeeRate string `json:"swap_fee_rate"`

	RewardTick     string        `json:"reward_tick,omitempty"`
	RewardPerBlock amount.Amount `json:"-"`
}

// CommitOp is a sequencer-signed batch of function calls.
type CommitOp struct {
	Parent   string        `json:"parent"`
	GasPrice amount.Amount `json:"-"`
	Calls    []FuncCall    `json:"-"`
}

// TransferOp credits an L1 deposit.
type TransferOp struct {
	Tick   string
	Amount amount.Amount
}

type ApproveOp struct {
	Tick   string
	Amount amount.Amount
}

// ConditionalApproveOp credits a balance reserved for withdrawal matching.
type ConditionalApproveOp struct {
	Tick        string
	Amount      amount.Amount
	TransferRef string
}

// WithdrawOp burns a conditionally approved balance.
type WithdrawOp struct {
	Tick   string
	Amount amount.Amount
}

func (*DeployOp) Type() OpType             { return OpDeploy }
func (*CommitOp) Type() OpType             { return OpCommit }
func (*TransferOp) Type() OpType           { return OpTransfer }
func (*ApproveOp) Type() OpType            { return OpApprove }
func (*ConditionalApproveOp) Type() OpType { return OpConditionalApprove }
func (*WithdrawOp) Type() OpType           { return OpWithdraw }

func (*DeployOp) isOperation()             {}
func (*CommitOp) isOperation()             {}
func (*TransferOp) isOperation()           {}
func (*ApproveOp) isOperation()            {}
func (*ConditionalApproveOp) isOperation() {}
func (*WithdrawOp) isOperation()           {}
