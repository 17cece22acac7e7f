package model

// PoolState is the reserve and LP supply of a pair at one point in time.
type PoolState struct {
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
	LpSupply string `json:"lp_supply"`
}

// CallResult records the outcome of one call inside a commit.
type CallResult struct {
	ID        string            `json:"id"`
	Func      FuncName          `json:"func"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Gas       string            `json:"gas"`
	Output    map[string]string `json:"output,omitempty"`
	PreState  *PoolState        `json:"pre_state,omitempty"`
	PostState *PoolState        `json:"post_state,omitempty"`
}
