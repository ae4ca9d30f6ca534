package model

// PoolKind is the pool's pricing curve.
type PoolKind string

const (
	PoolConstantProduct PoolKind = "constant_product"
	PoolStable          PoolKind = "stable"
	PoolConcentrated    PoolKind = "concentrated"
)

// Pool is a pool metadata record. Tokens are in the pool's canonical order.
type Pool struct {
	Address       string   `json:"address"`
	Kind          PoolKind `json:"kind"`
	Tokens        []Token  `json:"tokens"`
	FeeBps        uint32   `json:"fee_bps"`
	ShareDecimals uint8    `json:"share_decimals"`
	TickSpacing   int32    `json:"tick_spacing,omitempty"`
	Slot0         *Slot0   `json:"slot0,omitempty"`
}

// IsConcentrated reports whether the pool uses a tick grid.
func (p Pool) IsConcentrated() bool {
	return p.Kind == PoolConcentrated
}

// DecimalsDiff is decimals(token0) - decimals(token1), the exponent used to
// express raw tick prices in human units.
func (p Pool) DecimalsDiff() int32 {
	if len(p.Tokens) < 2 {
		return 0
	}
	return int32(p.Tokens[0].Decimals) - int32(p.Tokens[1].Decimals)
}
