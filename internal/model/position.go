package model

import "fmt"

// Tick bounds of the protocol's price grid.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// Position is a concentrated-liquidity position read from the ledger.
type Position struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Liquidity string `json:"liquidity"`
}

// Validate checks the position's range against the pool's tick spacing.
func (p Position) Validate(spacing int32) error {
	return ValidateRange(p.TickLower, p.TickUpper, spacing)
}

// ValidateRange checks lower < upper, grid alignment and global bounds.
func ValidateRange(lower, upper, spacing int32) error {
	if spacing <= 0 {
		return fmt.Errorf("tick spacing must be positive, got %d", spacing)
	}
	if lower >= upper {
		return fmt.Errorf("tick lower %d must be below tick upper %d", lower, upper)
	}
	if lower < MinTick || upper > MaxTick {
		return fmt.Errorf("ticks [%d, %d] outside [%d, %d]", lower, upper, MinTick, MaxTick)
	}
	if lower%spacing != 0 || upper%spacing != 0 {
		return fmt.Errorf("ticks [%d, %d] not multiples of spacing %d", lower, upper, spacing)
	}
	return nil
}
