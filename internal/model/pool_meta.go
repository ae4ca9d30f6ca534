package model

// Slot0 is a concentrated pool's current tick/price snapshot.
type Slot0 struct {
	Tick         int32  `json:"tick"`
	SqrtPriceX64 string `json:"sqrt_price_x64"`
}
