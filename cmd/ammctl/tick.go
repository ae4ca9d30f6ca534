package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ammclient/internal/clmath"
)

type tickOutput struct {
	Tick      int32  `json:"tick"`
	Price     string `json:"price"`
	SnapDown  int32  `json:"snap_down"`
	SnapUp    int32  `json:"snap_up"`
	Nearest   int32  `json:"nearest_usable"`
	NextPrice string `json:"next_price"`
}

type rangeOutput struct {
	TickLower  int32  `json:"tick_lower"`
	TickUpper  int32  `json:"tick_upper"`
	PriceLower string `json:"price_lower"`
	PriceUpper string `json:"price_upper"`
}

func newTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Convert between prices and ticks",
		Long:  "Convert a price or tick, or a price range with --low/--high. Needs no node.",
		RunE:  runTick,
	}
	cmd.Flags().String("price", "", "price of token0 in token1")
	cmd.Flags().Int32("tick", 0, "tick index")
	cmd.Flags().String("low", "", "range lower price")
	cmd.Flags().String("high", "", "range upper price")
	cmd.Flags().Int32("spacing", 1, "pool tick spacing")
	cmd.Flags().Int32("decimals-diff", 0, "decimals(token0) - decimals(token1)")
	return cmd
}

func runTick(cmd *cobra.Command, _ []string) error {
	spacing, _ := cmd.Flags().GetInt32("spacing")
	diff, _ := cmd.Flags().GetInt32("decimals-diff")
	low, _ := cmd.Flags().GetString("low")
	high, _ := cmd.Flags().GetString("high")

	if low != "" || high != "" {
		lowPrice, err := decimal.NewFromString(low)
		if err != nil {
			return fmt.Errorf("parse low: %w", err)
		}
		highPrice, err := decimal.NewFromString(high)
		if err != nil {
			return fmt.Errorf("parse high: %w", err)
		}
		lower, upper, err := clmath.RangeFromPrices(lowPrice, highPrice, spacing, diff)
		if err != nil {
			return err
		}
		return printJSON(cmd, rangeOutput{
			TickLower:  lower,
			TickUpper:  upper,
			PriceLower: clmath.TickToPrice(lower, diff).String(),
			PriceUpper: clmath.TickToPrice(upper, diff).String(),
		})
	}

	tick, _ := cmd.Flags().GetInt32("tick")
	if priceStr, _ := cmd.Flags().GetString("price"); priceStr != "" {
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return fmt.Errorf("parse price: %w", err)
		}
		if tick, err = clmath.PriceToTick(price, diff); err != nil {
			return err
		}
	} else if !cmd.Flags().Changed("tick") {
		return fmt.Errorf("one of --price, --tick or --low/--high is required")
	}

	min, max := clmath.UsableBounds(spacing)
	return printJSON(cmd, tickOutput{
		Tick:      tick,
		Price:     clmath.TickToPrice(tick, diff).String(),
		SnapDown:  clmath.Clamp(clmath.SnapDown(tick, spacing), min, max),
		SnapUp:    clmath.Clamp(clmath.SnapUp(tick, spacing), min, max),
		Nearest:   clmath.NearestUsableTick(tick, spacing),
		NextPrice: clmath.TickToPrice(tick+1, diff).String(),
	})
}
