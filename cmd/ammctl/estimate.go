package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammclient/internal/clmath"
	"ammclient/internal/estimate"
	"ammclient/internal/strkey"
)

type estimateOutput struct {
	Pool      string `json:"pool"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Current   int32  `json:"current_tick"`
	Preview0  string `json:"preview_amount0"`
	Preview1  string `json:"preview_amount1"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Liquidity string `json:"liquidity"`
}

func newEstimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate a concentrated-liquidity deposit (simulate only)",
		RunE:  runEstimate,
	}
	addNodeFlags(cmd)
	cmd.Flags().String("pool", "", "pool contract")
	cmd.Flags().String("owner", "", "depositing account (defaults to read source)")
	cmd.Flags().Int32("lower", 0, "tick lower")
	cmd.Flags().Int32("upper", 0, "tick upper")
	cmd.Flags().String("low", "", "range lower price, instead of --lower/--upper")
	cmd.Flags().String("high", "", "range upper price")
	cmd.Flags().String("side", "token0", "token the amount is given in (token0 or token1)")
	cmd.Flags().String("amount", "", "deposit amount")
	return cmd
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	poolAddr, _ := cmd.Flags().GetString("pool")
	if poolAddr == "" {
		return fmt.Errorf("pool is required")
	}
	amountStr, _ := cmd.Flags().GetString("amount")
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}
	var side clmath.Side
	switch s, _ := cmd.Flags().GetString("side"); s {
	case "token0":
		side = clmath.Token0
	case "token1":
		side = clmath.Token1
	default:
		return fmt.Errorf("side must be token0 or token1, got %q", s)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEnv(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	client, err := e.ammClient(ctx)
	if err != nil {
		return err
	}
	pool, err := client.FetchPool(ctx, poolAddr)
	if err != nil {
		return fmt.Errorf("fetch pool: %w", err)
	}
	if !pool.IsConcentrated() {
		return fmt.Errorf("pool %s is %s, not concentrated", poolAddr, pool.Kind)
	}

	lower, _ := cmd.Flags().GetInt32("lower")
	upper, _ := cmd.Flags().GetInt32("upper")
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
		if lower, upper, err = clmath.RangeFromPrices(lowPrice, highPrice, pool.TickSpacing, pool.DecimalsDiff()); err != nil {
			return err
		}
	}

	req := estimate.Request{
		Pool:      pool,
		TickLower: lower,
		TickUpper: upper,
		Side:      side,
		Amount:    amount,
	}
	if owner, _ := cmd.Flags().GetString("owner"); owner != "" {
		if req.Owner, err = strkey.Decode(owner); err != nil {
			return fmt.Errorf("owner: %w", err)
		}
	}

	orch, err := estimate.New(client, cfg.Estimate(), logger)
	if err != nil {
		return err
	}
	preview, seq, err := orch.Update(ctx, req)
	if err != nil {
		return err
	}
	logger.Info("estimate requested",
		zap.String("pool", poolAddr),
		zap.Uint64("seq", seq),
		zap.Int32("tick_lower", lower),
		zap.Int32("tick_upper", upper),
	)

	res, err := orch.Wait(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, estimateOutput{
		Pool:      poolAddr,
		TickLower: lower,
		TickUpper: upper,
		Current:   pool.Slot0.Tick,
		Preview0:  preview.Amount0.String(),
		Preview1:  preview.Amount1.String(),
		Amount0:   res.Amount0.String(),
		Amount1:   res.Amount1.String(),
		Liquidity: res.Liquidity.String(),
	})
}
