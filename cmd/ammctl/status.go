package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammclient/internal/gateway"
	"ammclient/internal/model"
	"ammclient/internal/storage"
)

type statusOutput struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
	Ledger uint32 `json:"ledger,omitempty"`
	Error  string `json:"error,omitempty"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status HASH",
		Short: "Poll a submitted transaction until it is final",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
	addNodeFlags(cmd)
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	raw := common.FromHex(args[0])
	if len(raw) != common.HashLength {
		return fmt.Errorf("invalid transaction hash %q", args[0])
	}
	hash := common.BytesToHash(raw)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEnv(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	out := statusOutput{Hash: hash.Hex(), Status: model.SubmissionConfirmed}
	res, err := e.gateway.Poll(ctx, hash)
	if err != nil {
		out.Status = model.SubmissionFailed
		out.Error = err.Error()
		if gateway.IsPollTimeout(err) {
			out.Status = model.SubmissionPending
		}
	}
	out.Ledger = res.Ledger
	return printJSON(cmd, out)
}

func newPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List journal entries without a final outcome",
		RunE:  runPending,
	}
	addNodeFlags(cmd)
	cmd.Flags().Bool("resume", false, "poll each pending entry and record its outcome")
	return cmd
}

func runPending(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEnv(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	if resume, _ := cmd.Flags().GetBool("resume"); resume {
		subs, err := e.gateway.Resume(ctx)
		if err != nil {
			return err
		}
		logger.Info("resume done", zap.Int("submissions", len(subs)))
		if j, ok := e.journal.(*storage.JsonlJournal); ok {
			if _, err := j.Compact(ctx); err != nil {
				logger.Warn("journal compact failed", zap.Error(err))
			}
		}
		return printJSON(cmd, subs)
	}

	subs, err := e.journal.PendingSubmissions(ctx)
	if err != nil {
		return err
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return printJSON(cmd, subs)
}

func newPoolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pools",
		Short: "Fetch pool metadata and store it in the registry",
		RunE:  runPools,
	}
	addNodeFlags(cmd)
	cmd.Flags().StringSlice("pool", nil, "pool contracts (comma-separated)")
	return cmd
}

func runPools(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(cfg.Pools) == 0 {
		return fmt.Errorf("pool list is required")
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
	pools := make([]model.Pool, 0, len(cfg.Pools))
	for _, addr := range cfg.Pools {
		pool, err := client.FetchPool(ctx, addr)
		if err != nil {
			return fmt.Errorf("fetch pool %s: %w", addr, err)
		}
		pools = append(pools, pool)
	}

	if e.store != nil {
		if err := e.store.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
		logger.Info("pools stored", zap.Int("pools", len(pools)))
	}
	return printJSON(cmd, pools)
}
