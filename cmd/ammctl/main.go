package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ammclient/internal/amm"
	"ammclient/internal/chain"
	"ammclient/internal/config"
	"ammclient/internal/gateway"
	"ammclient/internal/storage"
	"ammclient/internal/storage/postgres"
	"ammclient/internal/strkey"
)

func main() {
	root := &cobra.Command{
		Use:          "ammctl",
		Short:        "AMM pool contract client",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newTickCmd())
	root.AddCommand(newEstimateCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newPendingCmd())
	root.AddCommand(newPoolsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// addNodeFlags registers the flags every command talking to a node needs.
func addNodeFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "ledger node RPC URL")
	cmd.Flags().String("network-passphrase", "", "network passphrase")
	cmd.Flags().String("read-source", "", "account used as source for simulate-only reads")
	cmd.Flags().String("native-token", "", "native asset token contract")
	cmd.Flags().Duration("call-timeout", 0, "per-call RPC timeout")
	cmd.Flags().Int("poll-attempts", 0, "maximum getTransaction attempts")
	cmd.Flags().Duration("poll-interval", 0, "delay between getTransaction attempts")
	cmd.Flags().String("journal", "", "submission journal JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces the JSONL journal when set")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// env bundles the long-lived components a command needs.
type env struct {
	cfg     config.Config
	logger  *zap.Logger
	chain   *chain.Client
	store   *postgres.Store
	journal storage.Journal
	gateway *gateway.Gateway
	metrics *metricsServer
}

func (e *env) Close() {
	if e.metrics != nil {
		if err := e.metrics.Close(); err != nil {
			e.logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
	if e.store != nil {
		e.store.Close()
	}
	if e.chain != nil {
		e.chain.Close()
	}
}

func newEnv(ctx context.Context, cfg config.Config, logger *zap.Logger) (*env, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	e := &env{cfg: cfg, logger: logger}

	client, err := chain.NewClient(ctx, cfg.RPCURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	e.chain = client

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		e.store = store
		e.journal = store
	} else {
		e.journal = storage.NewJsonlJournal(cfg.JournalPath)
	}

	reg := prometheus.NewRegistry()
	metrics := gateway.NewMetrics(cfg.MetricsNamespace, reg)
	if cfg.MetricsAddr != "" {
		srv, err := startMetricsServer(cfg.MetricsAddr, reg, logger)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
		e.metrics = srv
	}
	e.gateway = gateway.New(client, cfg.Gateway(),
		gateway.WithJournal(e.journal),
		gateway.WithMetrics(metrics),
		gateway.WithLogger(logger),
	)
	return e, nil
}

// ammClient builds the pool client, warming its caches from the registry.
func (e *env) ammClient(ctx context.Context) (*amm.Client, error) {
	if e.cfg.ReadSource == "" {
		return nil, fmt.Errorf("read source account is required")
	}
	readSource, err := strkey.Decode(e.cfg.ReadSource)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	ammCfg := amm.Config{ReadSource: readSource}
	if e.cfg.NativeToken != "" {
		if ammCfg.NativeToken, err = strkey.Decode(e.cfg.NativeToken); err != nil {
			return nil, fmt.Errorf("native token: %w", err)
		}
	}
	if e.cfg.BatchExecutor != "" {
		if ammCfg.BatchExecutor, err = strkey.Decode(e.cfg.BatchExecutor); err != nil {
			return nil, fmt.Errorf("batch executor: %w", err)
		}
	}

	client, err := amm.NewClient(e.gateway, ammCfg, e.logger)
	if err != nil {
		return nil, err
	}
	if e.store != nil {
		pools, err := e.store.Pools(ctx)
		if err != nil {
			return nil, fmt.Errorf("load pool registry: %w", err)
		}
		client.Preload(pools)
	}
	return client, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
