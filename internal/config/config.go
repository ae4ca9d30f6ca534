package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ammclient/internal/estimate"
	"ammclient/internal/gateway"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL            string
	NetworkPassphrase string
	ReadSource        string
	NativeToken       string
	BatchExecutor     string
	Pools             []string
	CallTimeout       time.Duration
	PollAttempts      int
	PollInterval      time.Duration
	BaseFee           int64
	AutoRestore       bool
	SlippageBps       uint32
	EstimateDebounce  time.Duration
	EstimateCacheSize int
	JournalPath       string
	PGDSN             string
	LogLevel          string
	MetricsNamespace  string
	MetricsAddr       string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AMMCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("call-timeout", 30*time.Second)
	v.SetDefault("poll-attempts", 30)
	v.SetDefault("poll-interval", time.Second)
	v.SetDefault("base-fee", int64(100))
	v.SetDefault("slippage-bps", uint32(50))
	v.SetDefault("estimate-debounce", 300*time.Millisecond)
	v.SetDefault("estimate-cache-size", 256)
	v.SetDefault("journal", "./data/submissions.jsonl")
	v.SetDefault("log-level", "info")
	v.SetDefault("metrics-namespace", "ammclient")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		NetworkPassphrase: v.GetString("network-passphrase"),
		ReadSource:        v.GetString("read-source"),
		NativeToken:       v.GetString("native-token"),
		BatchExecutor:     v.GetString("batch-executor"),
		Pools:             getStringSlice(v, "pool"),
		CallTimeout:       v.GetDuration("call-timeout"),
		PollAttempts:      v.GetInt("poll-attempts"),
		PollInterval:      v.GetDuration("poll-interval"),
		BaseFee:           v.GetInt64("base-fee"),
		AutoRestore:       v.GetBool("auto-restore"),
		SlippageBps:       v.GetUint32("slippage-bps"),
		EstimateDebounce:  v.GetDuration("estimate-debounce"),
		EstimateCacheSize: v.GetInt("estimate-cache-size"),
		JournalPath:       v.GetString("journal"),
		PGDSN:             v.GetString("pg-dsn"),
		LogLevel:          v.GetString("log-level"),
		MetricsNamespace:  v.GetString("metrics-namespace"),
		MetricsAddr:       v.GetString("metrics-addr"),
	}

	if cfg.SlippageBps >= 10_000 {
		return Config{}, fmt.Errorf("slippage-bps must be below 10000, got %d", cfg.SlippageBps)
	}
	return cfg, nil
}

// Gateway returns the gateway settings.
func (c Config) Gateway() gateway.Config {
	return gateway.Config{
		NetworkPassphrase: c.NetworkPassphrase,
		BaseFee:           c.BaseFee,
		CallTimeout:       c.CallTimeout,
		PollAttempts:      c.PollAttempts,
		PollInterval:      c.PollInterval,
		AutoRestore:       c.AutoRestore,
	}
}

// Estimate returns the deposit estimate settings.
func (c Config) Estimate() estimate.Config {
	return estimate.Config{
		Debounce:  c.EstimateDebounce,
		CacheSize: c.EstimateCacheSize,
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
