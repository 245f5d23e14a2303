package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Provenance strategy names.
const (
	StrategyFactory = "factory"
	StrategyDerived = "derived"
)

// Mainnet defaults for the watched contract family.
const (
	DefaultRegistryAddress = "0x61447385B019187daa48e91c55c02AF1F1f3F863"
	DefaultDeployerAddress = "0x88dC3a2284FA62e0027d6D6B1fCfDd2141a143b8"
	DefaultFactoryAddress  = "0x1F98431c8aD98523631AE4a59f267346ea31F984"
	DefaultRouterAddress   = "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45"

	// Keccak hash of the V3 pool creation bytecode, used for CREATE2
	// address derivation.
	DefaultPoolInitCodeHash = "0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL           string
	FromBlock        uint64
	ToBlock          uint64
	BatchSize        uint64
	TxConcurrency    int
	RegistryAddress  string
	DeployerAddress  string
	RouterAddress    string
	FactoryAddress   string
	PoolInitCodeHash string
	Strategy         string
	BudgetLimit      int64
	Out              string
	Checkpoint       string
	CheckpointOn     bool
	MaxRetries       int
	RetryBackoff     time.Duration
	PGDSN            string
	KafkaBrokers     string
	KafkaTopic       string
	MetricsListen    string
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", uint64(500))
	v.SetDefault("tx-concurrency", 8)
	v.SetDefault("registry-address", DefaultRegistryAddress)
	v.SetDefault("deployer-address", DefaultDeployerAddress)
	v.SetDefault("router-address", DefaultRouterAddress)
	v.SetDefault("factory-address", DefaultFactoryAddress)
	v.SetDefault("pool-init-code-hash", DefaultPoolInitCodeHash)
	v.SetDefault("strategy", StrategyFactory)
	v.SetDefault("budget-limit", int64(0))
	v.SetDefault("out", "./data/alerts.jsonl")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("metrics-listen", "")
	v.SetDefault("log-level", "info")

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
		RPCURL:           v.GetString("rpc"),
		FromBlock:        v.GetUint64("from"),
		ToBlock:          v.GetUint64("to"),
		BatchSize:        v.GetUint64("batch-size"),
		TxConcurrency:    v.GetInt("tx-concurrency"),
		RegistryAddress:  v.GetString("registry-address"),
		DeployerAddress:  v.GetString("deployer-address"),
		RouterAddress:    v.GetString("router-address"),
		FactoryAddress:   v.GetString("factory-address"),
		PoolInitCodeHash: v.GetString("pool-init-code-hash"),
		Strategy:         strings.ToLower(strings.TrimSpace(v.GetString("strategy"))),
		BudgetLimit:      v.GetInt64("budget-limit"),
		Out:              v.GetString("out"),
		Checkpoint:       v.GetString("checkpoint"),
		CheckpointOn:     v.GetBool("checkpoint-enabled"),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		PGDSN:            v.GetString("pg-dsn"),
		KafkaBrokers:     v.GetString("kafka-brokers"),
		KafkaTopic:       v.GetString("kafka-topic"),
		MetricsListen:    v.GetString("metrics-listen"),
		LogLevel:         v.GetString("log-level"),
	}

	switch cfg.Strategy {
	case StrategyFactory, StrategyDerived:
	default:
		return Config{}, fmt.Errorf("unknown provenance strategy: %s", cfg.Strategy)
	}

	return cfg, nil
}
