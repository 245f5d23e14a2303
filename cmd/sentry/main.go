package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agentScope/internal/chain"
	"agentScope/internal/config"
	"agentScope/internal/detect"
	"agentScope/internal/metrics"
	"agentScope/internal/storage"
	"agentScope/internal/storage/postgres"
	"agentScope/internal/watch"
)

func main() {
	root := &cobra.Command{
		Use:          "sentry",
		Short:        "On-chain detection agents",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the detection watcher",
		RunE:  runSentry,
	}

	runCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().Uint64("batch-size", 500, "blocks per batch")
	runCmd.Flags().Int("tx-concurrency", 8, "concurrent transaction scans per block")
	runCmd.Flags().String("registry-address", config.DefaultRegistryAddress, "bot registry contract address")
	runCmd.Flags().String("deployer-address", config.DefaultDeployerAddress, "watched deployer address")
	runCmd.Flags().String("router-address", config.DefaultRouterAddress, "swap router contract address")
	runCmd.Flags().String("factory-address", config.DefaultFactoryAddress, "pool factory contract address")
	runCmd.Flags().String("pool-init-code-hash", config.DefaultPoolInitCodeHash, "pool init code hash for CREATE2 derivation")
	runCmd.Flags().String("strategy", config.StrategyFactory, "provenance strategy (factory, derived)")
	runCmd.Flags().Int64("budget-limit", 0, "max alerts per process, 0 disables the budget")
	runCmd.Flags().String("out", "./data/alerts.jsonl", "output JSONL path")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for alert persistence")
	runCmd.Flags().String("kafka-brokers", "", "optional Kafka brokers (comma-separated)")
	runCmd.Flags().String("kafka-topic", "", "Kafka topic for alerts")
	runCmd.Flags().String("metrics-listen", "", "optional prometheus listen address")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSentry(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.RegistryAddress) {
		return fmt.Errorf("invalid registry address: %s", cfg.RegistryAddress)
	}
	if !common.IsHexAddress(cfg.RouterAddress) {
		return fmt.Errorf("invalid router address: %s", cfg.RouterAddress)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	m := metrics.New()
	if cfg.MetricsListen != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsListen); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	budget := detect.NewBudget(cfg.BudgetLimit)

	var verifier detect.Verifier
	switch cfg.Strategy {
	case config.StrategyDerived:
		verifier, err = detect.NewDerivedVerifier(chainClient, cfg.FactoryAddress, cfg.PoolInitCodeHash, logger, m.ProvenanceFailures)
	default:
		verifier, err = detect.NewFactoryVerifier(chainClient, cfg.FactoryAddress, logger, m.ProvenanceFailures)
	}
	if err != nil {
		return err
	}

	registryDetector, err := detect.NewRegistryDetector(cfg.RegistryAddress, cfg.DeployerAddress, budget, logger)
	if err != nil {
		return err
	}
	poolDetector, err := detect.NewPoolSwapDetector(verifier, budget, logger)
	if err != nil {
		return err
	}
	routerDetector, err := detect.NewRouterSwapDetector(cfg.RouterAddress, budget, logger)
	if err != nil {
		return err
	}

	engine := detect.NewEngine([]detect.Detector{registryDetector, poolDetector, routerDetector}, logger)

	swapTopic, err := detect.SwapTopic()
	if err != nil {
		return err
	}

	sinks := []storage.AlertSink{storage.NewJsonlSink(cfg.Out)}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, postgres.NewSink(ctx, store))
	}
	if cfg.KafkaBrokers != "" {
		kafkaSink, err := storage.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}

	runner := watch.NewRunner(watch.RunConfig{
		FromBlock:     cfg.FromBlock,
		ToBlock:       cfg.ToBlock,
		BatchSize:     cfg.BatchSize,
		TxConcurrency: cfg.TxConcurrency,
		WatchedAddresses: []common.Address{
			common.HexToAddress(cfg.RegistryAddress),
			common.HexToAddress(cfg.RouterAddress),
		},
		SwapTopic:         swapTopic,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointOn,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, engine, storage.NewMultiSink(sinks...), m, logger)

	logger.Info("sentry start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("strategy", cfg.Strategy),
		zap.Int64("budget_limit", cfg.BudgetLimit),
		zap.String("registry", cfg.RegistryAddress),
		zap.String("router", cfg.RouterAddress),
		zap.String("factory", cfg.FactoryAddress),
		zap.String("out", cfg.Out),
	)

	return runner.Run(ctx)
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
