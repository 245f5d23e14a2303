package watch

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agentScope/internal/chain"
	"agentScope/internal/detect"
	"agentScope/internal/metrics"
	"agentScope/internal/model"
	"agentScope/internal/storage"
)

// RunConfig holds runtime settings for the watcher.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	TxConcurrency     int
	WatchedAddresses  []common.Address
	SwapTopic         common.Hash
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner scans block ranges, builds transaction views for candidate
// transactions, and feeds them to the detection engine.
type Runner struct {
	cfg        RunConfig
	chain      *chain.Client
	engine     *detect.Engine
	sink       storage.AlertSink
	logger     *zap.Logger
	metrics    *metrics.Metrics
	checkpoint *CheckpointStore
	watched    map[common.Address]struct{}
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, chainClient *chain.Client, engine *detect.Engine, sink storage.AlertSink, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	watched := make(map[common.Address]struct{}, len(cfg.WatchedAddresses))
	for _, addr := range cfg.WatchedAddresses {
		watched[addr] = struct{}{}
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		engine:     engine,
		sink:       sink,
		logger:     logger,
		metrics:    m,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		watched:    watched,
	}
}

// Run executes the watch loop over the configured block range.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.engine == nil {
		return fmt.Errorf("engine is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.TxConcurrency <= 0 {
		r.cfg.TxConcurrency = 1
	}

	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to scan", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		envelopes, err := r.scanRange(ctx, chainIDValue, blockRange)
		if err != nil {
			return err
		}

		if err := r.sink.PutAlertBatch(envelopes); err != nil {
			return fmt.Errorf("store alerts: %w", err)
		}
		if r.metrics != nil {
			r.metrics.AlertsEmitted.Add(float64(len(envelopes)))
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(blockRange.To); err != nil {
				return err
			}
		}

		r.logger.Info("range complete",
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Int("alerts", len(envelopes)),
		)
	}

	return nil
}

func (r *Runner) scanRange(ctx context.Context, chainID uint64, blockRange BlockRange) ([]model.AlertEnvelope, error) {
	logsByTx, err := r.swapLogsByTx(ctx, blockRange)
	if err != nil {
		return nil, fmt.Errorf("filter logs: %w", err)
	}

	envelopes := make([]model.AlertEnvelope, 0)
	for number := blockRange.From; number <= blockRange.To; number++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		block, err := r.blockWithRetry(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("fetch block %d: %w", number, err)
		}

		blockEnvelopes, err := r.scanBlock(ctx, chainID, block, logsByTx)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, blockEnvelopes...)
	}
	return envelopes, nil
}

type candidate struct {
	index uint
	tx    *types.Transaction
	logs  []types.Log
}

func (r *Runner) scanBlock(ctx context.Context, chainID uint64, block *types.Block, logsByTx map[common.Hash][]types.Log) ([]model.AlertEnvelope, error) {
	candidates := make([]candidate, 0)
	for idx, tx := range block.Transactions() {
		logs := logsByTx[tx.Hash()]
		watchedTarget := tx.To() != nil && r.isWatched(*tx.To())
		if len(logs) == 0 && !watchedTarget {
			continue
		}
		candidates = append(candidates, candidate{index: uint(idx), tx: tx, logs: logs})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	results := make([][]model.AlertEnvelope, len(candidates))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.cfg.TxConcurrency)

	for i, cand := range candidates {
		i, cand := i, cand
		group.Go(func() error {
			view, err := r.transactionView(groupCtx, block, cand)
			if err != nil {
				// One unresolvable transaction should not halt the
				// scan; it is logged and dropped.
				r.logger.Warn("transaction view failed",
					zap.String("tx", cand.tx.Hash().Hex()),
					zap.Error(err),
				)
				return nil
			}

			alerts := r.engine.HandleTransaction(groupCtx, view)
			if r.metrics != nil {
				r.metrics.TransactionsScanned.Inc()
			}
			if len(alerts) == 0 {
				return nil
			}

			emittedAt := time.Now().UTC().Format(time.RFC3339Nano)
			wrapped := make([]model.AlertEnvelope, 0, len(alerts))
			for _, alert := range alerts {
				wrapped = append(wrapped, model.AlertEnvelope{
					ChainID:     chainID,
					BlockNumber: block.NumberU64(),
					TxHash:      cand.tx.Hash().Hex(),
					Timestamp:   block.Time(),
					EmittedAt:   emittedAt,
					Alert:       alert,
				})
			}
			results[i] = wrapped
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	envelopes := make([]model.AlertEnvelope, 0)
	for _, wrapped := range results {
		envelopes = append(envelopes, wrapped...)
	}
	return envelopes, nil
}

func (r *Runner) transactionView(ctx context.Context, block *types.Block, cand candidate) (model.TransactionView, error) {
	sender, err := r.senderWithRetry(ctx, block, cand)
	if err != nil {
		return model.TransactionView{}, fmt.Errorf("resolve sender: %w", err)
	}

	to := ""
	if cand.tx.To() != nil {
		to = cand.tx.To().Hex()
	}

	view := model.TransactionView{
		From: sender.Hex(),
		To:   to,
	}
	if to != "" && len(cand.tx.Data()) > 0 {
		view.Calls = []model.CallFrame{{To: to, Input: hexutil.Encode(cand.tx.Data())}}
	}
	for _, log := range cand.logs {
		topics := make([]string, 0, len(log.Topics))
		for _, topic := range log.Topics {
			topics = append(topics, topic.Hex())
		}
		view.Logs = append(view.Logs, model.RawLog{
			Address:  log.Address.Hex(),
			Topics:   topics,
			Data:     hexutil.Encode(log.Data),
			LogIndex: uint64(log.Index),
		})
	}
	return view, nil
}

func (r *Runner) swapLogsByTx(ctx context.Context, blockRange BlockRange) (map[common.Hash][]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, blockRange.From, blockRange.To, nil, []common.Hash{r.cfg.SwapTopic})
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	byTx := make(map[common.Hash][]types.Log)
	for _, log := range logs {
		byTx[log.TxHash] = append(byTx[log.TxHash], log)
	}
	return byTx, nil
}

func (r *Runner) blockWithRetry(ctx context.Context, number uint64) (*types.Block, error) {
	var block *types.Block
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		block, err = r.chain.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			r.logger.Warn("block fetch failed", zap.Error(err), zap.Uint64("block_number", number))
		}
		return err
	})
	return block, err
}

func (r *Runner) senderWithRetry(ctx context.Context, block *types.Block, cand candidate) (common.Address, error) {
	var sender common.Address
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		sender, err = r.chain.TransactionSender(ctx, cand.tx, block.Hash(), cand.index)
		return err
	})
	return sender, err
}

func (r *Runner) isWatched(addr common.Address) bool {
	_, ok := r.watched[addr]
	return ok
}
