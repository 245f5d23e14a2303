package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"agentScope/internal/model"
)

// Detector is the per-transaction entry point. Implementations never return
// an error and never return nil: per-candidate failures degrade to "no alert".
type Detector interface {
	HandleTransaction(ctx context.Context, tx model.TransactionView) []model.Alert
}

// RegistryDetector watches createAgent/updateAgent calls on the bot registry,
// restricted to transactions sent by one known deployer.
type RegistryDetector struct {
	catalog  *Catalog
	registry string
	deployer string
	budget   *Budget
	logger   *zap.Logger
}

func NewRegistryDetector(registry, deployer string, budget *Budget, logger *zap.Logger) (*RegistryDetector, error) {
	if !common.IsHexAddress(registry) {
		return nil, fmt.Errorf("invalid registry address: %s", registry)
	}
	if !common.IsHexAddress(deployer) {
		return nil, fmt.Errorf("invalid deployer address: %s", deployer)
	}
	catalog, err := NewCatalog(registryABIJSON, []string{"createAgent", "updateAgent"}, nil)
	if err != nil {
		return nil, fmt.Errorf("registry catalog: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryDetector{
		catalog:  catalog,
		registry: registry,
		deployer: deployer,
		budget:   budget,
		logger:   logger,
	}, nil
}

func (d *RegistryDetector) HandleTransaction(_ context.Context, tx model.TransactionView) []model.Alert {
	alerts := make([]model.Alert, 0)
	if d.budget.Exhausted() {
		return alerts
	}
	if !strings.EqualFold(tx.From, d.deployer) {
		return alerts
	}

	for _, match := range MatchCalls(tx, d.catalog, d.registry) {
		alert, err := Normalize(match.Name, match.Args, d.deployer)
		if err != nil {
			d.logger.Warn("normalize failed", zap.String("name", match.Name), zap.Error(err))
			continue
		}
		if !d.budget.Acquire() {
			break
		}
		alerts = append(alerts, alert)
	}
	return alerts
}

// PoolSwapDetector watches Swap logs from V3 pools. The topic match is cheap
// and spoofable, so every candidate goes through the provenance verifier
// before it can produce an alert.
type PoolSwapDetector struct {
	catalog   *Catalog
	swapTopic common.Hash
	verifier  Verifier
	budget    *Budget
	logger    *zap.Logger
}

func NewPoolSwapDetector(verifier Verifier, budget *Budget, logger *zap.Logger) (*PoolSwapDetector, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	catalog, err := NewCatalog(poolABIJSON, nil, []string{"Swap"})
	if err != nil {
		return nil, fmt.Errorf("pool catalog: %w", err)
	}
	topic, ok := catalog.EventTopic("Swap")
	if !ok {
		return nil, fmt.Errorf("swap topic missing from catalog")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolSwapDetector{
		catalog:   catalog,
		swapTopic: topic,
		verifier:  verifier,
		budget:    budget,
		logger:    logger,
	}, nil
}

func (d *PoolSwapDetector) HandleTransaction(ctx context.Context, tx model.TransactionView) []model.Alert {
	alerts := make([]model.Alert, 0)
	if d.budget.Exhausted() {
		return alerts
	}

	for _, raw := range MatchLogs(tx, d.swapTopic) {
		if !d.verifier.Legitimate(ctx, raw.Address) {
			continue
		}
		name, args, err := d.catalog.DecodeLog(raw)
		if err != nil {
			d.logger.Warn("swap log decode failed", zap.String("pool", raw.Address), zap.Error(err))
			continue
		}
		args["poolAddress"] = raw.Address

		alert, err := Normalize(name, args, raw.Address)
		if err != nil {
			d.logger.Warn("normalize failed", zap.String("name", name), zap.Error(err))
			continue
		}
		if !d.budget.Acquire() {
			break
		}
		alerts = append(alerts, alert)
	}
	return alerts
}

// RouterSwapDetector watches exactInputSingle/exactOutputSingle calls on the
// swap router.
type RouterSwapDetector struct {
	catalog *Catalog
	router  string
	budget  *Budget
	logger  *zap.Logger
}

func NewRouterSwapDetector(router string, budget *Budget, logger *zap.Logger) (*RouterSwapDetector, error) {
	if !common.IsHexAddress(router) {
		return nil, fmt.Errorf("invalid router address: %s", router)
	}
	catalog, err := NewCatalog(routerABIJSON, []string{"exactInputSingle", "exactOutputSingle"}, nil)
	if err != nil {
		return nil, fmt.Errorf("router catalog: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouterSwapDetector{
		catalog: catalog,
		router:  router,
		budget:  budget,
		logger:  logger,
	}, nil
}

func (d *RouterSwapDetector) HandleTransaction(_ context.Context, tx model.TransactionView) []model.Alert {
	alerts := make([]model.Alert, 0)
	if d.budget.Exhausted() {
		return alerts
	}

	for _, match := range MatchCalls(tx, d.catalog, d.router) {
		alert, err := Normalize(match.Name, match.Args, d.router)
		if err != nil {
			d.logger.Warn("normalize failed", zap.String("name", match.Name), zap.Error(err))
			continue
		}
		if !d.budget.Acquire() {
			break
		}
		alerts = append(alerts, alert)
	}
	return alerts
}

// Engine runs a fixed set of detectors against each transaction, preserving
// detector order and, within each detector, input call/log order.
type Engine struct {
	detectors []Detector
	logger    *zap.Logger
}

func NewEngine(detectors []Detector, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{detectors: detectors, logger: logger}
}

func (e *Engine) HandleTransaction(ctx context.Context, tx model.TransactionView) []model.Alert {
	alerts := make([]model.Alert, 0)
	for _, detector := range e.detectors {
		alerts = append(alerts, detector.HandleTransaction(ctx, tx)...)
	}
	return alerts
}
