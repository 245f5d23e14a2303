package detect

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ContractCaller is the read-only chain-state capability verifiers need.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Verifier decides whether a log-emitting contract genuinely belongs to the
// watched family. Query failures degrade to "not legitimate": one bad pool
// must never abort the rest of the transaction.
type Verifier interface {
	Legitimate(ctx context.Context, pool string) bool
}

// PoolState is the constituent parameters read back from a pool contract.
type PoolState struct {
	Token0 common.Address
	Token1 common.Address
	Fee    *big.Int
}

// ReadPoolState queries token0, token1 and fee from the pool.
func ReadPoolState(ctx context.Context, caller ContractCaller, pool common.Address) (PoolState, error) {
	parsed, err := PoolABI()
	if err != nil {
		return PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	call := func(method string) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &pool, Data: data}
		resp, err := caller.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		return values, nil
	}

	var state PoolState

	values, err := call("token0")
	if err != nil {
		return PoolState{}, err
	}
	state.Token0, err = asAddress(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("token0: %w", err)
	}

	values, err = call("token1")
	if err != nil {
		return PoolState{}, err
	}
	state.Token1, err = asAddress(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("token1: %w", err)
	}

	values, err = call("fee")
	if err != nil {
		return PoolState{}, err
	}
	state.Fee, err = asBigInt(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("fee: %w", err)
	}

	return state, nil
}

// FactoryVerifier confirms membership with a round trip to the factory:
// getPool(token0, token1, fee) must resolve back to the emitting address.
type FactoryVerifier struct {
	caller   ContractCaller
	factory  common.Address
	logger   *zap.Logger
	failures prometheus.Counter
}

func NewFactoryVerifier(caller ContractCaller, factory string, logger *zap.Logger, failures prometheus.Counter) (*FactoryVerifier, error) {
	if !common.IsHexAddress(factory) {
		return nil, fmt.Errorf("invalid factory address: %s", factory)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FactoryVerifier{
		caller:   caller,
		factory:  common.HexToAddress(factory),
		logger:   logger,
		failures: failures,
	}, nil
}

func (v *FactoryVerifier) Legitimate(ctx context.Context, pool string) bool {
	if !common.IsHexAddress(pool) {
		return false
	}
	poolAddr := common.HexToAddress(pool)

	state, err := ReadPoolState(ctx, v.caller, poolAddr)
	if err != nil {
		v.reject(pool, err)
		return false
	}

	parsed, err := FactoryABI()
	if err != nil {
		v.reject(pool, err)
		return false
	}
	data, err := parsed.Pack("getPool", state.Token0, state.Token1, state.Fee)
	if err != nil {
		v.reject(pool, err)
		return false
	}
	msg := ethereum.CallMsg{To: &v.factory, Data: data}
	resp, err := v.caller.CallContract(ctx, msg, nil)
	if err != nil {
		v.reject(pool, err)
		return false
	}
	values, err := parsed.Unpack("getPool", resp)
	if err != nil {
		v.reject(pool, err)
		return false
	}
	resolved, err := asAddress(values[0])
	if err != nil {
		v.reject(pool, err)
		return false
	}

	return resolved == poolAddr
}

func (v *FactoryVerifier) reject(pool string, err error) {
	v.logger.Warn("factory verification failed", zap.String("pool", pool), zap.Error(err))
	if v.failures != nil {
		v.failures.Inc()
	}
}

// DerivedVerifier confirms membership without querying the factory: it reads
// the pool's parameters and recomputes the CREATE2 address locally.
type DerivedVerifier struct {
	caller       ContractCaller
	factory      common.Address
	initCodeHash []byte
	logger       *zap.Logger
	failures     prometheus.Counter
}

func NewDerivedVerifier(caller ContractCaller, factory, initCodeHash string, logger *zap.Logger, failures prometheus.Counter) (*DerivedVerifier, error) {
	if !common.IsHexAddress(factory) {
		return nil, fmt.Errorf("invalid factory address: %s", factory)
	}
	hash, err := ParseInitCodeHash(initCodeHash)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DerivedVerifier{
		caller:       caller,
		factory:      common.HexToAddress(factory),
		initCodeHash: hash,
		logger:       logger,
		failures:     failures,
	}, nil
}

func (v *DerivedVerifier) Legitimate(ctx context.Context, pool string) bool {
	if !common.IsHexAddress(pool) {
		return false
	}
	poolAddr := common.HexToAddress(pool)

	state, err := ReadPoolState(ctx, v.caller, poolAddr)
	if err != nil {
		v.reject(pool, err)
		return false
	}

	salt, err := PoolSalt(state.Token0, state.Token1, state.Fee)
	if err != nil {
		v.reject(pool, err)
		return false
	}
	derived, err := DeriveAddress(v.factory, salt, v.initCodeHash)
	if err != nil {
		v.reject(pool, err)
		return false
	}

	return derived == poolAddr
}

func (v *DerivedVerifier) reject(pool string, err error) {
	v.logger.Warn("derived verification failed", zap.String("pool", pool), zap.Error(err))
	if v.failures != nil {
		v.failures.Inc()
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
