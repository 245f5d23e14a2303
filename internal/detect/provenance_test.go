package detect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// fakeCaller serves pool state reads and factory lookups from in-memory maps.
type fakeCaller struct {
	factory common.Address
	states  map[common.Address]PoolState
	pools   map[string]common.Address
	failing bool
}

func poolKey(token0, token1 common.Address, fee *big.Int) string {
	return fmt.Sprintf("%s:%s:%s", token0.Hex(), token1.Hex(), fee.String())
}

func (c *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if c.failing {
		return nil, errors.New("rpc unavailable")
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("bad call")
	}

	poolABI, err := PoolABI()
	if err != nil {
		return nil, err
	}
	factoryABI, err := FactoryABI()
	if err != nil {
		return nil, err
	}

	if *msg.To == c.factory {
		method := factoryABI.Methods["getPool"]
		if !bytes.Equal(msg.Data[:4], method.ID) {
			return nil, errors.New("unexpected factory call")
		}
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		resolved := c.pools[poolKey(args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int))]
		return method.Outputs.Pack(resolved)
	}

	state, ok := c.states[*msg.To]
	if !ok {
		return nil, fmt.Errorf("no state for %s", msg.To.Hex())
	}

	switch {
	case bytes.Equal(msg.Data[:4], poolABI.Methods["token0"].ID):
		return poolABI.Methods["token0"].Outputs.Pack(state.Token0)
	case bytes.Equal(msg.Data[:4], poolABI.Methods["token1"].ID):
		return poolABI.Methods["token1"].Outputs.Pack(state.Token1)
	case bytes.Equal(msg.Data[:4], poolABI.Methods["fee"].ID):
		return poolABI.Methods["fee"].Outputs.Pack(state.Fee)
	default:
		return nil, errors.New("unexpected pool call")
	}
}

func TestFactoryVerifierLegitimate(t *testing.T) {
	factory := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	pool := common.HexToAddress("0x0000000000000000000000000000000000000003")
	state := PoolState{
		Token0: common.HexToAddress("0x01"),
		Token1: common.HexToAddress("0x02"),
		Fee:    big.NewInt(3000),
	}

	caller := &fakeCaller{
		factory: factory,
		states:  map[common.Address]PoolState{pool: state},
		pools:   map[string]common.Address{poolKey(state.Token0, state.Token1, state.Fee): pool},
	}

	verifier, err := NewFactoryVerifier(caller, factory.Hex(), zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	if !verifier.Legitimate(context.Background(), pool.Hex()) {
		t.Fatalf("expected legitimate pool")
	}
}

func TestFactoryVerifierSpoofedPool(t *testing.T) {
	factory := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	pool := common.HexToAddress("0x0000000000000000000000000000000000000003")
	impostor := common.HexToAddress("0x0000000000000000000000000000000000000009")
	state := PoolState{
		Token0: common.HexToAddress("0x01"),
		Token1: common.HexToAddress("0x02"),
		Fee:    big.NewInt(3000),
	}

	caller := &fakeCaller{
		factory: factory,
		states: map[common.Address]PoolState{
			pool:     state,
			impostor: state,
		},
		pools: map[string]common.Address{poolKey(state.Token0, state.Token1, state.Fee): pool},
	}

	verifier, err := NewFactoryVerifier(caller, factory.Hex(), zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	// Same topic-shaped event, same constituent parameters, but the factory
	// resolves the parameters to a different contract.
	if verifier.Legitimate(context.Background(), impostor.Hex()) {
		t.Fatalf("spoofed pool must not be legitimate")
	}
}

func TestFactoryVerifierQueryFailure(t *testing.T) {
	factory := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	caller := &fakeCaller{factory: factory, failing: true}

	verifier, err := NewFactoryVerifier(caller, factory.Hex(), zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	// An RPC failure degrades to "not legitimate" instead of propagating.
	if verifier.Legitimate(context.Background(), "0x0000000000000000000000000000000000000003") {
		t.Fatalf("failed query must not be legitimate")
	}
}

func TestDerivedVerifierRoundTrip(t *testing.T) {
	factory := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	state := PoolState{
		Token0: common.HexToAddress("0x01"),
		Token1: common.HexToAddress("0x02"),
		Fee:    big.NewInt(500),
	}

	salt, err := PoolSalt(state.Token0, state.Token1, state.Fee)
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	hash, err := ParseInitCodeHash(poolInitCodeHash)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	pool, err := DeriveAddress(factory, salt, hash)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	impostor := common.HexToAddress("0x0000000000000000000000000000000000000009")
	caller := &fakeCaller{
		factory: factory,
		states: map[common.Address]PoolState{
			pool:     state,
			impostor: state,
		},
	}

	verifier, err := NewDerivedVerifier(caller, factory.Hex(), poolInitCodeHash, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	if !verifier.Legitimate(context.Background(), pool.Hex()) {
		t.Fatalf("derived pool must be legitimate")
	}
	if verifier.Legitimate(context.Background(), impostor.Hex()) {
		t.Fatalf("impostor must not be legitimate")
	}
}

func TestDerivedVerifierRejectsBadHashConstant(t *testing.T) {
	factory := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	if _, err := NewDerivedVerifier(&fakeCaller{}, factory.Hex(), "0x1234", zap.NewNop(), nil); err == nil {
		t.Fatalf("expected error for malformed init code hash")
	}
}
