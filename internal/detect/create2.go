package detect

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	saltArgs     abi.Arguments
	saltArgsOnce sync.Once
	saltArgsErr  error
)

func saltArguments() (abi.Arguments, error) {
	saltArgsOnce.Do(func() {
		addressType, err := abi.NewType("address", "", nil)
		if err != nil {
			saltArgsErr = err
			return
		}
		uint24Type, err := abi.NewType("uint24", "", nil)
		if err != nil {
			saltArgsErr = err
			return
		}
		saltArgs = abi.Arguments{
			{Type: addressType},
			{Type: addressType},
			{Type: uint24Type},
		}
	})
	return saltArgs, saltArgsErr
}

// PoolSalt derives the CREATE2 salt for a pool: the keccak-256 hash of the
// ABI-packed (token0, token1, fee) tuple. Tokens are packed in the order
// given; the factory stores them pre-sorted, so callers pass its order.
func PoolSalt(token0, token1 common.Address, fee *big.Int) ([32]byte, error) {
	args, err := saltArguments()
	if err != nil {
		return [32]byte{}, fmt.Errorf("salt arguments: %w", err)
	}
	packed, err := args.Pack(token0, token1, fee)
	if err != nil {
		return [32]byte{}, fmt.Errorf("pack salt: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// DeriveAddress computes the deterministic deployment address
// keccak256(0xff ++ creator ++ salt ++ initCodeHash)[12:].
func DeriveAddress(creator common.Address, salt [32]byte, initCodeHash []byte) (common.Address, error) {
	if len(initCodeHash) != 32 {
		return common.Address{}, fmt.Errorf("init code hash length %d, want 32", len(initCodeHash))
	}
	return crypto.CreateAddress2(creator, salt, initCodeHash), nil
}

// ParseInitCodeHash decodes a 32-byte hex hash constant.
func ParseInitCodeHash(input string) ([]byte, error) {
	data, err := hexutil.Decode(input)
	if err != nil {
		return nil, fmt.Errorf("invalid init code hash: %w", err)
	}
	if len(data) != 32 {
		return nil, fmt.Errorf("init code hash length %d, want 32", len(data))
	}
	return data, nil
}
