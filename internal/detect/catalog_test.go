package detect

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"agentScope/internal/model"
)

func TestCatalogDecodeLogSwap(t *testing.T) {
	catalog, err := NewCatalog(poolABIJSON, nil, []string{"Swap"})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	raw := buildSwapLog(t, pool, big.NewInt(-1000), big.NewInt(2000), big.NewInt(123456789), big.NewInt(987654321), big.NewInt(-15), 1)

	name, args, err := catalog.DecodeLog(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if name != "Swap" {
		t.Fatalf("name: %s", name)
	}

	amount0, ok := args["amount0"].(*big.Int)
	if !ok || amount0.Cmp(big.NewInt(-1000)) != 0 {
		t.Fatalf("amount0: %v", args["amount0"])
	}
	tick, ok := args["tick"].(*big.Int)
	if !ok || tick.Cmp(big.NewInt(-15)) != 0 {
		t.Fatalf("tick: %v", args["tick"])
	}
	sender, ok := args["sender"].(common.Address)
	if !ok || sender != common.HexToAddress("0x2222222222222222222222222222222222222222") {
		t.Fatalf("sender: %v", args["sender"])
	}
}

func TestCatalogDecodeLogTopicCountMismatch(t *testing.T) {
	catalog, err := NewCatalog(poolABIJSON, nil, []string{"Swap"})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	raw := buildSwapLog(t, pool, big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(4), big.NewInt(5), 1)
	raw.Topics = raw.Topics[:2]

	if _, _, err := catalog.DecodeLog(raw); err == nil {
		t.Fatalf("expected error for missing indexed topics")
	}
}

func TestCatalogDecodeLogUnsupportedTopic(t *testing.T) {
	catalog, err := NewCatalog(poolABIJSON, nil, []string{"Swap"})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	raw := model.RawLog{
		Address: "0x1111111111111111111111111111111111111111",
		Topics:  []string{common.HexToHash("0x01").Hex()},
		Data:    "0x",
	}

	if _, _, err := catalog.DecodeLog(raw); err == nil {
		t.Fatalf("expected error for unsupported topic0")
	}
}

func TestCatalogDecodeCallTruncatedArguments(t *testing.T) {
	catalog := registryCatalog(t)

	input := packCall(t, registryABIJSON, "updateAgent",
		big.NewInt(1),
		"m",
		[]*big.Int{big.NewInt(137)},
	)

	// Known selector with a truncated payload is a real decode error, unlike
	// an unknown selector.
	_, _, ok, err := catalog.DecodeCall(input[:len(input)-8])
	if err == nil && ok {
		t.Fatalf("truncated payload must not decode")
	}
}

func TestCatalogRejectsMissingNames(t *testing.T) {
	if _, err := NewCatalog(registryABIJSON, []string{"destroyAgent"}, nil); err == nil {
		t.Fatalf("expected error for missing method")
	}
	if _, err := NewCatalog(poolABIJSON, nil, []string{"Mint"}); err == nil {
		t.Fatalf("expected error for missing event")
	}
}
