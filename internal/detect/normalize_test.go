package detect

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestNormalizeCreateAgent(t *testing.T) {
	args := map[string]interface{}{
		"agentId":  big.NewInt(1),
		"":         common.HexToAddress("0x02"),
		"metadata": "Mock metadata 1",
		"chainIds": []*big.Int{big.NewInt(137)},
	}

	deployer := "0x88dC3a2284FA62e0027d6D6B1fCfDd2141a143b8"
	alert, err := Normalize("createAgent", args, deployer)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if alert.AlertID != "AGENT-CREATE-1" {
		t.Fatalf("alert id: %s", alert.AlertID)
	}
	if alert.Severity != "Low" || alert.Category != "Info" {
		t.Fatalf("severity/category: %s/%s", alert.Severity, alert.Category)
	}
	if alert.Description != "Agent created by "+deployer {
		t.Fatalf("description: %s", alert.Description)
	}

	want := map[string]string{
		"agentId":  "1",
		"metadata": "Mock metadata 1",
		"chainIds": "137",
	}
	if len(alert.Metadata) != len(want) {
		t.Fatalf("metadata keys: %v", alert.Metadata)
	}
	for key, value := range want {
		if alert.Metadata[key] != value {
			t.Fatalf("metadata[%s] = %q, want %q", key, alert.Metadata[key], value)
		}
	}
}

func TestNormalizeChainIDsJoined(t *testing.T) {
	args := map[string]interface{}{
		"agentId":  big.NewInt(7),
		"metadata": "m",
		"chainIds": []*big.Int{big.NewInt(1), big.NewInt(137), big.NewInt(42161)},
	}

	alert, err := Normalize("updateAgent", args, "0x01")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if alert.AlertID != "AGENT-UPDATE-1" {
		t.Fatalf("alert id: %s", alert.AlertID)
	}
	if alert.Metadata["chainIds"] != "1,137,42161" {
		t.Fatalf("chainIds: %q", alert.Metadata["chainIds"])
	}
}

func TestNormalizeSwapDecimalFidelity(t *testing.T) {
	// liquidity exercises the full uint128 range, where float formatting or a
	// 64-bit cast would lose digits.
	liquidity, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	if !ok {
		t.Fatalf("liquidity literal")
	}
	sqrtPrice, ok := new(big.Int).SetString("1461446703485210103287273052203988822378723970341", 10)
	if !ok {
		t.Fatalf("sqrtPrice literal")
	}

	pool := "0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8"
	args := map[string]interface{}{
		"sender":       common.HexToAddress("0x02"),
		"recipient":    common.HexToAddress("0x03"),
		"amount0":      big.NewInt(-123456789),
		"amount1":      big.NewInt(987654321),
		"sqrtPriceX96": sqrtPrice,
		"liquidity":    liquidity,
		"tick":         big.NewInt(-887272),
		"poolAddress":  pool,
	}

	alert, err := Normalize("Swap", args, pool)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if alert.AlertID != "POOL-SWAP-1" {
		t.Fatalf("alert id: %s", alert.AlertID)
	}
	if alert.Description != "Swap event detected in pool "+pool {
		t.Fatalf("description: %s", alert.Description)
	}
	if alert.Metadata["amount0"] != "-123456789" {
		t.Fatalf("amount0: %q", alert.Metadata["amount0"])
	}
	if alert.Metadata["liquidity"] != "340282366920938463463374607431768211455" {
		t.Fatalf("liquidity: %q", alert.Metadata["liquidity"])
	}
	if alert.Metadata["sqrtPriceX96"] != "1461446703485210103287273052203988822378723970341" {
		t.Fatalf("sqrtPriceX96: %q", alert.Metadata["sqrtPriceX96"])
	}
	if alert.Metadata["tick"] != "-887272" {
		t.Fatalf("tick: %q", alert.Metadata["tick"])
	}
	if alert.Metadata["poolAddress"] != pool {
		t.Fatalf("poolAddress: %q", alert.Metadata["poolAddress"])
	}
}

func TestNormalizeFlattensTuple(t *testing.T) {
	params := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		Fee               *big.Int
		Recipient         common.Address
		AmountIn          *big.Int
		AmountOutMinimum  *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           common.HexToAddress("0x0a"),
		TokenOut:          common.HexToAddress("0x0b"),
		Fee:               big.NewInt(3000),
		Recipient:         common.HexToAddress("0x0c"),
		AmountIn:          big.NewInt(1000000),
		AmountOutMinimum:  big.NewInt(0),
		SqrtPriceLimitX96: big.NewInt(0),
	}

	alert, err := Normalize("exactInputSingle", map[string]interface{}{"params": params}, "0x01")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if alert.AlertID != "ROUTER-SWAP-1" {
		t.Fatalf("alert id: %s", alert.AlertID)
	}
	if _, ok := alert.Metadata["params"]; ok {
		t.Fatalf("tuple must be flattened, got params key: %v", alert.Metadata)
	}
	if alert.Metadata["tokenIn"] != params.TokenIn.Hex() {
		t.Fatalf("tokenIn: %q", alert.Metadata["tokenIn"])
	}
	if alert.Metadata["amountIn"] != "1000000" {
		t.Fatalf("amountIn: %q", alert.Metadata["amountIn"])
	}
	if alert.Metadata["fee"] != "3000" {
		t.Fatalf("fee: %q", alert.Metadata["fee"])
	}
}

func TestNormalizeUnknownName(t *testing.T) {
	if _, err := Normalize("destroyAgent", nil, "0x01"); err == nil {
		t.Fatalf("expected error for unmapped name")
	}
}

func TestNormalizeSubjectCasePreserved(t *testing.T) {
	subject := "0xAbCdEF0123456789abcdef0123456789ABCDEF01"
	alert, err := Normalize("Swap", map[string]interface{}{}, subject)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if alert.Description != "Swap event detected in pool "+subject {
		t.Fatalf("subject case altered: %s", alert.Description)
	}
}
