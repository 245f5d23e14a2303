package detect

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"agentScope/internal/model"
)

// MatchedEvent is a decoded call or log that matched a catalog entry and a
// watched address.
type MatchedEvent struct {
	Name    string
	Args    map[string]interface{}
	Address string
}

// MatchCalls decodes the transaction's call frames against the catalog and
// retains only those targeting the watched address. Frames that do not decode
// against the catalog are skipped; they are expected, not errors.
func MatchCalls(tx model.TransactionView, catalog *Catalog, watched string) []MatchedEvent {
	matches := make([]MatchedEvent, 0)
	for _, frame := range tx.Calls {
		if !strings.EqualFold(frame.To, watched) {
			continue
		}
		name, args, ok, err := catalog.DecodeCall(frame.Input)
		if err != nil || !ok {
			continue
		}
		matches = append(matches, MatchedEvent{Name: name, Args: args, Address: frame.To})
	}
	return matches
}

// MatchLogs filters the transaction's raw logs to those whose first topic
// equals topic0. No address filter is applied here; provenance of the
// emitting contract is a separate step.
func MatchLogs(tx model.TransactionView, topic0 common.Hash) []model.RawLog {
	matches := make([]model.RawLog, 0)
	for _, log := range tx.Logs {
		if len(log.Topics) == 0 {
			continue
		}
		if !strings.EqualFold(log.Topics[0], topic0.Hex()) {
			continue
		}
		matches = append(matches, log)
	}
	return matches
}
