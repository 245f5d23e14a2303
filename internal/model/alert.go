package model

// Severity and category values used by every detector in this system.
const (
	SeverityLow  = "Low"
	CategoryInfo = "Info"
)

// Alert is the normalized detection record.
type Alert struct {
	AlertID     string            `json:"alert_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Severity    string            `json:"severity"`
	Category    string            `json:"category"`
	Metadata    map[string]string `json:"metadata"`
}

// AlertEnvelope wraps an Alert with chain context for delivery sinks.
type AlertEnvelope struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	Timestamp   uint64 `json:"timestamp"`
	EmittedAt   string `json:"emitted_at"`
	Alert       Alert  `json:"alert"`
}
