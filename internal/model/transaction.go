package model

// TransactionView is the read-only view of one transaction handed to detectors.
type TransactionView struct {
	From  string      `json:"from"`
	To    string      `json:"to"`
	Calls []CallFrame `json:"calls"`
	Logs  []RawLog    `json:"logs"`
}

// CallFrame is one function call carried by a transaction.
type CallFrame struct {
	To    string `json:"to"`
	Input string `json:"input"`
}

// RawLog is an undecoded chain log.
type RawLog struct {
	Address  string   `json:"address"`
	Topics   []string `json:"topics"`
	Data     string   `json:"data"`
	LogIndex uint64   `json:"log_index"`
}
