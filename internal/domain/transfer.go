package domain

// TransferRecord is one line of a replayable transfer log.
// An empty or zero From means a mint; an empty or zero To means a burn.
type TransferRecord struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Timestamp uint32 `json:"timestamp"` // Unix seconds
}
