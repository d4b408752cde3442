package state

// Network names a source chain the way history rows key it.
type Network string

const (
	NetworkNineChronicles Network = "nineChronicles"
	NetworkEthereum       Network = "ethereum"
)

// ExchangeStatus is the disposition of an observed source event.
//
//	emitted  - counter-chain action dispatched; a refund leg may be annotated
//	refunded - nothing emitted, the source amount went back to the sender
//	rejected - nothing emitted, nothing returned (banned sender, bad tag)
//	failed   - emission dispatched but the counter chain reported an error
type ExchangeStatus string

const (
	StatusEmitted  ExchangeStatus = "emitted"
	StatusRefunded ExchangeStatus = "refunded"
	StatusRejected ExchangeStatus = "rejected"
	StatusFailed   ExchangeStatus = "failed"
)

// JSONExchangeRecord is the reporter-facing view of an exchange row.
type JSONExchangeRecord struct {
	Network     string `json:"network"`
	TxID        string `json:"tx_id"`
	LogIndex    uint   `json:"log_index"`
	Sender      string `json:"sender"`
	Sink        string `json:"sink"`
	Requested   string `json:"requested"`
	Sent        string `json:"sent"`
	Fee         string `json:"fee"`
	Refunded    string `json:"refunded"`
	CounterTxID string `json:"counter_tx_id,omitempty"`
	RefundTxID  string `json:"refund_tx_id,omitempty"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}
