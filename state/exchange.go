package state

import (
	"fmt"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/moreal/NineChronicles.EthBridge/common"
)

// ExchangeRecord is the durable evidence that a source event was observed
// and acted upon. Requested, Sent, Fee and Refunded are NCG amounts; for
// records that actually moved value, requested = sent + fee + refunded.
type ExchangeRecord struct {
	Network     Network
	TxID        string
	LogIndex    uint
	Sender      ethcommon.Address
	Sink        ethcommon.Address
	Requested   decimal.Decimal
	Sent        decimal.Decimal
	Fee         decimal.Decimal
	Refunded    decimal.Decimal
	CounterTxID string
	RefundTxID  string
	Status      ExchangeStatus
	Note        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *ExchangeRecord) String() string {
	return fmt.Sprintf("%+v", *r)
}

// Balanced reports whether the amount columns satisfy
// requested = sent + fee + refunded.
func (r *ExchangeRecord) Balanced() bool {
	return r.Requested.Equal(r.Sent.Add(r.Fee).Add(r.Refunded))
}

func (r *ExchangeRecord) JSON() *JSONExchangeRecord {
	return &JSONExchangeRecord{
		Network:     string(r.Network),
		TxID:        r.TxID,
		LogIndex:    r.LogIndex,
		Sender:      common.ByteSliceToPureHexStr(r.Sender.Bytes()),
		Sink:        common.ByteSliceToPureHexStr(r.Sink.Bytes()),
		Requested:   r.Requested.String(),
		Sent:        r.Sent.String(),
		Fee:         r.Fee.String(),
		Refunded:    r.Refunded.String(),
		CounterTxID: r.CounterTxID,
		RefundTxID:  r.RefundTxID,
		Status:      string(r.Status),
		Note:        r.Note,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// normTxID strips any 0x prefix and lower-cases so EVM hashes and Chain-N
// tx ids dedup under one representation.
func normTxID(txID string) string {
	return strings.ToLower(common.Trim0xPrefix(txID))
}

type sqlExchange struct {
	Network     string
	TxID        string
	LogIndex    int64
	Sender      string
	Sink        string
	Requested   string
	Sent        string
	Fee         string
	Refunded    string
	CounterTxID *string
	RefundTxID  *string
	Status      string
	Note        *string
	CreatedAt   string
	UpdatedAt   string
}

func (s *sqlExchange) encode(r *ExchangeRecord) *sqlExchange {
	s.Network = string(r.Network)
	s.TxID = normTxID(r.TxID)
	s.LogIndex = int64(r.LogIndex)
	s.Sender = common.ByteSliceToPureHexStr(r.Sender.Bytes())
	s.Sink = common.ByteSliceToPureHexStr(r.Sink.Bytes())
	s.Requested = r.Requested.String()
	s.Sent = r.Sent.String()
	s.Fee = r.Fee.String()
	s.Refunded = r.Refunded.String()
	if r.CounterTxID != "" {
		v := normTxID(r.CounterTxID)
		s.CounterTxID = &v
	}
	if r.RefundTxID != "" {
		v := normTxID(r.RefundTxID)
		s.RefundTxID = &v
	}
	s.Status = string(r.Status)
	if r.Note != "" {
		v := r.Note
		s.Note = &v
	}
	s.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	s.UpdatedAt = r.UpdatedAt.UTC().Format(time.RFC3339)
	return s
}

func (s *sqlExchange) decode() (*ExchangeRecord, error) {
	requested, err := decimal.NewFromString(s.Requested)
	if err != nil {
		return nil, fmt.Errorf("decode requested %q: %w", s.Requested, err)
	}
	sent, err := decimal.NewFromString(s.Sent)
	if err != nil {
		return nil, fmt.Errorf("decode sent %q: %w", s.Sent, err)
	}
	fee, err := decimal.NewFromString(s.Fee)
	if err != nil {
		return nil, fmt.Errorf("decode fee %q: %w", s.Fee, err)
	}
	refunded, err := decimal.NewFromString(s.Refunded)
	if err != nil {
		return nil, fmt.Errorf("decode refunded %q: %w", s.Refunded, err)
	}
	createdAt, err := time.Parse(time.RFC3339, s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode createdAt %q: %w", s.CreatedAt, err)
	}
	updatedAt, err := time.Parse(time.RFC3339, s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode updatedAt %q: %w", s.UpdatedAt, err)
	}

	r := &ExchangeRecord{
		Network:   Network(s.Network),
		TxID:      s.TxID,
		LogIndex:  uint(s.LogIndex),
		Sender:    ethcommon.HexToAddress(s.Sender),
		Sink:      ethcommon.HexToAddress(s.Sink),
		Requested: requested,
		Sent:      sent,
		Fee:       fee,
		Refunded:  refunded,
		Status:    ExchangeStatus(s.Status),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if s.CounterTxID != nil {
		r.CounterTxID = *s.CounterTxID
	}
	if s.RefundTxID != nil {
		r.RefundTxID = *s.RefundTxID
	}
	if s.Note != nil {
		r.Note = *s.Note
	}
	return r, nil
}
