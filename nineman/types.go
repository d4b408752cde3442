package nineman

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Scalars of the Chain-N node's GraphQL schema. The client library
// derives variable type names from these.

type ByteString string

func (ByteString) GetGraphQLType() string { return "ByteString" }

type Address string

func (Address) GetGraphQLType() string { return "Address" }

// NCGTransferredEvent is one NCG transfer observed in a confirmed
// block, as reported by the node for the bridge custody address.
type NCGTransferredEvent struct {
	BlockHash string
	TxID      string
	Sender    ethcommon.Address
	Recipient ethcommon.Address
	Amount    decimal.Decimal
	Memo      string
}

func (e NCGTransferredEvent) TransactionID() string { return e.TxID }
