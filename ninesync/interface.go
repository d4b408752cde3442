package ninesync

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/moreal/NineChronicles.EthBridge/nineman"
)

// NineReader is the read-only slice of the Chain-N client the source needs.
type NineReader interface {
	TipIndex(ctx context.Context) (int64, error)
	BlockHash(ctx context.Context, index int64) (string, error)
	BlockIndex(ctx context.Context, hash string) (int64, error)
	TransferEvents(ctx context.Context, index int64, recipient ethcommon.Address) ([]nineman.NCGTransferredEvent, error)
}

// WNCGMinter mints wrapped tokens on Chain-E. The returned string is the
// mint transaction hash.
type WNCGMinter interface {
	Mint(ctx context.Context, recipient ethcommon.Address, amount *big.Int) (string, error)
}

// NineTransferor returns NCG to a sender when an exchange cannot proceed
// as requested.
type NineTransferor interface {
	Transfer(ctx context.Context, recipient ethcommon.Address, amount decimal.Decimal, memo string) (string, error)
}

// Messenger posts operator-facing chat messages. Failures are logged,
// never propagated.
type Messenger interface {
	SendMessage(ctx context.Context, text string) error
}

// AuditStore appends one free-form document per exchange.
type AuditStore interface {
	Index(ctx context.Context, document map[string]interface{}) error
}
