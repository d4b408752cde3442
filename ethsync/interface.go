package ethsync

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/moreal/NineChronicles.EthBridge/etherman"
)

// EthReader is the read-only slice of etherman the source needs.
type EthReader interface {
	TipNumber(ctx context.Context) (int64, error)
	BlockHashByNumber(ctx context.Context, number int64) (string, error)
	BlockNumberByHash(ctx context.Context, hash string) (int64, error)
	BurnEvents(ctx context.Context, number int64) ([]etherman.BurnEvent, error)
}

// NineTransferor dispatches NCG from the custodial account.
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
