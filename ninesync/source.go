/*
Package ninesync wires Chain-N into the shared monitor loop: a Source
that follows confirmed blocks for NCG transfers into the bridge account,
and an Observer that turns each deposit into a wNCG mint, or refunds it
when the exchange policy says no.
*/
package ninesync

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/moreal/NineChronicles.EthBridge/nineman"
)

// MonitorName keys the Chain-N cursor row.
const MonitorName = "nineChronicles"

type Source struct {
	chain         NineReader
	bridge        ethcommon.Address
	confirmations int64
}

// NewSource watches transfers whose recipient is the bridge's custodial
// account.
func NewSource(chain NineReader, bridge ethcommon.Address, confirmations int64) *Source {
	return &Source{chain: chain, bridge: bridge, confirmations: confirmations}
}

// TipIndex is the newest block old enough to act on.
func (s *Source) TipIndex(ctx context.Context) (int64, error) {
	tip, err := s.chain.TipIndex(ctx)
	if err != nil {
		return 0, err
	}
	return tip - s.confirmations, nil
}

func (s *Source) BlockHash(ctx context.Context, index int64) (string, error) {
	return s.chain.BlockHash(ctx, index)
}

func (s *Source) BlockIndex(ctx context.Context, blockHash string) (int64, error) {
	return s.chain.BlockIndex(ctx, blockHash)
}

func (s *Source) EventsIn(ctx context.Context, index int64) ([]nineman.NCGTransferredEvent, error) {
	return s.chain.TransferEvents(ctx, index, s.bridge)
}

func (s *Source) TriggeredBlocks(index int64) []int64 {
	return []int64{index}
}
