/*
Package ethsync wires Chain-E into the shared monitor loop: a Source
that follows confirmed blocks for wNCG burn logs, and an Observer that
turns each burn into a Chain-N NCG transfer.
*/
package ethsync

import (
	"context"

	"github.com/moreal/NineChronicles.EthBridge/etherman"
)

// MonitorName keys the Chain-E cursor row.
const MonitorName = "ethereum"

type Source struct {
	chain         EthReader
	confirmations int64
}

func NewSource(chain EthReader, confirmations int64) *Source {
	return &Source{chain: chain, confirmations: confirmations}
}

// TipIndex is the newest block old enough to act on.
func (s *Source) TipIndex(ctx context.Context) (int64, error) {
	tip, err := s.chain.TipNumber(ctx)
	if err != nil {
		return 0, err
	}
	return tip - s.confirmations, nil
}

func (s *Source) BlockHash(ctx context.Context, index int64) (string, error) {
	return s.chain.BlockHashByNumber(ctx, index)
}

func (s *Source) BlockIndex(ctx context.Context, blockHash string) (int64, error) {
	return s.chain.BlockNumberByHash(ctx, blockHash)
}

func (s *Source) EventsIn(ctx context.Context, index int64) ([]etherman.BurnEvent, error) {
	return s.chain.BurnEvents(ctx, index)
}

func (s *Source) TriggeredBlocks(index int64) []int64 {
	return []int64{index}
}
