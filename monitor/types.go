// Package monitor drives a confirmed-block event loop for a single chain:
// resume from a durable cursor, fetch each block's events in order, hand
// them to an observer, persist the cursor, and keep going until the process
// exits. Chain specifics live behind Source; the loop itself is shared by
// every chain the bridge watches.
package monitor

import "context"

// TransactionLocation marks the last fully processed boundary of a chain:
// the block hash plus the tx id of the last handled event in that block.
// TxID is empty when the block carried no watched events.
type TransactionLocation struct {
	BlockHash string
	TxID      string
}

// Event is anything a Source can place into a block envelope.
type Event interface {
	TransactionID() string
}

// BlockEnvelope delivers one block's worth of events atomically. Ordering
// inside Events matches on-chain intra-block order.
type BlockEnvelope[E Event] struct {
	BlockHash  string
	BlockIndex int64
	Events     []E
}

// Source supplies the chain-specific primitives the loop needs. TipIndex
// must already account for the confirmation depth: it returns the newest
// index the bridge is allowed to act on, not the raw chain tip.
type Source[E Event] interface {
	TipIndex(ctx context.Context) (int64, error)
	BlockHash(ctx context.Context, index int64) (string, error)
	BlockIndex(ctx context.Context, blockHash string) (int64, error)
	EventsIn(ctx context.Context, index int64) ([]E, error)

	// TriggeredBlocks lets a source expand one block index into several
	// processing steps (virtual indices). Most sources return {index}.
	TriggeredBlocks(index int64) []int64
}

// Observer handles one envelope at a time, in order. An error skips the
// cursor write for that envelope so a restart replays it; the observer's
// own history store keeps the replay from double-emitting.
type Observer[E Event] interface {
	Notify(ctx context.Context, envelope BlockEnvelope[E]) error
}

// CursorStore persists locations across restarts.
type CursorStore interface {
	Load(name string) (TransactionLocation, bool, error)
	Save(name string, loc TransactionLocation) error
}

// ErrorSink captures handled errors for later inspection. A nil sink is
// valid and means capturing is disabled.
type ErrorSink interface {
	Capture(err error, tags map[string]string)
}

// Pager raises an operator-level alert. A nil pager is valid.
type Pager interface {
	Page(ctx context.Context, summary string, details map[string]interface{}) error
}
