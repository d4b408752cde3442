package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval   = 15 * time.Second
	DefaultStallThreshold = 5 * time.Minute
)

type Config struct {
	// Name keys the cursor row and tags every log line and alert.
	Name string
	// PollInterval is the sleep between polls while at tip.
	PollInterval time.Duration
	// StallThreshold is how long the monitor may make no progress before
	// it pages.
	StallThreshold time.Duration
}

type Monitor[E Event] struct {
	name           string
	pollInterval   time.Duration
	stallThreshold time.Duration

	source   Source[E]
	observer Observer[E]
	cursors  CursorStore
	sink     ErrorSink
	pager    Pager
}

func New[E Event](cfg *Config, source Source[E], observer Observer[E], cursors CursorStore,
	sink ErrorSink, pager Pager) (*Monitor[E], error) {
	if cfg == nil || cfg.Name == "" {
		return nil, errors.New("monitor: name is required")
	}
	if source == nil || observer == nil || cursors == nil {
		return nil, fmt.Errorf("monitor %s: source, observer and cursor store are required", cfg.Name)
	}

	m := &Monitor[E]{
		name:           cfg.Name,
		pollInterval:   cfg.PollInterval,
		stallThreshold: cfg.StallThreshold,
		source:         source,
		observer:       observer,
		cursors:        cursors,
		sink:           sink,
		pager:          pager,
	}
	if m.pollInterval <= 0 {
		m.pollInterval = DefaultPollInterval
	}
	if m.stallThreshold <= 0 {
		m.stallThreshold = DefaultStallThreshold
	}
	return m, nil
}

// Run drives the loop until ctx is cancelled or the cursor turns out to be
// reorged. Transient errors are logged, captured and absorbed; the loop is
// the long-lived heart of the bridge and must not die on a flaky RPC.
func (m *Monitor[E]) Run(ctx context.Context) error {
	loc, resumed, err := m.cursors.Load(m.name)
	if err != nil {
		return fmt.Errorf("monitor %s: load cursor: %w", m.name, err)
	}

	var latest int64
	if resumed {
		logger.WithFields(logger.Fields{
			"monitor":   m.name,
			"blockHash": loc.BlockHash,
			"txId":      loc.TxID,
		}).Info("resuming from stored cursor")

		next, err := m.replay(ctx, loc)
		if err != nil {
			return err
		}
		latest = next - 1
	} else {
		latest, err = m.firstTip(ctx)
		if err != nil {
			return err
		}
		logger.WithFields(logger.Fields{"monitor": m.name, "tip": latest}).
			Info("no stored cursor, starting at tip")
	}

	lastProgress := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tip, err := m.source.TipIndex(ctx)
		if err != nil {
			m.warn(fmt.Errorf("tip index: %w", err))
		} else if latest+1 <= tip {
			for _, index := range m.source.TriggeredBlocks(latest + 1) {
				if err := m.processBlock(ctx, index); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					m.fail(fmt.Errorf("process block %d: %w", index, err))
				}
			}
			latest++
			lastProgress = time.Now()
			continue
		}

		// No progress this round: tip fetch failed or we are at tip.
		if time.Since(lastProgress) > m.stallThreshold {
			m.pageStall(ctx, latest)
			lastProgress = time.Now()
		}
		if !m.sleep(ctx) {
			return ctx.Err()
		}
	}
}

// replay re-delivers everything after the stored cursor up to the confirmed
// tip and returns the next unprocessed index. A cursor whose block is not
// canonical any more is fatal.
func (m *Monitor[E]) replay(ctx context.Context, loc TransactionLocation) (int64, error) {
	start, err := m.source.BlockIndex(ctx, loc.BlockHash)
	if err != nil {
		return 0, &ReorgedCursorError{Monitor: m.name, Cursor: loc, Cause: err}
	}
	tip, err := m.source.TipIndex(ctx)
	if err != nil {
		return 0, fmt.Errorf("monitor %s: tip index during resume: %w", m.name, err)
	}

	for index := start; index <= tip; index++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		hash, err := m.source.BlockHash(ctx, index)
		if err != nil {
			m.fail(fmt.Errorf("replay block %d: block hash: %w", index, err))
			continue
		}
		events, err := m.source.EventsIn(ctx, index)
		if err != nil {
			m.fail(fmt.Errorf("replay block %d: events: %w", index, err))
			continue
		}
		if index == start {
			events = dropThrough(events, loc.TxID)
		}
		if err := m.deliver(ctx, BlockEnvelope[E]{BlockHash: hash, BlockIndex: index, Events: events}); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			m.fail(fmt.Errorf("replay block %d: %w", index, err))
		}
	}
	return tip + 1, nil
}

func (m *Monitor[E]) processBlock(ctx context.Context, index int64) error {
	hash, err := m.source.BlockHash(ctx, index)
	if err != nil {
		return fmt.Errorf("block hash: %w", err)
	}
	events, err := m.source.EventsIn(ctx, index)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	return m.deliver(ctx, BlockEnvelope[E]{BlockHash: hash, BlockIndex: index, Events: events})
}

// deliver hands the envelope to the observer and, only when that succeeds,
// moves the cursor to the end of the block.
func (m *Monitor[E]) deliver(ctx context.Context, envelope BlockEnvelope[E]) error {
	if err := m.observer.Notify(ctx, envelope); err != nil {
		return fmt.Errorf("notify observer: %w", err)
	}

	loc := TransactionLocation{BlockHash: envelope.BlockHash}
	if n := len(envelope.Events); n > 0 {
		loc.TxID = envelope.Events[n-1].TransactionID()
	}
	if err := m.cursors.Save(m.name, loc); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// firstTip blocks until the source answers its first tip query.
func (m *Monitor[E]) firstTip(ctx context.Context) (int64, error) {
	for {
		tip, err := m.source.TipIndex(ctx)
		if err == nil {
			return tip, nil
		}
		m.warn(fmt.Errorf("tip index at startup: %w", err))
		if !m.sleep(ctx) {
			return 0, ctx.Err()
		}
	}
}

func (m *Monitor[E]) sleep(ctx context.Context) bool {
	t := time.NewTimer(m.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *Monitor[E]) warn(err error) {
	logger.WithFields(logger.Fields{"monitor": m.name}).Warn(err)
	m.capture(err)
}

func (m *Monitor[E]) fail(err error) {
	logger.WithFields(logger.Fields{"monitor": m.name}).Error(err)
	m.capture(err)
}

func (m *Monitor[E]) capture(err error) {
	if m.sink != nil {
		m.sink.Capture(err, map[string]string{"monitor": m.name})
	}
}

func (m *Monitor[E]) pageStall(ctx context.Context, latest int64) {
	logger.WithFields(logger.Fields{"monitor": m.name, "latest": latest}).
		Errorf("no progress for %s", m.stallThreshold)
	if m.pager == nil {
		return
	}
	err := m.pager.Page(ctx, fmt.Sprintf("bridge monitor %q stalled", m.name), map[string]interface{}{
		"monitor":        m.name,
		"latest":         latest,
		"stallThreshold": m.stallThreshold.String(),
	})
	if err != nil {
		logger.WithFields(logger.Fields{"monitor": m.name}).Warnf("page failed: %v", err)
	}
}

// dropThrough returns the events strictly after txID. An empty or unmatched
// txID keeps the whole slice: the cursor's block either had no watched
// events or the stored tx vanished with a shallow reorg, and replaying is
// the safe direction because history suppresses duplicates.
func dropThrough[E Event](events []E, txID string) []E {
	if txID == "" {
		return events
	}
	for i, ev := range events {
		if ev.TransactionID() == txID {
			return events[i+1:]
		}
	}
	return events
}
