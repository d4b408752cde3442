package ethsync

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moreal/NineChronicles.EthBridge/common"
	"github.com/moreal/NineChronicles.EthBridge/database"
	"github.com/moreal/NineChronicles.EthBridge/etherman"
	"github.com/moreal/NineChronicles.EthBridge/monitor"
	"github.com/moreal/NineChronicles.EthBridge/state"
)

type transferCall struct {
	recipient ethcommon.Address
	amount    decimal.Decimal
	memo      string
}

type fakeTransferor struct {
	mu    sync.Mutex
	calls []transferCall
	failN int
	seq   int
}

func (f *fakeTransferor) Transfer(ctx context.Context, recipient ethcommon.Address, amount decimal.Decimal, memo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, transferCall{recipient, amount, memo})
	if f.failN > 0 {
		f.failN--
		return "", errors.New("stage failed")
	}
	f.seq++
	return fmt.Sprintf("%064x", f.seq), nil
}

type fakeMessenger struct {
	texts []string
}

func (f *fakeMessenger) SendMessage(ctx context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

type fakeAudit struct {
	docs []map[string]interface{}
}

func (f *fakeAudit) Index(ctx context.Context, document map[string]interface{}) error {
	f.docs = append(f.docs, document)
	return nil
}

type pageEntry struct {
	summary string
	details map[string]interface{}
}

type fakePager struct {
	pages []pageEntry
}

func (f *fakePager) Page(ctx context.Context, summary string, details map[string]interface{}) error {
	f.pages = append(f.pages, pageEntry{summary, details})
	return nil
}

func newTestHistory(t *testing.T) *state.HistoryDB {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	history, err := state.NewHistoryDB(db)
	require.NoError(t, err)
	return history
}

func testPlanet(t *testing.T) common.PlanetID {
	planet, err := common.PlanetIDFromHex("0x100000000001")
	require.NoError(t, err)
	return planet
}

func burnOf(t *testing.T, planet common.PlanetID, recipient ethcommon.Address, ncg string) etherman.BurnEvent {
	amount, err := decimal.NewFromString(ncg)
	require.NoError(t, err)
	return etherman.BurnEvent{
		BlockHash: common.RandTxIDHex(),
		TxID:      common.RandTxIDHex(),
		LogIndex:  0,
		Sender:    common.RandEthAddress(),
		To:        common.MakeBurnRecipient(planet, recipient),
		Amount:    common.NCGToBaseUnits(amount),
	}
}

func notify(t *testing.T, observer *Observer, events ...etherman.BurnEvent) error {
	t.Helper()
	blockHash := common.RandTxIDHex()
	if len(events) > 0 {
		blockHash = events[0].BlockHash
	}
	return observer.Notify(context.Background(), monitor.BlockEnvelope[etherman.BurnEvent]{
		BlockHash: blockHash,
		Events:    events,
	})
}

func TestObserverPaysOutBurn(t *testing.T) {
	history := newTestHistory(t)
	transferor := &fakeTransferor{}
	messenger := &fakeMessenger{}
	audit := &fakeAudit{}
	pager := &fakePager{}
	planet := testPlanet(t)
	observer := NewObserver(history, transferor, messenger, audit, pager, ObserverConfig{
		Planet:           planet,
		EtherscanBaseURL: "https://etherscan.test",
		ExplorerBaseURL:  "https://explorer.test",
	})

	recipient := common.RandEthAddress()
	event := burnOf(t, planet, recipient, "10.5")
	require.NoError(t, notify(t, observer, event))

	require.Len(t, transferor.calls, 1)
	assert.Equal(t, recipient, transferor.calls[0].recipient)
	assert.True(t, transferor.calls[0].amount.Equal(decimal.RequireFromString("10.5")))
	assert.Empty(t, transferor.calls[0].memo)

	record, err := history.Get(state.NetworkEthereum, event.TxID, 0)
	require.NoError(t, err)
	assert.Equal(t, state.StatusEmitted, record.Status)
	assert.True(t, record.Requested.Equal(decimal.RequireFromString("10.5")))
	assert.True(t, record.Sent.Equal(record.Requested))
	assert.True(t, record.Fee.IsZero())
	assert.Equal(t, fmt.Sprintf("%064x", 1), record.CounterTxID)
	assert.Equal(t, event.Sender, record.Sender)
	assert.Equal(t, recipient, record.Sink)

	require.Len(t, messenger.texts, 1)
	assert.Contains(t, messenger.texts[0], "https://etherscan.test/tx/"+event.TxID)
	assert.Contains(t, messenger.texts[0], "https://explorer.test/tx/"+record.CounterTxID)
	assert.Contains(t, messenger.texts[0], "10.5 NCG")

	require.Len(t, audit.docs, 1)
	assert.Equal(t, event.TxID, audit.docs[0]["txId"])
	assert.Equal(t, "10.5", audit.docs[0]["amount"])
	assert.Equal(t, record.CounterTxID, audit.docs[0]["counterTxId"])

	assert.Empty(t, pager.pages)
}

func TestObserverSkipsProcessedBurn(t *testing.T) {
	history := newTestHistory(t)
	transferor := &fakeTransferor{}
	planet := testPlanet(t)
	observer := NewObserver(history, transferor, nil, nil, nil, ObserverConfig{Planet: planet})

	event := burnOf(t, planet, common.RandEthAddress(), "3")
	require.NoError(t, history.Insert(&state.ExchangeRecord{
		Network:   state.NetworkEthereum,
		TxID:      event.TxID,
		LogIndex:  event.LogIndex,
		Sender:    event.Sender,
		Requested: decimal.New(3, 0),
		Status:    state.StatusRejected,
	}))

	require.NoError(t, notify(t, observer, event))
	assert.Empty(t, transferor.calls)
}

func TestObserverRejectsForeignPlanet(t *testing.T) {
	history := newTestHistory(t)
	transferor := &fakeTransferor{}
	pager := &fakePager{}
	planet := testPlanet(t)
	observer := NewObserver(history, transferor, nil, nil, pager, ObserverConfig{Planet: planet})

	foreign, err := common.PlanetIDFromHex("0x100000000002")
	require.NoError(t, err)
	event := burnOf(t, foreign, common.RandEthAddress(), "5")

	require.NoError(t, notify(t, observer, event))
	assert.Empty(t, transferor.calls)

	record, err := history.Get(state.NetworkEthereum, event.TxID, 0)
	require.NoError(t, err)
	assert.Equal(t, state.StatusRejected, record.Status)
	assert.Contains(t, record.Note, "planet")

	require.Len(t, pager.pages, 1)
	assert.Equal(t, "Unredeemable wNCG burn", pager.pages[0].summary)
	assert.Equal(t, event.TxID, pager.pages[0].details["txId"])
}

func TestObserverRejectsDustBurn(t *testing.T) {
	history := newTestHistory(t)
	transferor := &fakeTransferor{}
	messenger := &fakeMessenger{}
	pager := &fakePager{}
	planet := testPlanet(t)
	observer := NewObserver(history, transferor, messenger, nil, pager, ObserverConfig{Planet: planet})

	event := burnOf(t, planet, common.RandEthAddress(), "1")
	event.Amount = big.NewInt(5_000_000_000_000_000) // 0.005 NCG

	require.NoError(t, notify(t, observer, event))
	assert.Empty(t, transferor.calls)

	record, err := history.Get(state.NetworkEthereum, event.TxID, 0)
	require.NoError(t, err)
	assert.Equal(t, state.StatusRejected, record.Status)
	assert.Contains(t, record.Note, "minimum")

	require.Len(t, messenger.texts, 1)
	assert.Contains(t, messenger.texts[0], "dust")
	assert.Empty(t, pager.pages)
}

func TestObserverRetriesTransferOnce(t *testing.T) {
	history := newTestHistory(t)
	transferor := &fakeTransferor{failN: 1}
	pager := &fakePager{}
	planet := testPlanet(t)
	observer := NewObserver(history, transferor, nil, nil, pager, ObserverConfig{Planet: planet})

	event := burnOf(t, planet, common.RandEthAddress(), "7")
	require.NoError(t, notify(t, observer, event))

	require.Len(t, transferor.calls, 2)
	record, err := history.Get(state.NetworkEthereum, event.TxID, 0)
	require.NoError(t, err)
	assert.Equal(t, state.StatusEmitted, record.Status)
	assert.Equal(t, fmt.Sprintf("%064x", 1), record.CounterTxID)
	assert.Empty(t, pager.pages)
}

func TestObserverMarksFailedPayout(t *testing.T) {
	history := newTestHistory(t)
	transferor := &fakeTransferor{failN: 10}
	messenger := &fakeMessenger{}
	pager := &fakePager{}
	planet := testPlanet(t)
	observer := NewObserver(history, transferor, messenger, nil, pager, ObserverConfig{Planet: planet})

	event := burnOf(t, planet, common.RandEthAddress(), "7")
	require.NoError(t, notify(t, observer, event))

	assert.Len(t, transferor.calls, 2)

	record, err := history.Get(state.NetworkEthereum, event.TxID, 0)
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailed, record.Status)
	assert.Contains(t, record.Note, "stage failed")
	assert.Empty(t, record.CounterTxID)

	require.Len(t, pager.pages, 1)
	assert.Equal(t, "Chain-N payout failed", pager.pages[0].summary)
	assert.Empty(t, messenger.texts)
}

func TestObserverHandlesSeveralBurnsPerBlock(t *testing.T) {
	history := newTestHistory(t)
	transferor := &fakeTransferor{}
	planet := testPlanet(t)
	observer := NewObserver(history, transferor, nil, nil, nil, ObserverConfig{Planet: planet})

	first := burnOf(t, planet, common.RandEthAddress(), "1")
	second := burnOf(t, planet, common.RandEthAddress(), "2")
	second.BlockHash = first.BlockHash
	second.TxID = first.TxID
	second.LogIndex = 1

	require.NoError(t, notify(t, observer, first, second))
	require.Len(t, transferor.calls, 2)

	for i, logIndex := range []uint{0, 1} {
		record, err := history.Get(state.NetworkEthereum, first.TxID, logIndex)
		require.NoError(t, err)
		assert.Equal(t, state.StatusEmitted, record.Status, "log index %d", i)
	}
}

func TestObserverPropagatesHistoryFailure(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	history, err := state.NewHistoryDB(db)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	planet := testPlanet(t)
	observer := NewObserver(history, &fakeTransferor{}, nil, nil, nil, ObserverConfig{Planet: planet})

	event := burnOf(t, planet, common.RandEthAddress(), "1")
	assert.Error(t, notify(t, observer, event))
}
