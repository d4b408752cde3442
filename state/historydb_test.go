package state

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistoryDB(t *testing.T) *HistoryDB {
	t.Helper()
	db := getMemoryDB()
	t.Cleanup(func() { db.Close() })

	h, err := NewHistoryDB(db)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func TestHistoryDBInsertAndGet(t *testing.T) {
	h := newTestHistoryDB(t)

	r := RandExchangeRecord(NetworkNineChronicles, StatusEmitted)
	require.NoError(t, h.Insert(r))

	got, err := h.Get(NetworkNineChronicles, r.TxID, 0)
	require.NoError(t, err)
	assert.Equal(t, r.Network, got.Network)
	assert.Equal(t, strings.ToLower(r.TxID), got.TxID)
	assert.Equal(t, r.Sender, got.Sender)
	assert.Equal(t, r.Sink, got.Sink)
	assert.True(t, got.Requested.Equal(r.Requested))
	assert.True(t, got.Sent.Equal(r.Sent))
	assert.True(t, got.Fee.Equal(r.Fee))
	assert.True(t, got.Refunded.IsZero())
	assert.Equal(t, StatusEmitted, got.Status)
	assert.Empty(t, got.CounterTxID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestHistoryDBHas(t *testing.T) {
	h := newTestHistoryDB(t)

	r := RandExchangeRecord(NetworkEthereum, StatusEmitted)
	ok, err := h.Has(NetworkEthereum, r.TxID, r.LogIndex)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.Insert(r))

	ok, err = h.Has(NetworkEthereum, r.TxID, r.LogIndex)
	require.NoError(t, err)
	assert.True(t, ok)

	// other networks and log indices stay unseen
	ok, err = h.Has(NetworkNineChronicles, r.TxID, r.LogIndex)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.Has(NetworkEthereum, r.TxID, r.LogIndex+1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryDBNormalizesTxIDs(t *testing.T) {
	h := newTestHistoryDB(t)

	r := RandExchangeRecord(NetworkEthereum, StatusEmitted)
	r.TxID = "0xABCDEF0011" + r.TxID[10:]
	require.NoError(t, h.Insert(r))

	ok, err := h.Has(NetworkEthereum, strings.ToLower(strings.TrimPrefix(r.TxID, "0x")), 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHistoryDBDuplicateInsert(t *testing.T) {
	h := newTestHistoryDB(t)

	r := RandExchangeRecord(NetworkNineChronicles, StatusEmitted)
	require.NoError(t, h.Insert(r))
	assert.ErrorIs(t, h.Insert(r), ErrDuplicateRecord)
}

func TestHistoryDBSameTxDifferentLogIndex(t *testing.T) {
	h := newTestHistoryDB(t)

	a := RandExchangeRecord(NetworkEthereum, StatusEmitted)
	b := *a
	b.LogIndex = 1

	require.NoError(t, h.Insert(a))
	require.NoError(t, h.Insert(&b))

	ok, err := h.Has(NetworkEthereum, a.TxID, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHistoryDBRejectsUnbalancedEmission(t *testing.T) {
	h := newTestHistoryDB(t)

	r := RandExchangeRecord(NetworkNineChronicles, StatusEmitted)
	r.Sent = r.Sent.Sub(decimal.New(1, 0))
	assert.ErrorIs(t, h.Insert(r), ErrUnbalancedRecord)

	// rejected rows hold funds, nothing moved, so no balance equation
	held := RandExchangeRecord(NetworkNineChronicles, StatusRejected)
	held.Sent = decimal.Zero
	held.Fee = decimal.Zero
	assert.NoError(t, h.Insert(held))
}

func TestHistoryDBSetCounterTx(t *testing.T) {
	h := newTestHistoryDB(t)

	r := RandExchangeRecord(NetworkNineChronicles, StatusEmitted)
	require.NoError(t, h.Insert(r))

	require.NoError(t, h.SetCounterTx(r.Network, r.TxID, r.LogIndex, "0xFEED01"))

	got, err := h.Get(r.Network, r.TxID, r.LogIndex)
	require.NoError(t, err)
	assert.Equal(t, "feed01", got.CounterTxID)

	err = h.SetCounterTx(r.Network, "deadbeef", 0, "feed02")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestHistoryDBAnnotateRefund(t *testing.T) {
	h := newTestHistoryDB(t)

	// over-max: the mint leg stays emitted, the excess leg is annotated
	r := RandExchangeRecord(NetworkNineChronicles, StatusEmitted)
	r.Requested = decimal.New(150, 0)
	r.Sent = decimal.New(99, 0)
	r.Fee = decimal.New(1, 0)
	r.Refunded = decimal.New(50, 0)
	require.NoError(t, h.Insert(r))

	require.NoError(t, h.AnnotateRefund(r.Network, r.TxID, r.LogIndex,
		decimal.New(50, 0), "refund01", StatusEmitted))

	got, err := h.Get(r.Network, r.TxID, r.LogIndex)
	require.NoError(t, err)
	assert.Equal(t, StatusEmitted, got.Status)
	assert.True(t, got.Refunded.Equal(decimal.New(50, 0)))
	assert.Equal(t, "refund01", got.RefundTxID)
	assert.True(t, got.Balanced())
}

func TestHistoryDBMarkFailed(t *testing.T) {
	h := newTestHistoryDB(t)

	r := RandExchangeRecord(NetworkNineChronicles, StatusEmitted)
	require.NoError(t, h.Insert(r))

	require.NoError(t, h.MarkFailed(r.Network, r.TxID, r.LogIndex, "mint receipt reverted"))

	got, err := h.Get(r.Network, r.TxID, r.LogIndex)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "mint receipt reverted", got.Note)
}

func TestHistoryDBRecent(t *testing.T) {
	h := newTestHistoryDB(t)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		r := RandExchangeRecord(NetworkNineChronicles, StatusEmitted)
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		r.UpdatedAt = r.CreatedAt
		require.NoError(t, h.Insert(r))
		ids = append(ids, strings.ToLower(r.TxID))
	}

	recent, err := h.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].TxID)
	assert.Equal(t, ids[1], recent[1].TxID)
}

func TestHistoryDBRecentByStatus(t *testing.T) {
	h := newTestHistoryDB(t)

	emitted := RandExchangeRecord(NetworkNineChronicles, StatusEmitted)
	rejected := RandExchangeRecord(NetworkNineChronicles, StatusRejected)
	rejected.Sent = decimal.Zero
	rejected.Fee = decimal.Zero
	require.NoError(t, h.Insert(emitted))
	require.NoError(t, h.Insert(rejected))

	got, err := h.RecentByStatus(StatusRejected, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, strings.ToLower(rejected.TxID), got[0].TxID)
}

func TestExchangeRecordJSON(t *testing.T) {
	r := RandExchangeRecord(NetworkEthereum, StatusEmitted)
	r.CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.UpdatedAt = r.CreatedAt

	j := r.JSON()
	assert.Equal(t, "ethereum", j.Network)
	assert.Equal(t, "100", j.Requested)
	assert.Equal(t, "99", j.Sent)
	assert.Equal(t, "emitted", j.Status)
	assert.Equal(t, "2024-05-01T12:00:00Z", j.CreatedAt)
}
