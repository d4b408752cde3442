package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/moreal/NineChronicles.EthBridge/database"
)

var (
	ErrDuplicateRecord  = errors.New("exchange history already has this source tx")
	ErrRecordNotFound   = errors.New("exchange history has no such source tx")
	ErrUnbalancedRecord = errors.New("exchange record amounts do not add up")
)

const exchangeColumns = `network, txId, logIndex, sender, sink, requested, sent, fee, refunded,
	counterTxId, refundTxId, status, note, createdAt, updatedAt`

// HistoryDB records every exchange the bridge acted on, one row per
// (network, txId, logIndex). Writes go through a single connection; the
// presence check plus primary key give the exactly-once guarantee observers
// rely on.
type HistoryDB struct {
	stmtCache *database.StmtCache
}

func NewHistoryDB(db *sql.DB) (*HistoryDB, error) {
	if _, err := db.Exec(exchangeHistoryTable); err != nil {
		return nil, err
	}
	return &HistoryDB{stmtCache: database.NewStmtCache(db)}, nil
}

func (h *HistoryDB) Close() {
	h.stmtCache.Clear()
}

// Has reports whether a source event was already processed.
func (h *HistoryDB) Has(network Network, txID string, logIndex uint) (bool, error) {
	stmt, err := h.stmtCache.Prepare(`SELECT 1 FROM exchangeHistory WHERE network = ? AND txId = ? AND logIndex = ?`)
	if err != nil {
		return false, err
	}

	var one int
	err = stmt.QueryRow(string(network), normTxID(txID), int64(logIndex)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert writes a record immediately before the counter-chain emission is
// dispatched. Records that moved value (emitted/refunded) must balance:
// requested = sent + fee + refunded.
func (h *HistoryDB) Insert(r *ExchangeRecord) error {
	if (r.Status == StatusEmitted || r.Status == StatusRefunded) && !r.Balanced() {
		return fmt.Errorf("%w: requested %s, sent %s, fee %s, refunded %s",
			ErrUnbalancedRecord, r.Requested, r.Sent, r.Fee, r.Refunded)
	}

	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}

	stmt, err := h.stmtCache.Prepare(`INSERT INTO exchangeHistory (` + exchangeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	s := new(sqlExchange).encode(r)
	_, err = stmt.Exec(
		s.Network, s.TxID, s.LogIndex, s.Sender, s.Sink,
		s.Requested, s.Sent, s.Fee, s.Refunded,
		s.CounterTxID, s.RefundTxID, s.Status, s.Note,
		s.CreatedAt, s.UpdatedAt,
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return ErrDuplicateRecord
	}
	return err
}

// Get returns the record for a source event, or ErrRecordNotFound.
func (h *HistoryDB) Get(network Network, txID string, logIndex uint) (*ExchangeRecord, error) {
	stmt, err := h.stmtCache.Prepare(`SELECT ` + exchangeColumns + ` FROM exchangeHistory
		WHERE network = ? AND txId = ? AND logIndex = ?`)
	if err != nil {
		return nil, err
	}
	row := stmt.QueryRow(string(network), normTxID(txID), int64(logIndex))
	return scanExchange(row)
}

// SetCounterTx annotates the record with the counter-chain tx once the
// emission succeeded.
func (h *HistoryDB) SetCounterTx(network Network, txID string, logIndex uint, counterTxID string) error {
	stmt, err := h.stmtCache.Prepare(`UPDATE exchangeHistory SET counterTxId = ?, updatedAt = ?
		WHERE network = ? AND txId = ? AND logIndex = ?`)
	if err != nil {
		return err
	}
	return execOne(stmt, normTxID(counterTxID), nowRFC3339(), string(network), normTxID(txID), int64(logIndex))
}

// AnnotateRefund records the refund leg on an existing row. The status
// parameter keeps the mint leg's `emitted` for over-max exchanges and moves
// fully returned rows to `refunded`.
func (h *HistoryDB) AnnotateRefund(network Network, txID string, logIndex uint,
	refunded decimal.Decimal, refundTxID string, status ExchangeStatus) error {
	stmt, err := h.stmtCache.Prepare(`UPDATE exchangeHistory SET refunded = ?, refundTxId = ?, status = ?, updatedAt = ?
		WHERE network = ? AND txId = ? AND logIndex = ?`)
	if err != nil {
		return err
	}
	return execOne(stmt, refunded.String(), normTxID(refundTxID), string(status), nowRFC3339(),
		string(network), normTxID(txID), int64(logIndex))
}

// MarkFailed moves a dispatched record to the emitted-but-failed terminal
// state. It is never retried automatically.
func (h *HistoryDB) MarkFailed(network Network, txID string, logIndex uint, note string) error {
	stmt, err := h.stmtCache.Prepare(`UPDATE exchangeHistory SET status = ?, note = ?, updatedAt = ?
		WHERE network = ? AND txId = ? AND logIndex = ?`)
	if err != nil {
		return err
	}
	return execOne(stmt, string(StatusFailed), note, nowRFC3339(), string(network), normTxID(txID), int64(logIndex))
}

// Recent returns the newest records first.
func (h *HistoryDB) Recent(limit int) ([]*ExchangeRecord, error) {
	stmt, err := h.stmtCache.Prepare(`SELECT ` + exchangeColumns + ` FROM exchangeHistory
		ORDER BY createdAt DESC, txId LIMIT ?`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExchanges(rows)
}

// RecentByStatus returns the newest records with the given status first.
func (h *HistoryDB) RecentByStatus(status ExchangeStatus, limit int) ([]*ExchangeRecord, error) {
	stmt, err := h.stmtCache.Prepare(`SELECT ` + exchangeColumns + ` FROM exchangeHistory
		WHERE status = ? ORDER BY createdAt DESC, txId LIMIT ?`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExchanges(rows)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func execOne(stmt *sql.Stmt, args ...interface{}) error {
	res, err := stmt.Exec(args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExchange(row rowScanner) (*ExchangeRecord, error) {
	var s sqlExchange
	err := row.Scan(
		&s.Network, &s.TxID, &s.LogIndex, &s.Sender, &s.Sink,
		&s.Requested, &s.Sent, &s.Fee, &s.Refunded,
		&s.CounterTxID, &s.RefundTxID, &s.Status, &s.Note,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.decode()
}

func scanExchanges(rows *sql.Rows) ([]*ExchangeRecord, error) {
	var records []*ExchangeRecord
	for rows.Next() {
		r, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
