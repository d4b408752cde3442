package state

import (
	"database/sql"

	"github.com/moreal/NineChronicles.EthBridge/database"
	"github.com/moreal/NineChronicles.EthBridge/monitor"
)

// CursorDB persists the last fully processed location per monitor. It lives
// in its own database file so history writes never contend with the cursor
// hot path.
type CursorDB struct {
	stmtCache *database.StmtCache
}

func NewCursorDB(db *sql.DB) (*CursorDB, error) {
	if _, err := db.Exec(monitorCursorTable); err != nil {
		return nil, err
	}
	return &CursorDB{stmtCache: database.NewStmtCache(db)}, nil
}

func (c *CursorDB) Close() {
	c.stmtCache.Clear()
}

// Load returns the stored location for a monitor, reporting presence
// explicitly; a fresh deployment has no row.
func (c *CursorDB) Load(name string) (monitor.TransactionLocation, bool, error) {
	stmt, err := c.stmtCache.Prepare(`SELECT blockHash, txId FROM monitorCursor WHERE monitor = ?`)
	if err != nil {
		return monitor.TransactionLocation{}, false, err
	}

	var blockHash string
	var txID sql.NullString
	err = stmt.QueryRow(name).Scan(&blockHash, &txID)
	if err == sql.ErrNoRows {
		return monitor.TransactionLocation{}, false, nil
	}
	if err != nil {
		return monitor.TransactionLocation{}, false, err
	}
	return monitor.TransactionLocation{BlockHash: blockHash, TxID: txID.String}, true, nil
}

// Save overwrites the monitor's location. Hashes and tx ids are stored
// verbatim; the chain client needs them back exactly as the node produced
// them.
func (c *CursorDB) Save(name string, loc monitor.TransactionLocation) error {
	stmt, err := c.stmtCache.Prepare(`INSERT OR REPLACE INTO monitorCursor (monitor, blockHash, txId, updatedAt)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	var txID interface{}
	if loc.TxID != "" {
		txID = loc.TxID
	}
	_, err = stmt.Exec(name, loc.BlockHash, txID, nowRFC3339())
	return err
}

// All returns every stored cursor keyed by monitor name.
func (c *CursorDB) All() (map[string]monitor.TransactionLocation, error) {
	stmt, err := c.stmtCache.Prepare(`SELECT monitor, blockHash, txId FROM monitorCursor`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cursors := make(map[string]monitor.TransactionLocation)
	for rows.Next() {
		var name, blockHash string
		var txID sql.NullString
		if err := rows.Scan(&name, &blockHash, &txID); err != nil {
			return nil, err
		}
		cursors[name] = monitor.TransactionLocation{BlockHash: blockHash, TxID: txID.String}
	}
	return cursors, rows.Err()
}
