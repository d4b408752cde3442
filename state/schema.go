package state

var (
	// One row per observed source event; presence means "already processed,
	// do not re-emit". The over-max refund leg lives in the same row via the
	// refunded/refundTxId columns.
	exchangeHistoryTable = `CREATE TABLE IF NOT EXISTS exchangeHistory (
		network VARCHAR(16) NOT NULL,
		txId VARCHAR(64) NOT NULL,
		logIndex INTEGER NOT NULL DEFAULT 0,
		sender CHAR(40) NOT NULL,
		sink CHAR(40) NOT NULL,
		requested VARCHAR(32) NOT NULL,
		sent VARCHAR(32) NOT NULL,
		fee VARCHAR(32) NOT NULL,
		refunded VARCHAR(32) NOT NULL,
		counterTxId VARCHAR(64),
		refundTxId VARCHAR(64),
		status VARCHAR(10) NOT NULL,
		note TEXT,
		createdAt VARCHAR(35) NOT NULL,
		updatedAt VARCHAR(35) NOT NULL,
		PRIMARY KEY (network, txId, logIndex),
		CONSTRAINT chk_network CHECK (network IN ('nineChronicles', 'ethereum')),
		CONSTRAINT chk_status CHECK (status IN ('emitted', 'refunded', 'rejected', 'failed')),
		CONSTRAINT chk_txId CHECK (txId != ''),
		CONSTRAINT chk_logIndex CHECK (logIndex >= 0)
	);`

	// Last fully processed (blockHash, txId) per monitor. txId is NULL when
	// the block carried no watched events. Hashes are stored verbatim; the
	// chain client needs them back exactly as the node produced them.
	monitorCursorTable = `CREATE TABLE IF NOT EXISTS monitorCursor (
		monitor VARCHAR(32) PRIMARY KEY NOT NULL,
		blockHash VARCHAR(66) NOT NULL,
		txId VARCHAR(66),
		updatedAt VARCHAR(35) NOT NULL,
		CONSTRAINT chk_blockHash CHECK (blockHash != '')
	);`
)
