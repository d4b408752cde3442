package state

import (
	"database/sql"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/moreal/NineChronicles.EthBridge/common"
	"github.com/moreal/NineChronicles.EthBridge/database"
)

// RandExchangeRecord builds a balanced record for the given network and
// status: requested 100, fee 1, sent 99, nothing refunded.
func RandExchangeRecord(network Network, status ExchangeStatus) *ExchangeRecord {
	requested := decimal.New(100, 0)
	fee := decimal.New(1, 0)

	return &ExchangeRecord{
		Network:   network,
		TxID:      common.RandTxIDHex(),
		LogIndex:  0,
		Sender:    common.RandEthAddress(),
		Sink:      common.RandEthAddress(),
		Requested: requested,
		Sent:      requested.Sub(fee),
		Fee:       fee,
		Refunded:  decimal.Zero,
		Status:    status,
	}
}

func getMemoryDB() *sql.DB {
	db, err := database.OpenMemory()
	if err != nil {
		logger.Fatal(err)
	}
	return db
}
