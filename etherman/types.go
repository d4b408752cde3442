package etherman

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// WNCGABI is the slice of the wrapped-NCG contract surface the bridge
// touches: the custodial mint call and the burn log.
const WNCGABI = `[
	{
		"type": "function",
		"name": "mint",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "account", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"outputs": []
	},
	{
		"type": "event",
		"name": "Burn",
		"inputs": [
			{"name": "_sender", "type": "address", "indexed": true},
			{"name": "_to", "type": "bytes32", "indexed": true},
			{"name": "amount", "type": "uint256", "indexed": false}
		],
		"anonymous": false
	}
]`

// BurnEvent is one wNCG burn observed on Chain-E. To carries the
// Chain-N destination packed as planet id, recipient, zero padding.
type BurnEvent struct {
	BlockHash string
	TxID      string
	LogIndex  uint
	Sender    ethcommon.Address
	To        [32]byte
	Amount    *big.Int
}

func (e BurnEvent) TransactionID() string { return e.TxID }
