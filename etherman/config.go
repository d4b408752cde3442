package etherman

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	// URL is the URL of the Chain-E JSON-RPC node.
	URL string

	// WNCGContractAddress is the deployed wrapped-NCG contract.
	WNCGContractAddress common.Address

	// MinterPrivateKey is the hex-encoded key of the custodial minter
	// account.
	MinterPrivateKey string

	// PriorityFeeFloor, when non-nil, switches mints to EIP-1559
	// transactions with this tip.
	PriorityFeeFloor *big.Int
}
