/*
Package etherman is the Chain-E side of the bridge: it follows wNCG
burn logs for the monitor and submits custodial mint transactions.

Mint gas goes through the configured gas-price policy; on EIP-1559
networks the priority fee is pinned to the configured floor.
*/
package etherman

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	logger "github.com/sirupsen/logrus"

	"github.com/moreal/NineChronicles.EthBridge/common"
	"github.com/moreal/NineChronicles.EthBridge/gasprice"
)

var BurnSignatureHash = crypto.Keccak256Hash([]byte("Burn(address,bytes32,uint256)"))

type ethereumClient interface {
	ethereum.ChainReader
	ethereum.ChainStateReader
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.LogFilterer
	ethereum.TransactionReader
	ethereum.TransactionSender

	bind.DeployBackend
	bind.ContractBackend
}

type Etherman struct {
	ethClient   ethereumClient
	wncgAddress ethcommon.Address
	wncgABI     abi.ABI
	contract    *bind.BoundContract

	auth        *bind.TransactOpts
	gasPolicy   gasprice.Policy
	priorityFee *big.Int
}

func NewEtherman(cfg *Config, gasPolicy gasprice.Policy) (*Etherman, error) {
	ethClient, err := ethclient.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	chainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}

	sk, err := crypto.HexToECDSA(common.Trim0xPrefix(cfg.MinterPrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse minter private key: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(sk, chainID)
	if err != nil {
		return nil, err
	}

	return newEtherman(ethClient, cfg, auth, gasPolicy)
}

func newEtherman(client ethereumClient, cfg *Config, auth *bind.TransactOpts, gasPolicy gasprice.Policy) (*Etherman, error) {
	wncgABI, err := abi.JSON(strings.NewReader(WNCGABI))
	if err != nil {
		return nil, err
	}

	var priorityFee *big.Int
	if cfg.PriorityFeeFloor != nil {
		priorityFee = new(big.Int).Set(cfg.PriorityFeeFloor)
	}

	return &Etherman{
		ethClient:   client,
		wncgAddress: cfg.WNCGContractAddress,
		wncgABI:     wncgABI,
		contract:    bind.NewBoundContract(cfg.WNCGContractAddress, wncgABI, client, client, client),
		auth:        auth,
		gasPolicy:   gasPolicy,
		priorityFee: priorityFee,
	}, nil
}

// MinterAddress is the custodial account submitting mints.
func (etherman *Etherman) MinterAddress() ethcommon.Address {
	return etherman.auth.From
}

func (etherman *Etherman) TipNumber(ctx context.Context) (int64, error) {
	header, err := etherman.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Int64(), nil
}

func (etherman *Etherman) BlockHashByNumber(ctx context.Context, number int64) (string, error) {
	header, err := etherman.ethClient.HeaderByNumber(ctx, big.NewInt(number))
	if err != nil {
		return "", err
	}
	return header.Hash().Hex(), nil
}

func (etherman *Etherman) BlockNumberByHash(ctx context.Context, hash string) (int64, error) {
	header, err := etherman.ethClient.HeaderByHash(ctx, ethcommon.HexToHash(hash))
	if err != nil {
		return 0, err
	}
	return header.Number.Int64(), nil
}

// BurnEvents lists the wNCG burns in one block, in log order.
func (etherman *Etherman) BurnEvents(ctx context.Context, number int64) ([]BurnEvent, error) {
	logs, err := etherman.ethClient.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(number),
		ToBlock:   big.NewInt(number),
		Addresses: []ethcommon.Address{etherman.wncgAddress},
		Topics:    [][]ethcommon.Hash{{BurnSignatureHash}},
	})
	if err != nil {
		return nil, err
	}

	events := make([]BurnEvent, 0, len(logs))
	for _, vlog := range logs {
		event, err := etherman.parseBurnLog(vlog)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func (etherman *Etherman) parseBurnLog(vlog ethtypes.Log) (BurnEvent, error) {
	if len(vlog.Topics) != 3 {
		return BurnEvent{}, fmt.Errorf("burn log in tx %s has %d topics, want 3", vlog.TxHash.Hex(), len(vlog.Topics))
	}

	data := new(struct{ Amount *big.Int })
	if err := etherman.wncgABI.UnpackIntoInterface(data, "Burn", vlog.Data); err != nil {
		return BurnEvent{}, fmt.Errorf("failed to unpack burn log in tx %s: %w", vlog.TxHash.Hex(), err)
	}

	return BurnEvent{
		BlockHash: vlog.BlockHash.Hex(),
		TxID:      vlog.TxHash.Hex(),
		LogIndex:  vlog.Index,
		Sender:    ethcommon.BytesToAddress(vlog.Topics[1].Bytes()),
		To:        [32]byte(vlog.Topics[2]),
		Amount:    data.Amount,
	}, nil
}

// Mint issues wNCG to recipient and blocks until the transaction is
// mined. A reverted receipt is an error.
func (etherman *Etherman) Mint(ctx context.Context, recipient ethcommon.Address, amount *big.Int) (string, error) {
	price, err := etherman.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}
	effective := etherman.gasPolicy.Apply(price)

	auth := *etherman.auth
	auth.Context = ctx
	if etherman.priorityFee != nil {
		// the fee cap must cover the tip
		if effective.Cmp(etherman.priorityFee) < 0 {
			effective = new(big.Int).Set(etherman.priorityFee)
		}
		auth.GasFeeCap = effective
		auth.GasTipCap = new(big.Int).Set(etherman.priorityFee)
	} else {
		auth.GasPrice = effective
	}

	tx, err := etherman.contract.Transact(&auth, "mint", recipient, amount)
	if err != nil {
		return "", fmt.Errorf("failed to send mint transaction: %w", err)
	}

	logger.WithFields(logger.Fields{
		"txHash":    tx.Hash().Hex(),
		"recipient": recipient.Hex(),
		"amount":    amount.String(),
		"gasPrice":  effective.String(),
	}).Info("Sent mint transaction")

	receipt, err := bind.WaitMined(ctx, etherman.ethClient, tx)
	if err != nil {
		return "", fmt.Errorf("failed waiting for mint receipt: %w", err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return "", fmt.Errorf("mint transaction %s reverted", tx.Hash().Hex())
	}
	return tx.Hash().Hex(), nil
}
