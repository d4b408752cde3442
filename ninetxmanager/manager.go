/*
Package ninetxmanager owns the write path to Chain-N. Every transfer,
refunds included, goes through one TxManager whose mutex serializes
the build-sign-stage sequence. The custodial account's nonce is
assigned by the node at build time; concurrent builds would collide.
*/
package ninetxmanager

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/moreal/NineChronicles.EthBridge/common"
	"github.com/moreal/NineChronicles.EthBridge/nineman"
	"github.com/moreal/NineChronicles.EthBridge/signer"
)

var ErrStageFailed = errors.New("no chain-n endpoint accepted the transaction")

type TxManager struct {
	signLock sync.Mutex

	primary *nineman.NineMan
	nodes   []*nineman.NineMan

	signer       signer.Signer
	senderAddr   ethcommon.Address
	publicKeyB64 string

	minter ethcommon.Address
}

// NewTxManager derives the custodial sender address from the signer's
// public key. Staging fans out to the primary node and every extra
// endpoint.
func NewTxManager(ctx context.Context, primary *nineman.NineMan, extra []*nineman.NineMan, sgn signer.Signer, minter ethcommon.Address) (*TxManager, error) {
	pub, err := sgn.PublicKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signer public key: %w", err)
	}
	senderAddr, err := signer.Address(pub)
	if err != nil {
		return nil, err
	}

	return &TxManager{
		primary:      primary,
		nodes:        append([]*nineman.NineMan{primary}, extra...),
		signer:       sgn,
		senderAddr:   senderAddr,
		publicKeyB64: base64.StdEncoding.EncodeToString(pub),
		minter:       minter,
	}, nil
}

// SenderAddress is the address derived from the signing key. Startup
// compares it against the configured custodial address.
func (m *TxManager) SenderAddress() ethcommon.Address {
	return m.senderAddr
}

// Transfer sends NCG from the custodial account and returns the
// transaction id. It blocks on the signer mutex; the id is known as
// soon as at least one endpoint accepts the staged transaction.
func (m *TxManager) Transfer(ctx context.Context, recipient ethcommon.Address, amount decimal.Decimal, memo string) (string, error) {
	m.signLock.Lock()
	defer m.signLock.Unlock()

	plainValue, err := transferAsset3(m.senderAddr, recipient, m.minter, amount, memo)
	if err != nil {
		return "", fmt.Errorf("failed to build transfer action: %w", err)
	}

	unsignedHex, err := m.primary.CreateUnsignedTransaction(ctx, base64.StdEncoding.EncodeToString(plainValue), m.publicKeyB64)
	if err != nil {
		return "", err
	}
	unsigned, err := common.HexStrToByteSlice(unsignedHex)
	if err != nil {
		return "", fmt.Errorf("malformed unsigned transaction: %w", err)
	}

	digest := sha256.Sum256(unsigned)
	signature, err := m.signer.Sign(ctx, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	signedHex, err := m.primary.AttachSignature(ctx, unsignedHex, hex.EncodeToString(signature))
	if err != nil {
		return "", err
	}
	signed, err := common.HexStrToByteSlice(signedHex)
	if err != nil {
		return "", fmt.Errorf("malformed signed transaction: %w", err)
	}

	if err := m.stage(ctx, signed); err != nil {
		return "", err
	}

	txID := sha256.Sum256(signed)
	txIDHex := hex.EncodeToString(txID[:])

	logger.WithFields(logger.Fields{
		"txId":      txIDHex,
		"recipient": recipient.Hex(),
		"amount":    amount.String(),
	}).Info("Staged chain-n transfer")
	return txIDHex, nil
}

// stage broadcasts concurrently to every endpoint. One acceptance is
// enough; per-endpoint failures are logged only.
func (m *TxManager) stage(ctx context.Context, signed []byte) error {
	payload := base64.StdEncoding.EncodeToString(signed)

	accepted := make([]bool, len(m.nodes))
	var wg sync.WaitGroup
	for i, node := range m.nodes {
		wg.Add(1)
		go func(i int, node *nineman.NineMan) {
			defer wg.Done()
			ok, err := node.StageTransaction(ctx, payload)
			if err != nil {
				logger.WithFields(logger.Fields{
					"endpoint": node.URL(),
					"err":      err,
				}).Warn("Failed to stage transaction")
				return
			}
			accepted[i] = ok
		}(i, node)
	}
	wg.Wait()

	for _, ok := range accepted {
		if ok {
			return nil
		}
	}
	return ErrStageFailed
}
