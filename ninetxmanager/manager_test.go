package ninetxmanager

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moreal/NineChronicles.EthBridge/common"
	"github.com/moreal/NineChronicles.EthBridge/nineman"
	"github.com/moreal/NineChronicles.EthBridge/signer"
)

func newTestNode(t *testing.T) (*nineman.SimulatedNode, *nineman.NineMan) {
	t.Helper()
	node := nineman.NewSimulatedNode()
	t.Cleanup(node.Close)

	m, err := nineman.NewNineMan(&nineman.Config{
		GraphQLEndpoint: node.URL(),
		Timeout:         5 * time.Second,
		MaxRetries:      1,
	})
	require.NoError(t, err)
	return node, m
}

func TestTxManagerSenderAddress(t *testing.T) {
	_, primary := newTestNode(t)
	sgn, err := signer.NewLocalSigner("0000000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, err)

	mgr, err := NewTxManager(context.Background(), primary, nil, sgn, common.RandEthAddress())
	require.NoError(t, err)
	assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", mgr.SenderAddress().Hex())
}

func TestTxManagerTransfer(t *testing.T) {
	node, primary := newTestNode(t)
	sgn, err := signer.NewRandomLocalSigner()
	require.NoError(t, err)
	minter := common.RandEthAddress()

	mgr, err := NewTxManager(context.Background(), primary, nil, sgn, minter)
	require.NoError(t, err)

	recipient := common.RandEthAddress()
	amount := decimal.RequireFromString("99.00")
	txID, err := mgr.Transfer(context.Background(), recipient, amount, "refund: test")
	require.NoError(t, err)

	staged := node.StagedPayloads()
	require.Len(t, staged, 1)
	signed, err := base64.StdEncoding.DecodeString(staged[0])
	require.NoError(t, err)

	// the tx id is the digest of the signed payload
	digest := sha256.Sum256(signed)
	assert.Equal(t, hex.EncodeToString(digest[:]), txID)

	// the simulated node builds signed = unsigned || signature
	pub, err := sgn.PublicKey(context.Background())
	require.NoError(t, err)
	plain, err := transferAsset3(mgr.SenderAddress(), recipient, minter, amount, "refund: test")
	require.NoError(t, err)
	unsigned := []byte(fmt.Sprintf("unsigned/%s/%s",
		base64.StdEncoding.EncodeToString(pub),
		base64.StdEncoding.EncodeToString(plain)))
	require.True(t, bytes.HasPrefix(signed, unsigned))

	sig, err := btcecdsa.ParseDERSignature(signed[len(unsigned):])
	require.NoError(t, err)
	pubKey, err := btcec.ParsePubKey(pub)
	require.NoError(t, err)
	unsignedDigest := sha256.Sum256(unsigned)
	assert.True(t, sig.Verify(unsignedDigest[:], pubKey))
}

func TestTxManagerFanOut(t *testing.T) {
	primaryNode, primary := newTestNode(t)
	extraNode, extra := newTestNode(t)
	sgn, err := signer.NewRandomLocalSigner()
	require.NoError(t, err)

	mgr, err := NewTxManager(context.Background(), primary, []*nineman.NineMan{extra}, sgn, common.RandEthAddress())
	require.NoError(t, err)

	// one rejecting endpoint does not fail the transfer
	extraNode.FailStaging(true)
	_, err = mgr.Transfer(context.Background(), common.RandEthAddress(), decimal.NewFromInt(1), "")
	require.NoError(t, err)
	assert.Len(t, primaryNode.StagedPayloads(), 1)
	assert.Empty(t, extraNode.StagedPayloads())

	// a rejecting primary is fine while the extra endpoint accepts
	primaryNode.FailStaging(true)
	extraNode.FailStaging(false)
	_, err = mgr.Transfer(context.Background(), common.RandEthAddress(), decimal.NewFromInt(1), "")
	require.NoError(t, err)
	assert.Len(t, extraNode.StagedPayloads(), 1)

	// total failure surfaces ErrStageFailed
	extraNode.FailStaging(true)
	_, err = mgr.Transfer(context.Background(), common.RandEthAddress(), decimal.NewFromInt(1), "")
	assert.ErrorIs(t, err, ErrStageFailed)
}

func TestTxManagerSerializesCalls(t *testing.T) {
	node, primary := newTestNode(t)
	sgn, err := signer.NewRandomLocalSigner()
	require.NoError(t, err)

	mgr, err := NewTxManager(context.Background(), primary, nil, sgn, common.RandEthAddress())
	require.NoError(t, err)

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func(i int) {
			_, err := mgr.Transfer(context.Background(), common.RandEthAddress(), decimal.NewFromInt(int64(i+1)), "")
			done <- err
		}(i)
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}
	assert.Len(t, node.StagedPayloads(), 4)
}
