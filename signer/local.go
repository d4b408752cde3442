package signer

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/moreal/NineChronicles.EthBridge/common"
)

// LocalSigner is backed by one in-memory private key. Development and
// test use only.
type LocalSigner struct {
	sk *btcec.PrivateKey
}

func NewLocalSigner(privKeyHex string) (*LocalSigner, error) {
	raw, err := common.HexStrToByteSlice(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(raw))
	}
	sk, _ := btcec.PrivKeyFromBytes(raw)
	return &LocalSigner{sk: sk}, nil
}

func NewRandomLocalSigner() (*LocalSigner, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &LocalSigner{sk: sk}, nil
}

func (s *LocalSigner) Sign(_ context.Context, digest []byte) ([]byte, error) {
	if err := checkDigest(digest); err != nil {
		return nil, err
	}
	return btcecdsa.Sign(s.sk, digest).Serialize(), nil
}

func (s *LocalSigner) PublicKey(_ context.Context) ([]byte, error) {
	return s.sk.PubKey().SerializeUncompressed(), nil
}
