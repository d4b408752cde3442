/*
Package signer abstracts the custodial key that signs Chain-N
transactions. The production implementation delegates to AWS KMS; a
local single-key implementation backs tests and development setups.

Signatures are DER-encoded secp256k1 ECDSA over a SHA-256 digest, with
the S component normalized to the lower half of the curve order.
*/
package signer

import (
	"context"
	"crypto/sha256"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

type Signer interface {
	// Sign signs a 32-byte SHA-256 digest and returns a DER-encoded
	// low-S signature.
	Sign(ctx context.Context, digest []byte) ([]byte, error)

	// PublicKey returns the signing key in uncompressed SEC1 form
	// (65 bytes, 0x04 prefix).
	PublicKey(ctx context.Context) ([]byte, error)
}

// Address derives the 20-byte account address from an uncompressed
// public key. Chain-N derives addresses the same way Ethereum does.
func Address(pub []byte) (ethcommon.Address, error) {
	pubkey, err := ethcrypto.UnmarshalPubkey(pub)
	if err != nil {
		return ethcommon.Address{}, fmt.Errorf("failed to parse public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubkey), nil
}

func checkDigest(digest []byte) error {
	if len(digest) != sha256.Size {
		return fmt.Errorf("digest must be %d bytes, got %d", sha256.Size, len(digest))
	}
	return nil
}
