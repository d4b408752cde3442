package signer

import (
	"context"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/btcsuite/btcd/btcec/v2"
)

type kmsAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// KMSSigner signs with a secp256k1 key held in AWS KMS. The key never
// leaves the HSM; only digests travel over the wire.
type KMSSigner struct {
	client kmsAPI
	keyID  string
}

func NewKMSSigner(cfg aws.Config, keyID string) *KMSSigner {
	return &KMSSigner{client: kms.NewFromConfig(cfg), keyID: keyID}
}

func (s *KMSSigner) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	if err := checkDigest(digest); err != nil {
		return nil, err
	}

	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          digest,
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, fmt.Errorf("kms sign failed: %w", err)
	}

	return normalizeDER(out.Signature)
}

func (s *KMSSigner) PublicKey(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(s.keyID),
	})
	if err != nil {
		return nil, fmt.Errorf("kms get public key failed: %w", err)
	}

	// KMS returns a DER-encoded SubjectPublicKeyInfo.
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(out.PublicKey, &spki); err != nil {
		return nil, fmt.Errorf("failed to parse SubjectPublicKeyInfo: %w", err)
	}

	pub, err := btcec.ParsePubKey(spki.PublicKey.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse secp256k1 point: %w", err)
	}
	return pub.SerializeUncompressed(), nil
}

type ecdsaSignature struct {
	R, S *big.Int
}

// normalizeDER rewrites a DER signature so that S lies in the lower
// half of the curve order. KMS does not guarantee low-S, and Chain-N
// rejects malleable signatures.
func normalizeDER(der []byte) ([]byte, error) {
	var sig ecdsaSignature
	if rest, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, fmt.Errorf("failed to parse DER signature: %w", err)
	} else if len(rest) != 0 {
		return nil, fmt.Errorf("trailing bytes after DER signature")
	}

	n := btcec.S256().N
	halfN := new(big.Int).Rsh(n, 1)
	if sig.S.Cmp(halfN) <= 0 {
		return der, nil
	}

	sig.S = new(big.Int).Sub(n, sig.S)
	return asn1.Marshal(sig)
}
