/*
Package nineman talks to a Chain-N node over GraphQL. It covers the
read side used by the monitor (tip, block lookups, transfer events)
and the write side used by the transfer path (build unsigned tx,
attach signature, stage).

Every call carries a per-call timeout and is retried with exponential
backoff before the error is surfaced.
*/
package nineman

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	ethcommon "github.com/ethereum/go-ethereum/common"
	graphql "github.com/hasura/go-graphql-client"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	DefaultRPCTimeout = 30 * time.Second
	DefaultMaxRetries = 5
)

type NineMan struct {
	gql        *graphql.Client
	url        string
	timeout    time.Duration
	maxRetries uint64

	// shortened in tests
	retryInterval time.Duration
}

type authTransport struct {
	token string
	base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

func NewNineMan(cfg *Config) (*NineMan, error) {
	if cfg.GraphQLEndpoint == "" {
		return nil, fmt.Errorf("chain-n graphql endpoint is required")
	}

	httpClient := &http.Client{}
	if cfg.AuthToken != "" {
		httpClient.Transport = &authTransport{token: cfg.AuthToken, base: http.DefaultTransport}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultRPCTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	return &NineMan{
		gql:           graphql.NewClient(cfg.GraphQLEndpoint, httpClient),
		url:           cfg.GraphQLEndpoint,
		timeout:       timeout,
		maxRetries:    maxRetries,
		retryInterval: backoff.DefaultInitialInterval,
	}, nil
}

func (m *NineMan) URL() string { return m.url }

// TipIndex returns the index of the node's current tip.
func (m *NineMan) TipIndex(ctx context.Context) (int64, error) {
	var q struct {
		NodeStatus struct {
			Tip struct {
				Index int64  `graphql:"index"`
				Hash  string `graphql:"hash"`
			} `graphql:"tip"`
		} `graphql:"nodeStatus"`
	}
	if err := m.query(ctx, &q, nil); err != nil {
		return 0, fmt.Errorf("failed to fetch chain-n tip: %w", err)
	}
	return q.NodeStatus.Tip.Index, nil
}

func (m *NineMan) BlockHash(ctx context.Context, index int64) (string, error) {
	var q struct {
		ChainQuery struct {
			BlockQuery struct {
				Block struct {
					Hash string `graphql:"hash"`
				} `graphql:"block(index: $index)"`
			} `graphql:"blockQuery"`
		} `graphql:"chainQuery"`
	}
	variables := map[string]interface{}{
		"index": graphql.ID(strconv.FormatInt(index, 10)),
	}
	if err := m.query(ctx, &q, variables); err != nil {
		return "", fmt.Errorf("failed to fetch hash of block %d: %w", index, err)
	}
	if q.ChainQuery.BlockQuery.Block.Hash == "" {
		return "", fmt.Errorf("block %d not found", index)
	}
	return q.ChainQuery.BlockQuery.Block.Hash, nil
}

func (m *NineMan) BlockIndex(ctx context.Context, hash string) (int64, error) {
	var q struct {
		ChainQuery struct {
			BlockQuery struct {
				Block struct {
					Index int64 `graphql:"index"`
					Hash  string `graphql:"hash"`
				} `graphql:"block(hash: $hash)"`
			} `graphql:"blockQuery"`
		} `graphql:"chainQuery"`
	}
	variables := map[string]interface{}{
		"hash": graphql.ID(hash),
	}
	if err := m.query(ctx, &q, variables); err != nil {
		return 0, fmt.Errorf("failed to resolve block %s: %w", hash, err)
	}
	if q.ChainQuery.BlockQuery.Block.Hash == "" {
		return 0, fmt.Errorf("block %s not found", hash)
	}
	return q.ChainQuery.BlockQuery.Block.Index, nil
}

// TransferEvents lists the NCG transfers to recipient in the block at
// index, in intra-block order.
func (m *NineMan) TransferEvents(ctx context.Context, index int64, recipient ethcommon.Address) ([]NCGTransferredEvent, error) {
	blockHash, err := m.BlockHash(ctx, index)
	if err != nil {
		return nil, err
	}

	var q struct {
		TransferNCGHistories []struct {
			BlockHash string  `graphql:"blockHash"`
			TxID      string  `graphql:"txId"`
			Sender    string  `graphql:"sender"`
			Recipient string  `graphql:"recipient"`
			Amount    string  `graphql:"amount"`
			Memo      *string `graphql:"memo"`
		} `graphql:"transferNCGHistories(blockHash: $blockHash, recipient: $recipient)"`
	}
	variables := map[string]interface{}{
		"blockHash": ByteString(blockHash),
		"recipient": Address(recipient.Hex()),
	}
	if err := m.query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to fetch transfers in block %d: %w", index, err)
	}

	events := make([]NCGTransferredEvent, 0, len(q.TransferNCGHistories))
	for _, h := range q.TransferNCGHistories {
		if !ethcommon.IsHexAddress(h.Sender) {
			return nil, fmt.Errorf("malformed sender address %q in tx %s", h.Sender, h.TxID)
		}
		amount, err := decimal.NewFromString(h.Amount)
		if err != nil {
			return nil, fmt.Errorf("malformed amount %q in tx %s: %w", h.Amount, h.TxID, err)
		}
		memo := ""
		if h.Memo != nil {
			memo = *h.Memo
		}
		events = append(events, NCGTransferredEvent{
			BlockHash: h.BlockHash,
			TxID:      h.TxID,
			Sender:    ethcommon.HexToAddress(h.Sender),
			Recipient: ethcommon.HexToAddress(h.Recipient),
			Amount:    amount,
			Memo:      memo,
		})
	}

	logger.WithFields(logger.Fields{
		"block":  index,
		"events": len(events),
	}).Debug("Fetched chain-n transfer events")
	return events, nil
}

// CreateUnsignedTransaction asks the node to build an unsigned
// transfer for the custodial sender, assigning the next nonce.
func (m *NineMan) CreateUnsignedTransaction(ctx context.Context, plainValueB64 string, publicKeyB64 string) (string, error) {
	var q struct {
		Transaction struct {
			UnsignedTransaction string `graphql:"unsignedTransaction(publicKey: $publicKey, plainValue: $plainValue)"`
		} `graphql:"transaction"`
	}
	variables := map[string]interface{}{
		"publicKey":  publicKeyB64,
		"plainValue": plainValueB64,
	}
	if err := m.query(ctx, &q, variables); err != nil {
		return "", fmt.Errorf("failed to build unsigned transaction: %w", err)
	}
	return q.Transaction.UnsignedTransaction, nil
}

// AttachSignature combines an unsigned transaction and a signature
// into a signed transaction.
func (m *NineMan) AttachSignature(ctx context.Context, unsignedHex string, signatureHex string) (string, error) {
	var q struct {
		Transaction struct {
			SignTransaction string `graphql:"signTransaction(unsignedTransaction: $unsignedTransaction, signature: $signature)"`
		} `graphql:"transaction"`
	}
	variables := map[string]interface{}{
		"unsignedTransaction": unsignedHex,
		"signature":           signatureHex,
	}
	if err := m.query(ctx, &q, variables); err != nil {
		return "", fmt.Errorf("failed to attach signature: %w", err)
	}
	return q.Transaction.SignTransaction, nil
}

// StageTransaction submits a signed transaction to this node's mempool.
func (m *NineMan) StageTransaction(ctx context.Context, signedB64 string) (bool, error) {
	var mu struct {
		StageTx bool `graphql:"stageTx(payload: $payload)"`
	}
	variables := map[string]interface{}{
		"payload": signedB64,
	}
	if err := m.mutate(ctx, &mu, variables); err != nil {
		return false, fmt.Errorf("failed to stage transaction on %s: %w", m.url, err)
	}
	return mu.StageTx, nil
}

func (m *NineMan) query(ctx context.Context, q interface{}, variables map[string]interface{}) error {
	return m.retry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		return m.gql.Query(callCtx, q, variables)
	})
}

func (m *NineMan) mutate(ctx context.Context, mu interface{}, variables map[string]interface{}) error {
	return m.retry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		return m.gql.Mutate(callCtx, mu, variables)
	})
}

func (m *NineMan) retry(ctx context.Context, op backoff.Operation) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.retryInterval
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, m.maxRetries), ctx))
}
