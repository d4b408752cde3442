package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// OpenSearchAudit appends one document per finished exchange to a fixed
// index. The documents are the operator's long-term, queryable record;
// the sqlite history remains the source of truth.
type OpenSearchAudit struct {
	client *opensearch.Client
	index  string
}

type OpenSearchConfig struct {
	// Addresses lists the cluster endpoints.
	Addresses []string
	Username  string
	Password  string
	// Index receives the exchange documents.
	Index string
}

func NewOpenSearchAudit(cfg *OpenSearchConfig) (*OpenSearchAudit, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("opensearch addresses are required")
	}
	if cfg.Index == "" {
		return nil, errors.New("opensearch index is required")
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	return &OpenSearchAudit{client: client, index: cfg.Index}, nil
}

func (a *OpenSearchAudit) Index(ctx context.Context, document map[string]interface{}) error {
	body, err := json.Marshal(document)
	if err != nil {
		return err
	}

	req := opensearchapi.IndexRequest{
		Index: a.index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch rejected the document: %s", res.String())
	}
	return nil
}
