package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSearchAuditValidation(t *testing.T) {
	_, err := NewOpenSearchAudit(&OpenSearchConfig{Index: "bridge-exchange"})
	assert.Error(t, err)

	_, err = NewOpenSearchAudit(&OpenSearchConfig{Addresses: []string{"http://localhost:9200"}})
	assert.Error(t, err)
}

func TestOpenSearchAuditIndexesDocument(t *testing.T) {
	var gotPath string
	var gotDoc map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotDoc))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"_index":"bridge-exchange","_id":"1","result":"created"}`)
	}))
	defer server.Close()

	audit, err := NewOpenSearchAudit(&OpenSearchConfig{
		Addresses: []string{server.URL},
		Index:     "bridge-exchange",
	})
	require.NoError(t, err)

	require.NoError(t, audit.Index(context.Background(), map[string]interface{}{
		"txId":   "ab12",
		"amount": "10.5",
	}))
	assert.Equal(t, "/bridge-exchange/_doc", gotPath)
	assert.Equal(t, "ab12", gotDoc["txId"])
	assert.Equal(t, "10.5", gotDoc["amount"])
}

func TestOpenSearchAuditPropagatesRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"mapper_parsing_exception"},"status":400}`)
	}))
	defer server.Close()

	audit, err := NewOpenSearchAudit(&OpenSearchConfig{
		Addresses: []string{server.URL},
		Index:     "bridge-exchange",
	})
	require.NoError(t, err)

	err = audit.Index(context.Background(), map[string]interface{}{"txId": "ab12"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}
