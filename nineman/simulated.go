package nineman

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// SimulatedTransfer is one NCG transfer served by a SimulatedNode.
type SimulatedTransfer struct {
	TxID      string
	Sender    string
	Recipient string
	Amount    string
	Memo      string
}

// SimulatedNode is an in-process stand-in for a Chain-N node's GraphQL
// endpoint. Test use only.
type SimulatedNode struct {
	mu sync.Mutex

	srv *httptest.Server

	tipIndex  int64
	blocks    map[int64]string
	indices   map[string]int64
	transfers map[string][]SimulatedTransfer

	staged      []string
	failStaging bool
	failures    map[string]int
}

func NewSimulatedNode() *SimulatedNode {
	n := &SimulatedNode{
		blocks:    map[int64]string{},
		indices:   map[string]int64{},
		transfers: map[string][]SimulatedTransfer{},
		failures:  map[string]int{},
	}
	n.srv = httptest.NewServer(http.HandlerFunc(n.handle))
	return n
}

func (n *SimulatedNode) URL() string { return n.srv.URL }
func (n *SimulatedNode) Close()      { n.srv.Close() }

func (n *SimulatedNode) SetTip(index int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tipIndex = index
}

func (n *SimulatedNode) AddBlock(index int64, hash string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.blocks[index] = hash
	n.indices[hash] = index
	if index > n.tipIndex {
		n.tipIndex = index
	}
}

func (n *SimulatedNode) AddTransfer(blockHash string, t SimulatedTransfer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transfers[blockHash] = append(n.transfers[blockHash], t)
}

// FailNext makes the next count requests matching the op discriminator
// fail with HTTP 500.
func (n *SimulatedNode) FailNext(op string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[op] = count
}

func (n *SimulatedNode) FailStaging(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failStaging = fail
}

func (n *SimulatedNode) StagedPayloads() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.staged...)
}

func (n *SimulatedNode) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for op, left := range n.failures {
		if left > 0 && strings.Contains(req.Query, op) {
			n.failures[op] = left - 1
			http.Error(w, "simulated failure", http.StatusInternalServerError)
			return
		}
	}

	switch {
	case strings.Contains(req.Query, "transferNCGHistories"):
		n.handleTransfers(w, req.Variables)
	case strings.Contains(req.Query, "nodeStatus"):
		n.handleTip(w)
	case strings.Contains(req.Query, "signTransaction("):
		n.handleSign(w, req.Variables)
	case strings.Contains(req.Query, "unsignedTransaction("):
		n.handleUnsigned(w, req.Variables)
	case strings.Contains(req.Query, "stageTx"):
		n.handleStage(w, req.Variables)
	case strings.Contains(req.Query, "block(index:"):
		n.handleBlockByIndex(w, req.Variables)
	case strings.Contains(req.Query, "block(hash:"):
		n.handleBlockByHash(w, req.Variables)
	default:
		writeGraphQLError(w, fmt.Sprintf("unsupported query: %s", req.Query))
	}
}

func (n *SimulatedNode) handleTip(w http.ResponseWriter) {
	writeData(w, map[string]interface{}{
		"nodeStatus": map[string]interface{}{
			"tip": map[string]interface{}{
				"index": n.tipIndex,
				"hash":  n.blocks[n.tipIndex],
			},
		},
	})
}

func (n *SimulatedNode) handleBlockByIndex(w http.ResponseWriter, vars map[string]interface{}) {
	index, err := strconv.ParseInt(stringVar(vars, "index"), 10, 64)
	if err != nil {
		writeGraphQLError(w, "invalid index")
		return
	}
	hash, ok := n.blocks[index]
	if !ok {
		writeGraphQLError(w, fmt.Sprintf("block %d not found", index))
		return
	}
	writeData(w, map[string]interface{}{
		"chainQuery": map[string]interface{}{
			"blockQuery": map[string]interface{}{
				"block": map[string]interface{}{"hash": hash},
			},
		},
	})
}

func (n *SimulatedNode) handleBlockByHash(w http.ResponseWriter, vars map[string]interface{}) {
	hash := stringVar(vars, "hash")
	index, ok := n.indices[hash]
	if !ok {
		writeGraphQLError(w, fmt.Sprintf("block %s not found", hash))
		return
	}
	writeData(w, map[string]interface{}{
		"chainQuery": map[string]interface{}{
			"blockQuery": map[string]interface{}{
				"block": map[string]interface{}{"index": index, "hash": hash},
			},
		},
	})
}

func (n *SimulatedNode) handleTransfers(w http.ResponseWriter, vars map[string]interface{}) {
	blockHash := stringVar(vars, "blockHash")
	rows := make([]map[string]interface{}, 0)
	for _, t := range n.transfers[blockHash] {
		rows = append(rows, map[string]interface{}{
			"blockHash": blockHash,
			"txId":      t.TxID,
			"sender":    t.Sender,
			"recipient": t.Recipient,
			"amount":    t.Amount,
			"memo":      t.Memo,
		})
	}
	writeData(w, map[string]interface{}{"transferNCGHistories": rows})
}

func (n *SimulatedNode) handleUnsigned(w http.ResponseWriter, vars map[string]interface{}) {
	payload := fmt.Sprintf("unsigned/%s/%s", stringVar(vars, "publicKey"), stringVar(vars, "plainValue"))
	writeData(w, map[string]interface{}{
		"transaction": map[string]interface{}{
			"unsignedTransaction": hex.EncodeToString([]byte(payload)),
		},
	})
}

func (n *SimulatedNode) handleSign(w http.ResponseWriter, vars map[string]interface{}) {
	unsigned, err := hex.DecodeString(stringVar(vars, "unsignedTransaction"))
	if err != nil {
		writeGraphQLError(w, "invalid unsigned transaction hex")
		return
	}
	signature, err := hex.DecodeString(stringVar(vars, "signature"))
	if err != nil {
		writeGraphQLError(w, "invalid signature hex")
		return
	}
	signed := append(append([]byte{}, unsigned...), signature...)
	writeData(w, map[string]interface{}{
		"transaction": map[string]interface{}{
			"signTransaction": hex.EncodeToString(signed),
		},
	})
}

func (n *SimulatedNode) handleStage(w http.ResponseWriter, vars map[string]interface{}) {
	if n.failStaging {
		writeGraphQLError(w, "mempool rejected the transaction")
		return
	}
	n.staged = append(n.staged, stringVar(vars, "payload"))
	writeData(w, map[string]interface{}{"stageTx": true})
}

func stringVar(vars map[string]interface{}, key string) string {
	s, _ := vars[key].(string)
	return s
}

func writeData(w http.ResponseWriter, data map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func writeGraphQLError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]interface{}{{"message": message}},
	})
}
