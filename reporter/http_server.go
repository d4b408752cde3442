// This is a http type of reporter.
// It fetches data from the exchange history and cursor stores
// and publishes on the http routes, metrics included.

package reporter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moreal/NineChronicles.EthBridge/state"
)

const (
	ROUTE_HEALTH  = "/health"
	ROUTE_HISTORY = "/history"
	ROUTE_CURSORS = "/cursors"
	ROUTE_METRICS = "/metrics"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	historydb *state.HistoryDB
	cursordb  *state.CursorDB
}

func NewHttpReporter(serverIP string, serverPort string, historydb *state.HistoryDB, cursordb *state.CursorDB) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		historydb:  historydb,
		cursordb:   cursordb,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_HEALTH, h.Health)
	router.GET(ROUTE_HISTORY, h.History)
	router.GET(ROUTE_CURSORS, h.Cursors)
	router.GET(ROUTE_METRICS, gin.WrapH(promhttp.Handler()))

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (h *HttpReporter) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    h.serverIP + ":" + h.serverPort,
		Handler: h.SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Health reports whether the reporter can still reach its stores.
func (h *HttpReporter) Health(c *gin.Context) {
	if _, err := h.cursordb.All(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// History serves either one record (tx_id plus network) or the most
// recent records, optionally filtered by status.
func (h *HttpReporter) History(c *gin.Context) {
	if txID := c.Query("tx_id"); txID != "" {
		h.historyByTx(c, txID)
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var records []*state.ExchangeRecord
	var err error
	if status := c.Query("status"); status != "" {
		records, err = h.historydb.RecentByStatus(state.ExchangeStatus(status), limit)
	} else {
		records, err = h.historydb.Recent(limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]*state.JSONExchangeRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.JSON())
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *HttpReporter) historyByTx(c *gin.Context, txID string) {
	network := c.Query("network")
	if network == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "network must be provided with tx_id"})
		return
	}

	logIndex := 0
	if raw := c.Query("log_index"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "log_index must be a non-negative integer"})
			return
		}
		logIndex = parsed
	}

	record, err := h.historydb.Get(state.Network(network), txID, uint(logIndex))
	if errors.Is(err, state.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No exchange found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record.JSON()})
}

// Cursors publishes the last processed location of every monitor.
func (h *HttpReporter) Cursors(c *gin.Context) {
	cursors, err := h.cursordb.All()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := gin.H{}
	for name, loc := range cursors {
		out[name] = gin.H{"block_hash": loc.BlockHash, "tx_id": loc.TxID}
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}
