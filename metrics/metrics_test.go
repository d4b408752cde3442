package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentsAreRegistered(t *testing.T) {
	ObservedBlockHeight.WithLabelValues("testnet").Set(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(ObservedBlockHeight.WithLabelValues("testnet")))

	ObservedEvents.WithLabelValues("testnet").Add(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(ObservedEvents.WithLabelValues("testnet")))

	Exchanges.WithLabelValues("testnet", "emitted").Inc()
	Exchanges.WithLabelValues("testnet", "refunded").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(Exchanges.WithLabelValues("testnet", "emitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Exchanges.WithLabelValues("testnet", "refunded")))

	ExchangedNCG.WithLabelValues("testnet").Add(10.5)
	assert.Equal(t, 10.5, testutil.ToFloat64(ExchangedNCG.WithLabelValues("testnet")))
}
