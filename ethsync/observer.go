package ethsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/moreal/NineChronicles.EthBridge/common"
	"github.com/moreal/NineChronicles.EthBridge/etherman"
	"github.com/moreal/NineChronicles.EthBridge/metrics"
	"github.com/moreal/NineChronicles.EthBridge/monitor"
	"github.com/moreal/NineChronicles.EthBridge/state"
)

type ObserverConfig struct {
	// Planet is the id every burn's destination tag must carry.
	Planet common.PlanetID

	// EtherscanBaseURL and ExplorerBaseURL turn tx ids into links in
	// chat messages. Empty bases post bare ids.
	EtherscanBaseURL string
	ExplorerBaseURL  string
}

// Observer turns each confirmed wNCG burn into an NCG transfer. A burn
// destroys the wrapped token up front, so a burn that cannot be paid
// out is recorded and paged; there is nothing to refund.
type Observer struct {
	history    *state.HistoryDB
	transferor NineTransferor
	messenger  Messenger
	audit      AuditStore
	pager      monitor.Pager
	cfg        ObserverConfig
}

func NewObserver(
	history *state.HistoryDB,
	transferor NineTransferor,
	messenger Messenger,
	audit AuditStore,
	pager monitor.Pager,
	cfg ObserverConfig,
) *Observer {
	return &Observer{
		history:    history,
		transferor: transferor,
		messenger:  messenger,
		audit:      audit,
		pager:      pager,
		cfg:        cfg,
	}
}

func (o *Observer) Notify(ctx context.Context, envelope monitor.BlockEnvelope[etherman.BurnEvent]) error {
	metrics.ObservedBlockHeight.WithLabelValues(MonitorName).Set(float64(envelope.BlockIndex))
	metrics.ObservedEvents.WithLabelValues(MonitorName).Add(float64(len(envelope.Events)))
	for _, event := range envelope.Events {
		if err := o.observe(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (o *Observer) observe(ctx context.Context, event etherman.BurnEvent) error {
	has, err := o.history.Has(state.NetworkEthereum, event.TxID, event.LogIndex)
	if err != nil {
		return err
	}
	if has {
		logger.WithFields(logger.Fields{
			"txId":     event.TxID,
			"logIndex": event.LogIndex,
		}).Debug("Burn already processed, skip")
		return nil
	}

	requested := common.BaseUnitsToNCG(event.Amount)

	recipient, err := common.ParseBurnRecipient(event.To, o.cfg.Planet)
	if err != nil {
		if insertErr := o.history.Insert(&state.ExchangeRecord{
			Network:   state.NetworkEthereum,
			TxID:      event.TxID,
			LogIndex:  event.LogIndex,
			Sender:    event.Sender,
			Requested: requested,
			Status:    state.StatusRejected,
			Note:      err.Error(),
		}); insertErr != nil {
			return insertErr
		}
		metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusRejected)).Inc()
		o.page(ctx, "Unredeemable wNCG burn", map[string]interface{}{
			"txId":     event.TxID,
			"logIndex": event.LogIndex,
			"reason":   err.Error(),
		})
		return nil
	}

	if requested.IsZero() {
		if insertErr := o.history.Insert(&state.ExchangeRecord{
			Network:   state.NetworkEthereum,
			TxID:      event.TxID,
			LogIndex:  event.LogIndex,
			Sender:    event.Sender,
			Sink:      recipient,
			Requested: requested,
			Status:    state.StatusRejected,
			Note:      "burn is smaller than the minimum NCG unit",
		}); insertErr != nil {
			return insertErr
		}
		metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusRejected)).Inc()
		o.say(ctx, fmt.Sprintf("Ignored a dust wNCG burn.\n- source: %s\n- amount: %s", o.sourceLink(event.TxID), event.Amount))
		return nil
	}

	record := &state.ExchangeRecord{
		Network:   state.NetworkEthereum,
		TxID:      event.TxID,
		LogIndex:  event.LogIndex,
		Sender:    event.Sender,
		Sink:      recipient,
		Requested: requested,
		Sent:      requested,
		Status:    state.StatusEmitted,
	}
	if err := o.history.Insert(record); err != nil {
		if errors.Is(err, state.ErrDuplicateRecord) {
			return nil
		}
		return err
	}

	started := time.Now()
	counterTxID, err := o.transfer(ctx, recipient, event)
	if err != nil {
		if markErr := o.history.MarkFailed(state.NetworkEthereum, event.TxID, event.LogIndex, err.Error()); markErr != nil {
			logger.WithFields(logger.Fields{
				"txId": event.TxID,
				"err":  markErr,
			}).Error("Failed to mark record as failed")
		}
		metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusFailed)).Inc()
		o.page(ctx, "Chain-N payout failed", map[string]interface{}{
			"txId":     event.TxID,
			"logIndex": event.LogIndex,
			"amount":   requested.String(),
			"err":      err.Error(),
		})
		return nil
	}
	metrics.EmissionDuration.WithLabelValues(MonitorName).Observe(time.Since(started).Seconds())
	metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusEmitted)).Inc()
	metrics.ExchangedNCG.WithLabelValues(MonitorName).Add(requested.InexactFloat64())

	if err := o.history.SetCounterTx(state.NetworkEthereum, event.TxID, event.LogIndex, counterTxID); err != nil {
		logger.WithFields(logger.Fields{
			"txId":        event.TxID,
			"counterTxId": counterTxID,
			"err":         err,
		}).Error("Failed to record counter transaction")
	}

	o.say(ctx, fmt.Sprintf("wNCG → NCG exchange done.\n- source: %s\n- destination: %s\n- amount: %s NCG",
		o.sourceLink(event.TxID), o.destinationLink(counterTxID), requested))
	o.writeAudit(ctx, map[string]interface{}{
		"network":     string(state.NetworkEthereum),
		"txId":        event.TxID,
		"logIndex":    event.LogIndex,
		"counterTxId": counterTxID,
		"sender":      event.Sender.Hex(),
		"recipient":   recipient.Hex(),
		"amount":      requested.String(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// transfer retries once before giving up; the signer path reports
// transient node failures as plain errors.
func (o *Observer) transfer(ctx context.Context, recipient ethcommon.Address, event etherman.BurnEvent) (string, error) {
	amount := common.BaseUnitsToNCG(event.Amount)
	txID, err := o.transferor.Transfer(ctx, recipient, amount, "")
	if err == nil {
		return txID, nil
	}
	logger.WithFields(logger.Fields{
		"txId": event.TxID,
		"err":  err,
	}).Warn("Chain-N transfer failed, retrying once")
	return o.transferor.Transfer(ctx, recipient, amount, "")
}

func (o *Observer) sourceLink(txID string) string {
	if o.cfg.EtherscanBaseURL == "" {
		return txID
	}
	return fmt.Sprintf("%s/tx/%s", o.cfg.EtherscanBaseURL, txID)
}

func (o *Observer) destinationLink(txID string) string {
	if o.cfg.ExplorerBaseURL == "" {
		return txID
	}
	return fmt.Sprintf("%s/tx/%s", o.cfg.ExplorerBaseURL, txID)
}

func (o *Observer) say(ctx context.Context, text string) {
	if o.messenger == nil {
		return
	}
	if err := o.messenger.SendMessage(ctx, text); err != nil {
		logger.WithFields(logger.Fields{"err": err}).Warn("Failed to send chat message")
	}
}

func (o *Observer) writeAudit(ctx context.Context, document map[string]interface{}) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Index(ctx, document); err != nil {
		logger.WithFields(logger.Fields{"err": err}).Warn("Failed to write audit document")
	}
}

func (o *Observer) page(ctx context.Context, summary string, details map[string]interface{}) {
	if o.pager == nil {
		return
	}
	if err := o.pager.Page(ctx, summary, details); err != nil {
		logger.WithFields(logger.Fields{"err": err}).Error("Failed to page")
	}
}
