package ninesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/moreal/NineChronicles.EthBridge/common"
	"github.com/moreal/NineChronicles.EthBridge/metrics"
	"github.com/moreal/NineChronicles.EthBridge/monitor"
	"github.com/moreal/NineChronicles.EthBridge/nineman"
	"github.com/moreal/NineChronicles.EthBridge/policy"
	"github.com/moreal/NineChronicles.EthBridge/state"
)

type ObserverConfig struct {
	// EtherscanBaseURL and ExplorerBaseURL turn tx ids into links in
	// chat messages. Empty bases post bare ids.
	EtherscanBaseURL string
	ExplorerBaseURL  string
}

// Observer turns each confirmed NCG deposit into a wNCG mint. Deposits
// the exchange policy refuses are returned to the sender, so unlike the
// burn direction every outcome here either moves value or records why
// it did not.
type Observer struct {
	history   *state.HistoryDB
	minter    WNCGMinter
	refunder  NineTransferor
	policy    *policy.ExchangePolicy
	messenger Messenger
	audit     AuditStore
	pager     monitor.Pager
	cfg       ObserverConfig
}

func NewObserver(
	history *state.HistoryDB,
	minter WNCGMinter,
	refunder NineTransferor,
	exchangePolicy *policy.ExchangePolicy,
	messenger Messenger,
	audit AuditStore,
	pager monitor.Pager,
	cfg ObserverConfig,
) *Observer {
	return &Observer{
		history:   history,
		minter:    minter,
		refunder:  refunder,
		policy:    exchangePolicy,
		messenger: messenger,
		audit:     audit,
		pager:     pager,
		cfg:       cfg,
	}
}

func (o *Observer) Notify(ctx context.Context, envelope monitor.BlockEnvelope[nineman.NCGTransferredEvent]) error {
	metrics.ObservedBlockHeight.WithLabelValues(MonitorName).Set(float64(envelope.BlockIndex))
	metrics.ObservedEvents.WithLabelValues(MonitorName).Add(float64(len(envelope.Events)))
	for _, event := range envelope.Events {
		if err := o.observe(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Chain-N transactions carry one transfer action, so logIndex is always 0.
const nineLogIndex uint = 0

func (o *Observer) observe(ctx context.Context, event nineman.NCGTransferredEvent) error {
	has, err := o.history.Has(state.NetworkNineChronicles, event.TxID, nineLogIndex)
	if err != nil {
		return err
	}
	if has {
		logger.WithFields(logger.Fields{
			"txId": event.TxID,
		}).Debug("Deposit already processed, skip")
		return nil
	}

	requested := common.FloorNCG(event.Amount)

	if o.policy.IsBanned(event.Sender) {
		if insertErr := o.history.Insert(&state.ExchangeRecord{
			Network:   state.NetworkNineChronicles,
			TxID:      event.TxID,
			LogIndex:  nineLogIndex,
			Sender:    event.Sender,
			Requested: requested,
			Status:    state.StatusRejected,
			Note:      "sender is banned",
		}); insertErr != nil {
			return insertErr
		}
		metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusRejected)).Inc()
		o.say(ctx, fmt.Sprintf("Exchange refused from a banned sender.\n- source: %s\n- sender: %s",
			o.sourceLink(event.TxID), event.Sender.Hex()))
		return nil
	}

	recipient, ok := parseRecipient(event.Memo)
	if !ok {
		return o.refundAll(ctx, event, requested, "memo is not a valid recipient address")
	}

	effective, excess, err := o.policy.Clamp(event.Amount)
	switch {
	case errors.Is(err, policy.ErrZeroAmount):
		if insertErr := o.history.Insert(&state.ExchangeRecord{
			Network:   state.NetworkNineChronicles,
			TxID:      event.TxID,
			LogIndex:  nineLogIndex,
			Sender:    event.Sender,
			Sink:      recipient,
			Requested: requested,
			Status:    state.StatusRejected,
			Note:      err.Error(),
		}); insertErr != nil {
			return insertErr
		}
		metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusRejected)).Inc()
		o.say(ctx, fmt.Sprintf("Ignored a dust NCG deposit.\n- source: %s\n- amount: %s NCG",
			o.sourceLink(event.TxID), event.Amount))
		return nil
	case errors.Is(err, policy.ErrBelowMinimum):
		return o.refundAll(ctx, event, requested,
			fmt.Sprintf("amount is below the minimum %s NCG", o.policy.Min()))
	case err != nil:
		return err
	}

	fee := o.policy.Fee(effective)
	sent := effective.Sub(fee)

	record := &state.ExchangeRecord{
		Network:   state.NetworkNineChronicles,
		TxID:      event.TxID,
		LogIndex:  nineLogIndex,
		Sender:    event.Sender,
		Sink:      recipient,
		Requested: requested,
		Sent:      sent,
		Fee:       fee,
		Refunded:  excess,
		Status:    state.StatusEmitted,
	}
	if err := o.history.Insert(record); err != nil {
		if errors.Is(err, state.ErrDuplicateRecord) {
			return nil
		}
		return err
	}

	started := time.Now()
	counterTxID, err := o.minter.Mint(ctx, recipient, common.NCGToBaseUnits(sent))
	if err != nil {
		// The deposit is already in custody. Never mint again blindly;
		// an operator resolves the exchange, excess refund included.
		if markErr := o.history.MarkFailed(state.NetworkNineChronicles, event.TxID, nineLogIndex, err.Error()); markErr != nil {
			logger.WithFields(logger.Fields{
				"txId": event.TxID,
				"err":  markErr,
			}).Error("Failed to mark record as failed")
		}
		metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusFailed)).Inc()
		o.page(ctx, "wNCG mint failed", map[string]interface{}{
			"txId":   event.TxID,
			"sender": event.Sender.Hex(),
			"amount": sent.String(),
			"err":    err.Error(),
		})
		return nil
	}
	metrics.EmissionDuration.WithLabelValues(MonitorName).Observe(time.Since(started).Seconds())
	metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusEmitted)).Inc()
	metrics.ExchangedNCG.WithLabelValues(MonitorName).Add(sent.InexactFloat64())

	if err := o.history.SetCounterTx(state.NetworkNineChronicles, event.TxID, nineLogIndex, counterTxID); err != nil {
		logger.WithFields(logger.Fields{
			"txId":        event.TxID,
			"counterTxId": counterTxID,
			"err":         err,
		}).Error("Failed to record counter transaction")
	}

	refundTxID := ""
	if excess.IsPositive() {
		refundTxID, err = o.refund(ctx, event, excess,
			fmt.Sprintf("amount exceeds the maximum %s NCG", o.policy.Max()))
		if err != nil {
			o.page(ctx, "Refund failed", map[string]interface{}{
				"txId":   event.TxID,
				"sender": event.Sender.Hex(),
				"amount": excess.String(),
				"err":    err.Error(),
			})
			refundTxID = ""
		} else if refundTxID != "" {
			if annErr := o.history.AnnotateRefund(state.NetworkNineChronicles, event.TxID, nineLogIndex,
				excess, refundTxID, state.StatusEmitted); annErr != nil {
				logger.WithFields(logger.Fields{
					"txId": event.TxID,
					"err":  annErr,
				}).Error("Failed to record refund transaction")
			}
		}
	}

	text := fmt.Sprintf("NCG → wNCG exchange done.\n- source: %s\n- destination: %s\n- amount: %s NCG (fee %s NCG)",
		o.sourceLink(event.TxID), o.destinationLink(counterTxID), sent, fee)
	if excess.IsPositive() {
		text += fmt.Sprintf("\n- refunded excess: %s NCG", excess)
	}
	o.say(ctx, text)
	o.writeAudit(ctx, map[string]interface{}{
		"network":     string(state.NetworkNineChronicles),
		"txId":        event.TxID,
		"counterTxId": counterTxID,
		"refundTxId":  refundTxID,
		"sender":      event.Sender.Hex(),
		"recipient":   recipient.Hex(),
		"requested":   requested.String(),
		"sent":        sent.String(),
		"fee":         fee.String(),
		"refunded":    excess.String(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// refundAll records a rejected exchange and returns the whole deposit to
// the sender.
func (o *Observer) refundAll(ctx context.Context, event nineman.NCGTransferredEvent, amount decimal.Decimal, reason string) error {
	if err := o.history.Insert(&state.ExchangeRecord{
		Network:   state.NetworkNineChronicles,
		TxID:      event.TxID,
		LogIndex:  nineLogIndex,
		Sender:    event.Sender,
		Requested: amount,
		Status:    state.StatusRejected,
		Note:      reason,
	}); err != nil {
		if errors.Is(err, state.ErrDuplicateRecord) {
			return nil
		}
		return err
	}

	if amount.IsZero() {
		metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusRejected)).Inc()
		return nil
	}

	refundTxID, err := o.refund(ctx, event, amount, reason)
	if err != nil {
		metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusRejected)).Inc()
		o.page(ctx, "Refund failed", map[string]interface{}{
			"txId":   event.TxID,
			"sender": event.Sender.Hex(),
			"amount": amount.String(),
			"reason": reason,
			"err":    err.Error(),
		})
		return nil
	}
	if refundTxID == "" {
		metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusRejected)).Inc()
		return nil
	}

	if err := o.history.AnnotateRefund(state.NetworkNineChronicles, event.TxID, nineLogIndex,
		amount, refundTxID, state.StatusRefunded); err != nil {
		logger.WithFields(logger.Fields{
			"txId": event.TxID,
			"err":  err,
		}).Error("Failed to record refund transaction")
	}
	metrics.Exchanges.WithLabelValues(MonitorName, string(state.StatusRefunded)).Inc()

	o.say(ctx, fmt.Sprintf("NCG returned to the sender.\n- reason: %s\n- source: %s\n- refund: %s\n- amount: %s NCG",
		reason, o.sourceLink(event.TxID), o.sourceLink(refundTxID), amount))
	return nil
}

// refund sends NCG back to the event's sender, retrying once. A banned
// sender gets nothing back: the transfer is withheld and paged so an
// operator can decide what to do with the deposit.
func (o *Observer) refund(ctx context.Context, event nineman.NCGTransferredEvent, amount decimal.Decimal, reason string) (string, error) {
	if o.policy.IsBanned(event.Sender) {
		logger.WithFields(logger.Fields{
			"txId":   event.TxID,
			"sender": event.Sender.Hex(),
		}).Warn("Refund withheld from a banned sender")
		o.page(ctx, "Refund withheld from a banned sender", map[string]interface{}{
			"txId":   event.TxID,
			"sender": event.Sender.Hex(),
			"amount": amount.String(),
		})
		return "", nil
	}

	memo := "refund: " + reason
	txID, err := o.refunder.Transfer(ctx, event.Sender, amount, memo)
	if err == nil {
		return txID, nil
	}
	logger.WithFields(logger.Fields{
		"txId": event.TxID,
		"err":  err,
	}).Warn("Refund transfer failed, retrying once")
	return o.refunder.Transfer(ctx, event.Sender, amount, memo)
}

func parseRecipient(memo string) (ethcommon.Address, bool) {
	if !ethcommon.IsHexAddress(memo) {
		return ethcommon.Address{}, false
	}
	addr := ethcommon.HexToAddress(memo)
	if addr == (ethcommon.Address{}) {
		// Minting to the zero address destroys the wrapped token.
		return addr, false
	}
	return addr, true
}

func (o *Observer) sourceLink(txID string) string {
	if o.cfg.ExplorerBaseURL == "" {
		return txID
	}
	return fmt.Sprintf("%s/tx/%s", o.cfg.ExplorerBaseURL, txID)
}

func (o *Observer) destinationLink(txID string) string {
	if o.cfg.EtherscanBaseURL == "" {
		return txID
	}
	return fmt.Sprintf("%s/tx/%s", o.cfg.EtherscanBaseURL, txID)
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
