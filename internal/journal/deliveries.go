package journal

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

const (
	// DeliveriesKey is the KeyValueStore document of the delivery log.
	DeliveriesKey = "deliveries"

	// MaxDeliveries bounds the delivery log.
	MaxDeliveries = 10000
)

// DeliveryLog is the outreach agent's delivery history. It doubles as the
// idempotence store: a "sent" record for (identity, type) suppresses resends.
type DeliveryLog struct {
	log *cappedLog[domain.DeliveryRecord]
}

// DeliveryCounts tallies records of one campaign type by status.
type DeliveryCounts struct {
	Sent    int
	Failed  int
	Invalid int
}

// NewDeliveryLog loads the delivery log document.
func NewDeliveryLog(store domain.KeyValueStore, logger *zap.Logger) *DeliveryLog {
	return &DeliveryLog{
		log: newCappedLog[domain.DeliveryRecord](store, DeliveriesKey, MaxDeliveries, logger.Named("deliveries")),
	}
}

// Append records rec as the newest entry.
func (d *DeliveryLog) Append(rec domain.DeliveryRecord) error {
	return d.log.prepend(rec)
}

// Recent returns up to n newest records.
func (d *DeliveryLog) Recent(n int) []domain.DeliveryRecord {
	return d.log.recent(n)
}

func (d *DeliveryLog) Len() int {
	return d.log.len()
}

// Clear drops every record, re-enabling sends to all targets.
func (d *DeliveryLog) Clear() (int, error) {
	return d.log.clear()
}

// Sent returns the identities holding a "sent" record for exactly t.
func (d *DeliveryLog) Sent(t domain.CampaignType) map[domain.Identity]struct{} {
	sent := make(map[domain.Identity]struct{})
	d.log.each(func(rec domain.DeliveryRecord) {
		if rec.CampaignType == t && rec.Status == domain.DeliverySent {
			sent[rec.Identity] = struct{}{}
		}
	})
	return sent
}

// Counts tallies records of type t by status.
func (d *DeliveryLog) Counts(t domain.CampaignType) DeliveryCounts {
	var c DeliveryCounts
	d.log.each(func(rec domain.DeliveryRecord) {
		if rec.CampaignType != t {
			return
		}
		switch rec.Status {
		case domain.DeliverySent:
			c.Sent++
		case domain.DeliveryFailed:
			c.Failed++
		case domain.DeliveryInvalid:
			c.Invalid++
		}
	})
	return c
}
