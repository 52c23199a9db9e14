package journal

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

const (
	// DetectionsKey is the KeyValueStore document of the detection log.
	DetectionsKey = "detections"

	// MaxDetections bounds the detection log.
	MaxDetections = 500
)

// DetectionLog is the watchdog's audit trail, one record per handled detection.
type DetectionLog struct {
	log *cappedLog[domain.DetectionRecord]
}

// NewDetectionLog loads the detection log document.
func NewDetectionLog(store domain.KeyValueStore, logger *zap.Logger) *DetectionLog {
	return &DetectionLog{
		log: newCappedLog[domain.DetectionRecord](store, DetectionsKey, MaxDetections, logger.Named("detections")),
	}
}

// Append records rec as the newest entry.
func (d *DetectionLog) Append(rec domain.DetectionRecord) error {
	return d.log.prepend(rec)
}

// Recent returns up to n newest records.
func (d *DetectionLog) Recent(n int) []domain.DetectionRecord {
	return d.log.recent(n)
}

func (d *DetectionLog) Len() int {
	return d.log.len()
}
