package realtime

import (
	"time"

	"github.com/rickgao/insightdash/internal/live"
)

// Point is one accepted observation of a dataset.
type Point struct {
	DatasetID  int64     `json:"dataset_id"`
	Value      float64   `json:"value"`
	Category   string    `json:"category,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// Layouts accepted for point timestamps, tried in order. The backend emits
// naive ISO-8601 times which are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a point timestamp. It reports false for empty or
// unrecognized values.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// pointFromUpdate converts a data_update payload. The point's own timestamp
// wins over the frame's, and receivedAt is the last resort.
func pointFromUpdate(u live.DataUpdate, receivedAt time.Time) Point {
	id := u.DatasetID
	if id == 0 {
		id = u.Data.DatasetID
	}

	observed, ok := ParseTimestamp(u.Data.Timestamp)
	if !ok {
		observed, ok = ParseTimestamp(u.Timestamp)
	}
	if !ok {
		observed = receivedAt.UTC()
	}

	return Point{
		DatasetID:  id,
		Value:      u.Data.Value,
		Category:   u.Data.Category,
		ObservedAt: observed,
		ReceivedAt: receivedAt,
	}
}
