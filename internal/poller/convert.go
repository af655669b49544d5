package poller

import (
	"time"

	"github.com/rickgao/insightdash/internal/api"
	"github.com/rickgao/insightdash/internal/realtime"
)

// categoryKey is the meta_data field carrying a point's category.
const categoryKey = "category"

// ToPoints converts REST data points to realtime points. Points whose
// timestamp cannot be parsed are skipped.
func ToPoints(datasetID int64, data []api.DataPoint, receivedAt time.Time) []realtime.Point {
	out := make([]realtime.Point, 0, len(data))
	for _, d := range data {
		observed, ok := realtime.ParseTimestamp(d.Timestamp)
		if !ok {
			continue
		}

		id := d.DatasetID
		if id == 0 {
			id = datasetID
		}

		var category string
		if v, ok := d.MetaData[categoryKey].(string); ok {
			category = v
		}

		out = append(out, realtime.Point{
			DatasetID:  id,
			Value:      d.Value,
			Category:   category,
			ObservedAt: observed,
			ReceivedAt: receivedAt,
		})
	}
	return out
}
