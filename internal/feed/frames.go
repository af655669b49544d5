package feed

import (
	"encoding/json"
	"time"

	"github.com/rickgao/insightdash/internal/live"
)

// Inbound frame types.
const (
	typeSubscribe = "subscribe"
	typePing      = "ping"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// outbound is the envelope of every frame the server sends.
type outbound struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
}

// inbound is the union of the frames a subscriber may send.
type inbound struct {
	Type      string `json:"type"`
	DatasetID int64  `json:"dataset_id"`
	Timestamp string `json:"timestamp"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func encode(typ string, payload any, now time.Time) ([]byte, error) {
	return json.Marshal(outbound{
		Type:      typ,
		Payload:   payload,
		Timestamp: formatTime(now),
	})
}

func welcomeFrame(message string, now time.Time) ([]byte, error) {
	return encode(live.TypeConnection, live.ConnectionMessage{
		Status:  "connected",
		Message: message,
	}, now)
}

func subscriptionFrame(datasetID int64, now time.Time) ([]byte, error) {
	return encode(live.TypeSubscriptionConfirmed, live.SubscriptionConfirmed{
		DatasetID: datasetID,
		Status:    "subscribed",
	}, now)
}

func pongFrame(now time.Time) ([]byte, error) {
	return encode(live.TypePong, live.Pong{Timestamp: formatTime(now)}, now)
}

func dataUpdateFrame(datasetID int64, data live.DataPoint, now time.Time) ([]byte, error) {
	return encode(live.TypeDataUpdate, live.DataUpdate{
		DatasetID: datasetID,
		Data:      data,
		Timestamp: formatTime(now),
	}, now)
}

func forecastFrame(datasetID int64, forecast json.RawMessage, now time.Time) ([]byte, error) {
	return encode(live.TypeForecastComplete, live.ForecastComplete{
		DatasetID: datasetID,
		Forecast:  forecast,
		Timestamp: formatTime(now),
	}, now)
}
