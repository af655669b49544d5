package live

import (
	"encoding/json"
	"errors"
	"time"
)

// Kind identifies an event delivered to listeners.
type Kind int

const (
	KindConnected Kind = iota + 1
	KindDisconnected
	KindError
	KindMaxReconnectAttemptsReached

	KindDataUpdate
	KindForecastComplete
	KindConnectionMessage
	KindSubscriptionConfirmed
	KindPong

	// KindMessage receives every frame whose type is not one of the above.
	KindMessage
)

// Inbound frame types.
const (
	TypeDataUpdate            = "data_update"
	TypeForecastComplete      = "forecast_complete"
	TypeConnection            = "connection"
	TypeSubscriptionConfirmed = "subscription_confirmed"
	TypePong                  = "pong"
)

func (k Kind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	case KindError:
		return "error"
	case KindMaxReconnectAttemptsReached:
		return "maxReconnectAttemptsReached"
	case KindDataUpdate:
		return "dataUpdate"
	case KindForecastComplete:
		return "forecastComplete"
	case KindConnectionMessage:
		return "connectionMessage"
	case KindSubscriptionConfirmed:
		return "subscriptionConfirmed"
	case KindPong:
		return "pong"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// kindForType maps a frame's type discriminator to the event kind it is delivered as.
func kindForType(t string) Kind {
	switch t {
	case TypeDataUpdate:
		return KindDataUpdate
	case TypeForecastComplete:
		return KindForecastComplete
	case TypeConnection:
		return KindConnectionMessage
	case TypeSubscriptionConfirmed:
		return KindSubscriptionConfirmed
	case TypePong:
		return KindPong
	default:
		return KindMessage
	}
}

// Event is a single notification passed to listeners.
//
// For frame kinds Payload is the frame's "payload" field, except KindMessage
// where Payload is the whole frame. Err is set only for KindError.
type Event struct {
	Kind       Kind
	Type       string // Frame type discriminator (frame kinds only)
	Payload    json.RawMessage
	Err        error
	ReceivedAt time.Time
}

var errNoPayload = errors.New("event has no payload")

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return errNoPayload
	}
	return json.Unmarshal(e.Payload, v)
}

// DataUpdate is the payload of a data_update frame.
type DataUpdate struct {
	DatasetID int64     `json:"dataset_id"`
	Data      DataPoint `json:"data"`
	Timestamp string    `json:"timestamp"`
}

// DataPoint is one streamed observation.
type DataPoint struct {
	DatasetID int64   `json:"dataset_id,omitempty"`
	Value     float64 `json:"value"`
	Category  string  `json:"category,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// ForecastComplete is the payload of a forecast_complete frame.
type ForecastComplete struct {
	DatasetID int64           `json:"dataset_id"`
	Forecast  json.RawMessage `json:"forecast"`
	Timestamp string          `json:"timestamp"`
}

// SubscriptionConfirmed is the payload of a subscription_confirmed frame.
type SubscriptionConfirmed struct {
	DatasetID int64  `json:"dataset_id"`
	Status    string `json:"status"`
}

// ConnectionMessage is the payload of the server's welcome frame.
type ConnectionMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Pong is the payload of a pong frame.
type Pong struct {
	Timestamp string `json:"timestamp"`
}
