package events

import "encoding/json"

// Event names published by the daemon.
const (
	PointAdded     = "point.added"
	ChannelUpdated = "channel.updated"
	ChannelRemoved = "channel.removed"
	ConfigReloaded = "config.reloaded"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// PointAddedEvent is the payload of point.added.
type PointAddedEvent struct {
	Channel   string  `json:"channel"`
	Reference float64 `json:"reference"`
	Measured  float64 `json:"measured"`
	Replaced  bool    `json:"replaced,omitempty"`
	Ts        int64   `json:"ts"`
}

// ChannelEvent is the payload of channel.updated and channel.removed.
type ChannelEvent struct {
	Channel string `json:"channel"`
	Points  int    `json:"points"`
	Ts      int64  `json:"ts"`
}

// ConfigReloadedEvent is the payload of config.reloaded.
type ConfigReloadedEvent struct {
	Channels []string `json:"channels"`
	Error    string   `json:"error,omitempty"`
	Trigger  string   `json:"trigger"`
	Ts       int64    `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// If Data is empty, it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.PointAddedEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Channel, payload.Reference)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
