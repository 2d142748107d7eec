package session

import "time"

// EventType identifies a session lifecycle event.
type EventType string

// Event types emitted by the Manager.
const (
	EventDeviceConnected    EventType = "device.connected"
	EventDeviceDisconnected EventType = "device.disconnected"
	EventDevicesScanned     EventType = "devices.scanned"
	EventCommandSent        EventType = "command.sent"
	EventPairingStarted     EventType = "pairing.started"
	EventPairingFinished    EventType = "pairing.finished"
	EventAppLaunched        EventType = "app.launched"
)

// Event describes something that happened to a device session.
//
// Details never carries pairing credentials.
type Event struct {
	Type      EventType      `json:"type"`
	DeviceID  string         `json:"device_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Duration  time.Duration  `json:"-"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Observer receives session events.
//
// Observe is called synchronously on the goroutine performing the operation,
// so implementations must not block (queue the event instead).
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }

// errString returns err's message, or "" for nil.
func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
