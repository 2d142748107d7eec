package atv

import "errors"

// Domain errors for the media bridge client.
var (
	// ErrNotConnected is returned when the MQTT client is not connected to the broker.
	ErrNotConnected = errors.New("atv: not connected to broker")

	// ErrNotStarted is returned when a request is made before Start.
	ErrNotStarted = errors.New("atv: client not started")

	// ErrTimeout is returned when the bridge does not answer in time.
	ErrTimeout = errors.New("atv: request timed out")

	// ErrBridge is returned when the bridge answers with a failure.
	ErrBridge = errors.New("atv: bridge error")

	// ErrInvalidResponse is returned when a response payload cannot be decoded.
	ErrInvalidResponse = errors.New("atv: invalid response")

	// ErrBridgeUnavailable is returned by HealthCheck when the bridge has not
	// reported itself healthy or degraded.
	ErrBridgeUnavailable = errors.New("atv: bridge unavailable")

	// ErrHandleClosed is returned when a closed handle is used.
	ErrHandleClosed = errors.New("atv: connection closed")
)
