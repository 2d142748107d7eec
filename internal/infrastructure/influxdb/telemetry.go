package influxdb

import (
	"github.com/nerrad567/gray-logic-remote/internal/session"
)

// Telemetry is a session.Observer that turns session events into points.
// Writes are buffered by the InfluxDB write API, so Observe does not block
// on the network.
type Telemetry struct {
	client *Client
}

// NewTelemetry returns an observer writing to client.
func NewTelemetry(client *Client) *Telemetry {
	return &Telemetry{client: client}
}

// Observe implements session.Observer.
func (t *Telemetry) Observe(e session.Event) {
	switch e.Type {
	case session.EventCommandSent:
		t.client.WriteCommand(e.DeviceID, detail(e, "command"), e.Success, e.Duration, e.Timestamp)
	case session.EventDeviceConnected:
		t.client.WriteConnection(e.DeviceID, "connected", "", e.Success, e.Duration, e.Timestamp)
	case session.EventDeviceDisconnected:
		t.client.WriteConnection(e.DeviceID, "disconnected", detail(e, "reason"), e.Success, e.Duration, e.Timestamp)
	case session.EventDevicesScanned:
		count, _ := e.Details["count"].(int)
		t.client.WriteScan(detail(e, "trigger"), count, e.Success, e.Duration, e.Timestamp)
	default:
		t.client.WritePointWithTime(MeasurementSession,
			map[string]string{
				"event":     string(e.Type),
				"device_id": e.DeviceID,
				"result":    resultTag(e.Success),
			},
			map[string]any{
				"success":     e.Success,
				"duration_ms": float64(e.Duration.Microseconds()) / 1000,
			},
			e.Timestamp,
		)
	}
}

func detail(e session.Event, key string) string {
	s, _ := e.Details[key].(string)
	return s
}
