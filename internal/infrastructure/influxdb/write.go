package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementCommand    = "remote_command"
	MeasurementConnection = "remote_connection"
	MeasurementScan       = "remote_scan"
	MeasurementSession    = "remote_session_event"
)

func resultTag(success bool) string {
	if success {
		return "ok"
	}
	return "failed"
}

// WriteCommand records one remote command and how long the device took.
//
// Example:
//
//	client.WriteCommand("AA:BB", "play_pause", true, 35*time.Millisecond, time.Now())
func (c *Client) WriteCommand(deviceID, command string, success bool, latency time.Duration, at time.Time) {
	c.WritePointWithTime(MeasurementCommand,
		map[string]string{
			"device_id": deviceID,
			"command":   command,
			"result":    resultTag(success),
		},
		map[string]any{
			"success":    success,
			"latency_ms": float64(latency.Microseconds()) / 1000,
		},
		at,
	)
}

// WriteConnection records a connect or disconnect.
// event is "connected" or "disconnected"; reason may be empty.
func (c *Client) WriteConnection(deviceID, event, reason string, success bool, latency time.Duration, at time.Time) {
	tags := map[string]string{
		"device_id": deviceID,
		"event":     event,
		"result":    resultTag(success),
	}
	if reason != "" {
		tags["reason"] = reason
	}
	c.WritePointWithTime(MeasurementConnection, tags,
		map[string]any{
			"success":    success,
			"latency_ms": float64(latency.Microseconds()) / 1000,
		},
		at,
	)
}

// WriteScan records a discovery scan and the number of devices found.
func (c *Client) WriteScan(trigger string, devices int, success bool, duration time.Duration, at time.Time) {
	c.WritePointWithTime(MeasurementScan,
		map[string]string{
			"trigger": trigger,
			"result":  resultTag(success),
		},
		map[string]any{
			"devices":     devices,
			"success":     success,
			"duration_ms": float64(duration.Microseconds()) / 1000,
		},
		at,
	)
}

// WritePoint writes a point timestamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
