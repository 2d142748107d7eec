// Package influxdb writes session telemetry to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Points are written
// through the non-blocking batched write API:
//
//   - remote_command: per-command latency and result
//   - remote_connection: connects and disconnects, with reason
//   - remote_scan: discovery scans and device counts
//   - remote_session_event: pairing and app launches
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	manager.AddObserver(influxdb.NewTelemetry(client))
//
// Connection and health check errors are returned directly; write errors
// are delivered to the SetOnError callback.
package influxdb
