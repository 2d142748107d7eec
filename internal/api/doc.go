// Package api implements the HTTP REST API and WebSocket server for the
// remote service.
//
// This package provides:
//   - REST endpoints for discovery, pairing, remote commands, now-playing,
//     apps and explicit connect/disconnect under /api/v1
//   - A WebSocket hub relaying session events to subscribed clients
//   - The audit trail listing and a JSON metrics summary
//   - The Prometheus scrape endpoint at /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Errors
//
// Session errors map to responses as follows:
//
//	session.ErrDeviceNotFound                         404 not_found
//	session.ErrUnknownCommand, ErrNoActiveSession,
//	session.ErrPairingIncomplete                      400 bad_request
//	session.ErrCommandUnsupported                     400 unsupported
//	session.ErrConnection, ErrScan, ErrCommandFailed,
//	session.ErrPairingStart, ErrPairingFinish         500 device_error
//
// The control API is unauthenticated; it is meant for a trusted LAN.
package api
