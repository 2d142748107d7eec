// Package session implements the device session manager for Gray Logic Remote.
//
// It owns everything stateful about talking to networked streaming-media
// devices (Apple TV and similar):
//
//   - Registry: in-memory cache of the latest discovery scan, keyed by device ID
//   - Pool: live control connections, one per device, with probe-before-reuse
//   - Pairing: per-device PIN pairing handshake state machine
//   - Dispatcher: remote commands validated against a static catalog and the
//     device's advertised features
//   - NowPlaying: playback and running-app snapshot tolerant of partial failure
//   - Apps: app listing and launching gated on device features
//
// The Manager type composes these and is the single surface consumed by the
// HTTP API. It is constructed once in main and passed by reference; nothing in
// this package is a process-wide global.
//
// # Providers
//
// Network scanning and the on-wire device protocols are not implemented here.
// They are supplied through DiscoveryProvider and LinkProvider (see
// provider.go). The production implementation lives in internal/bridges/atv
// and talks to a protocol bridge over MQTT.
//
// # Concurrency
//
// Pool serialises connection attempts per device ID. Connecting to one device
// never blocks operations on another. Pairing sessions are guarded by their
// own mutex; a concurrent start/finish race on the same device resolves as
// last writer wins.
//
// # Errors
//
// Provider failures are wrapped into the sentinels in errors.go and can be
// checked with errors.Is. Nothing in this package retries automatically.
package session
