// Package atv talks to the media-device protocol bridge over MQTT.
//
// Gray Logic Remote does not speak any streaming-device wire protocol itself.
// A separate bridge process owns discovery, device sessions and pairing, and
// answers request messages published by Core:
//
//	┌─────────────────┐   MQTT    ┌─────────────────┐
//	│ Gray Logic      │──request─►│  Media bridge   │◄────► Streaming devices
//	│ Remote (Core)   │◄response──│                 │
//	└─────────────────┘           └─────────────────┘
//
// # Topics
//
//	graylogic/request/atv/{request_id}    Core → bridge
//	graylogic/response/atv/{request_id}   bridge → Core
//	graylogic/health/atv                  bridge health (retained)
//
// Every request carries a unique ID and is answered at most once on the
// matching response topic. A request with no answer within the configured
// timeout fails with ErrTimeout.
//
// # Providers
//
// Scanner implements session.DiscoveryProvider and Linker implements
// session.LinkProvider, so the session manager can run on top of the bridge
// without knowing about MQTT.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package atv
