package mqtt

import "fmt"

// Topic prefixes. Bridge topics use the flat scheme
// graylogic/{category}/{protocol}/{id}.
const (
	TopicPrefixBridge = "graylogic"
	TopicPrefixRemote = "graylogic/remote"
	TopicPrefixSystem = "graylogic/system"
)

// Topics builds the MQTT topics used by the remote service.
//
//	topics := mqtt.Topics{}
//	topics.BridgeRequest("atv", "req-1") // graylogic/request/atv/req-1
type Topics struct{}

// BridgeRequest returns the topic for a request to a bridge.
//
// Example: graylogic/request/atv/req-abc123
func (Topics) BridgeRequest(protocol, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefixBridge, protocol, requestID)
}

// BridgeResponse returns the topic a bridge answers a request on.
//
// Example: graylogic/response/atv/req-abc123
func (Topics) BridgeResponse(protocol, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefixBridge, protocol, requestID)
}

// BridgeResponses returns the wildcard matching every response from a bridge.
//
// Pattern: graylogic/response/atv/+
func (Topics) BridgeResponses(protocol string) string {
	return fmt.Sprintf("%s/response/%s/+", TopicPrefixBridge, protocol)
}

// BridgeHealth returns the topic a bridge reports its health on.
//
// Example: graylogic/health/atv
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, protocol)
}

// SessionEvent returns the topic session events are published on.
//
// Example: graylogic/remote/event/device.connected
func (Topics) SessionEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixRemote, eventType)
}

// AllSessionEvents matches every session event.
//
// Pattern: graylogic/remote/event/+
func (Topics) AllSessionEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixRemote)
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
