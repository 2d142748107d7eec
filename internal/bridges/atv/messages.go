package atv

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bridge identifier used in topics and health messages.
const bridgeName = "atv"

// Request actions understood by the bridge.
const (
	ActionScan       = "scan"
	ActionConnect    = "connect"
	ActionProbe      = "probe"
	ActionClose      = "close"
	ActionCommand    = "command"
	ActionPlaying    = "playing"
	ActionApp        = "app"
	ActionAppList    = "app_list"
	ActionLaunchApp  = "launch_app"
	ActionPairBegin  = "pair_begin"
	ActionPairPIN    = "pair_pin"
	ActionPairFinish = "pair_finish"
	ActionPairClose  = "pair_close"
)

// Error codes reported by the bridge.
const (
	ErrCodeUnsupported       = "UNSUPPORTED"
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeUnknownConnection = "UNKNOWN_CONNECTION"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// RequestMessage is sent from Core to the bridge.
// Topic: graylogic/request/atv/{request_id}
type RequestMessage struct {
	// RequestID uniquely identifies this request for correlation.
	RequestID string `json:"request_id"`

	// Timestamp is when the request was issued (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Action is the requested operation (see the Action constants).
	Action string `json:"action"`

	// DeviceID is the target device, empty for scans.
	DeviceID string `json:"device_id,omitempty"`

	// Parameters contains action-specific values.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResponseMessage is sent from the bridge to Core.
// Topic: graylogic/response/atv/{request_id}
type ResponseMessage struct {
	RequestID string          `json:"request_id"`
	Timestamp time.Time       `json:"timestamp"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ResponseError  `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Bridge health states reported in HealthMessage.Status.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
	HealthOffline   = "offline"
)

// HealthMessage is published (retained) by the bridge.
// Topic: graylogic/health/atv
type HealthMessage struct {
	Bridge        string    `json:"bridge"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	Version       string    `json:"version,omitempty"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Reason        string    `json:"reason,omitempty"`
}

// Response payloads.

type deviceData struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Model     string   `json:"model,omitempty"`
	OSVersion string   `json:"os_version,omitempty"`
	Services  []string `json:"services,omitempty"`
}

type scanData struct {
	Devices []deviceData `json:"devices"`
}

type connectData struct {
	ConnectionID string            `json:"connection_id"`
	Features     map[string]string `json:"features"`
}

type probeData struct {
	Model     string `json:"model"`
	OSVersion string `json:"os_version"`
}

type playingData struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	Genre       string `json:"genre"`
	MediaType   string `json:"media_type"`
	DeviceState string `json:"device_state"`
	Position    *int   `json:"position"`
	TotalTime   *int   `json:"total_time"`
	Repeat      string `json:"repeat"`
	Shuffle     string `json:"shuffle"`
}

type appData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type appResponse struct {
	App *appData `json:"app"`
}

type appListData struct {
	Apps []appData `json:"apps"`
}

type pairFinishData struct {
	Paired      bool   `json:"paired"`
	Credentials string `json:"credentials,omitempty"`
}

// Topic helpers

// TopicPrefix is the base topic for all Gray Logic messages.
const TopicPrefix = "graylogic"

// RequestTopic returns the topic for a request.
// Example: graylogic/request/atv/3f1c...
func RequestTopic(requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, bridgeName, requestID)
}

// ResponseTopic returns the topic for a response.
// Example: graylogic/response/atv/3f1c...
func ResponseTopic(requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, bridgeName, requestID)
}

// ResponseSubscribeTopic returns the subscription pattern for all responses.
// Example: graylogic/response/atv/+
func ResponseSubscribeTopic() string {
	return fmt.Sprintf("%s/response/%s/+", TopicPrefix, bridgeName)
}

// HealthTopic returns the bridge health topic.
// Example: graylogic/health/atv
func HealthTopic() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, bridgeName)
}
