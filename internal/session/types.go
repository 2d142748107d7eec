package session

import (
	"strings"
	"time"
)

// DefaultScanTimeout is how long a discovery scan runs when no timeout is configured.
const DefaultScanTimeout = 5 * time.Second

// ProtocolChoice selects which pairing protocol to use with a device.
type ProtocolChoice string

const (
	// ProtocolCompanion is the capability-oriented protocol. It grants full
	// navigation and remote control and is the default.
	ProtocolCompanion ProtocolChoice = "companion"

	// ProtocolAirPlay is the media-only protocol.
	ProtocolAirPlay ProtocolChoice = "airplay"
)

// ParseProtocol converts a caller-supplied protocol name to a ProtocolChoice.
// Empty input and "companion" (any case) select Companion; anything else
// selects AirPlay.
func ParseProtocol(s string) ProtocolChoice {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(ProtocolCompanion)) {
		return ProtocolCompanion
	}
	return ProtocolAirPlay
}

// DeviceDescriptor describes a device found by a discovery scan.
//
// Descriptors are values: a later scan replaces the whole descriptor for an
// ID rather than updating fields in place.
type DeviceDescriptor struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Address   string           `json:"address"`
	Model     string           `json:"model,omitempty"`
	OSVersion string           `json:"os_version,omitempty"`
	Services  []ProtocolChoice `json:"services,omitempty"`
}

// HardwareInfo is what a live connection reports about the device.
type HardwareInfo struct {
	Model     string `json:"model,omitempty"`
	OSVersion string `json:"os_version,omitempty"`
}

// Feature names a capability a device may or may not support.
type Feature string

// Features used by the command catalog and the app/now-playing operations.
const (
	FeatureUp           Feature = "up"
	FeatureDown         Feature = "down"
	FeatureLeft         Feature = "left"
	FeatureRight        Feature = "right"
	FeatureSelect       Feature = "select"
	FeatureMenu         Feature = "menu"
	FeatureHome         Feature = "home"
	FeatureTopMenu      Feature = "top_menu"
	FeaturePlay         Feature = "play"
	FeaturePause        Feature = "pause"
	FeaturePlayPause    Feature = "play_pause"
	FeatureStop         Feature = "stop"
	FeatureNext         Feature = "next"
	FeaturePrevious     Feature = "previous"
	FeatureSkipForward  Feature = "skip_forward"
	FeatureSkipBackward Feature = "skip_backward"
	FeatureVolumeUp     Feature = "volume_up"
	FeatureVolumeDown   Feature = "volume_down"

	FeatureApp       Feature = "app"
	FeatureAppList   Feature = "app_list"
	FeatureLaunchApp Feature = "launch_app"
)

// FeatureState is how a device reports support for a Feature.
type FeatureState string

const (
	FeatureUnknown     FeatureState = "unknown"
	FeatureUnsupported FeatureState = "unsupported"
	FeatureUnavailable FeatureState = "unavailable"
	FeatureAvailable   FeatureState = "available"
)

// FeatureSet maps features to their reported state.
// Features missing from the map are FeatureUnknown.
type FeatureSet map[Feature]FeatureState

// State returns the reported state of f.
func (fs FeatureSet) State(f Feature) FeatureState {
	if st, ok := fs[f]; ok {
		return st
	}
	return FeatureUnknown
}

// IsAvailable reports whether f is currently usable.
func (fs FeatureSet) IsAvailable(f Feature) bool {
	return fs.State(f) == FeatureAvailable
}

// PlaybackState is the provider's answer to a "what is playing" query.
// Empty strings and nil pointers mean the device did not report the field.
type PlaybackState struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	MediaType   string
	DeviceState string
	Position    *int
	TotalTime   *int
	Repeat      string
	Shuffle     string
}

// AppInfo identifies an installed or running app.
type AppInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NowPlayingSnapshot is a point-in-time read of what a device is doing.
// Every field except DeviceID and DeviceState is optional.
type NowPlayingSnapshot struct {
	DeviceID    string  `json:"device_id"`
	Title       *string `json:"title"`
	Artist      *string `json:"artist"`
	Album       *string `json:"album"`
	Genre       *string `json:"genre"`
	MediaType   *string `json:"media_type"`
	DeviceState string  `json:"device_state"`
	Position    *int    `json:"position"`
	TotalTime   *int    `json:"total_time"`
	Repeat      *string `json:"repeat"`
	Shuffle     *string `json:"shuffle"`
	AppName     *string `json:"app_name"`
	AppID       *string `json:"app_id"`
}

// DeviceView is a registry entry annotated with connection status.
type DeviceView struct {
	DeviceDescriptor
	IsConnected bool `json:"is_connected"`
}

// optional returns nil for the empty string so absent fields encode as null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
