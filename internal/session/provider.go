package session

import (
	"context"
	"time"
)

// DiscoveryProvider performs a timed network scan for controllable devices.
type DiscoveryProvider interface {
	// Scan returns every device that answered within timeout.
	Scan(ctx context.Context, timeout time.Duration) ([]DeviceDescriptor, error)
}

// LinkProvider establishes control connections and pairing handshakes.
type LinkProvider interface {
	// Connect opens a control connection to the described device.
	Connect(ctx context.Context, desc DeviceDescriptor) (Handle, error)

	// Pair creates a provider-side pairing object for the chosen protocol.
	// The handshake does not start until Begin is called on the result.
	Pair(ctx context.Context, desc DeviceDescriptor, protocol ProtocolChoice) (PairingHandle, error)
}

// Handle is a live control connection to one device.
//
// A Handle is owned by exactly one Pool entry. Liveness can only be learned
// by probing; nothing pushes invalidation.
type Handle interface {
	// Probe performs a cheap read that requires a live session and returns
	// what the device reports about itself.
	Probe(ctx context.Context) (HardwareInfo, error)

	// Close releases the connection. It is idempotent and must not fail.
	Close()

	// Features reports the device's advertised capabilities.
	Features() FeatureSet

	// SendCommand performs one remote-control operation. Providers return an
	// error wrapping ErrOperationUnsupported when the device lacks it.
	SendCommand(ctx context.Context, op Op) error

	// Playing queries current playback metadata.
	Playing(ctx context.Context) (*PlaybackState, error)

	// App queries the app in the foreground. A nil AppInfo means none.
	App(ctx context.Context) (*AppInfo, error)

	// AppList returns installed apps.
	AppList(ctx context.Context) ([]AppInfo, error)

	// LaunchApp starts an app by bundle identifier.
	LaunchApp(ctx context.Context, appID string) error
}

// PairingHandle is the provider-side object for one pairing handshake.
type PairingHandle interface {
	// Begin starts the handshake. The device is expected to show a PIN.
	Begin(ctx context.Context) error

	// SubmitPIN hands the PIN shown on the device to the handshake.
	SubmitPIN(ctx context.Context, pin string) error

	// Finish completes the handshake. HasPaired reports the outcome.
	Finish(ctx context.Context) error

	// HasPaired reports whether Finish produced credentials.
	HasPaired() bool

	// Credentials returns the issued credentials after a successful Finish.
	Credentials() string

	// Close disposes of the provider-side pairing object. Idempotent.
	Close()
}
