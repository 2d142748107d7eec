package session

import "errors"

// Domain errors for the session package.
//
// Every error returned from a Manager operation wraps exactly one of these,
// with the provider's original error attached as context:
//
//	if errors.Is(err, session.ErrDeviceNotFound) {
//	    // unknown device, even after a fresh scan
//	}
var (
	// ErrDeviceNotFound is returned when a device ID is not in the registry
	// (after a fresh scan where the operation triggers one).
	ErrDeviceNotFound = errors.New("session: device not found")

	// ErrConnection is returned when a control connection cannot be established.
	ErrConnection = errors.New("session: connection failed")

	// ErrScan is returned when the discovery provider fails.
	ErrScan = errors.New("session: scan failed")

	// ErrUnknownCommand is returned when a command name is not in the catalog.
	ErrUnknownCommand = errors.New("session: unknown command")

	// ErrCommandUnsupported is returned when the device does not expose the
	// operation behind a command or app action.
	ErrCommandUnsupported = errors.New("session: command not supported by device")

	// ErrCommandFailed is returned when the device or link rejects a command.
	ErrCommandFailed = errors.New("session: command failed")

	// ErrNoActiveSession is returned when finishing a pairing that was never started.
	ErrNoActiveSession = errors.New("session: no active pairing session")

	// ErrPairingStart is returned when the provider rejects a pairing request.
	ErrPairingStart = errors.New("session: pairing start failed")

	// ErrPairingFinish is returned when the provider fails while completing pairing.
	ErrPairingFinish = errors.New("session: pairing finish failed")

	// ErrPairingIncomplete is returned when the handshake finished without
	// the device accepting the PIN. The session is discarded.
	ErrPairingIncomplete = errors.New("session: pairing not completed")

	// ErrOperationUnsupported is returned by link providers when a handle does
	// not implement an operation. The dispatcher maps it to ErrCommandUnsupported.
	ErrOperationUnsupported = errors.New("session: operation not supported")
)
