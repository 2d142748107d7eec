package process

import "errors"

var (
	// ErrInvalidOptions is returned by Start when Options cannot describe a process.
	ErrInvalidOptions = errors.New("process: invalid options")

	// ErrAlreadyRunning is returned by Start on a supervisor that is not stopped.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrStartFailed wraps exec failures such as a missing binary.
	ErrStartFailed = errors.New("process: start failed")

	// ErrExited is recorded when the process exits with status 0 without being asked to.
	ErrExited = errors.New("process: exited unexpectedly")

	// ErrUnhealthy is recorded when repeated health check failures killed the process.
	ErrUnhealthy = errors.New("process: unhealthy")
)
