package bridge

import "errors"

// Sentinel errors for the bridge package.
var (
	// ErrNotRunning is returned when sending a request on a Connection whose
	// subprocess is not running.
	ErrNotRunning = errors.New("bridge: service not running")

	// ErrTimeout is returned when a JSON-RPC request receives no correlated
	// response within the request timeout.
	ErrTimeout = errors.New("bridge: request timed out")

	// ErrConnectionClosed resolves any request still pending when a
	// Connection stops, so no caller blocks on an abandoned request.
	ErrConnectionClosed = errors.New("bridge: connection closed")

	// ErrInvalidConfig is returned when a ServiceConfig is missing required
	// fields or duplicates another service's name.
	ErrInvalidConfig = errors.New("bridge: invalid service config")
)
