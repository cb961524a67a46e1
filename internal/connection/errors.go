package connection

import "errors"

// Diagnostics surfaced through LastError and the error subscribers.
// Collaborating UIs display these verbatim, so the wording is fixed.
var (
	// ErrTokenRequired is reported when Connect is called without an
	// auth token configured.
	ErrTokenRequired = errors.New("Authentication token required")

	// ErrServerDisconnect is reported when the server deliberately
	// closes the session. No reconnect follows.
	ErrServerDisconnect = errors.New("Server disconnected")

	// ErrRetriesExhausted is reported when the reconnect budget for an
	// outage runs out.
	ErrRetriesExhausted = errors.New("Failed to reconnect after maximum attempts")
)
