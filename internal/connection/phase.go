package connection

// Phase is the lifecycle state of a Manager. A manager starts Idle,
// moves through Connecting to Connected, drops to Disconnected while a
// reconnect is pending, and parks in Failed when no further automatic
// recovery will happen.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseDisconnected
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseDisconnected:
		return "disconnected"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}
