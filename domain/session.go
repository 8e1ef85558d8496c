package domain

// SessionState tracks the lifecycle of one connection.
// Transitions: Connecting -> Joined -> (Active | Closing) -> Closed.
// Closed is terminal; disconnect logic must tolerate being invoked on an
// already Closed session.
type SessionState int32

const (
	SessionConnecting SessionState = iota
	SessionJoined
	SessionActive
	SessionClosing
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionJoined:
		return "joined"
	case SessionActive:
		return "active"
	case SessionClosing:
		return "closing"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}
