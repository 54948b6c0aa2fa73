package keyexchange

// State is the position of a Client in the handshake state machine. A Client only moves forward:
//
//	NotStarted -> Sealing -> AwaitingResponse -> Succeeded | Failed
type State int32

const (
	StateNotStarted State = iota
	StateSealing
	StateAwaitingResponse
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateSealing:
		return "Sealing"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal returns true once the handshake has finished, successfully or not.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
