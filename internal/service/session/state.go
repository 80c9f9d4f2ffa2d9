package session

import "errors"

var (
	ErrStreamFailure = errors.New("model stream failed")
	ErrDisconnected  = errors.New("caller disconnected")
	ErrPersistence   = errors.New("message persistence failed")
	ErrFatal         = errors.New("fatal session error")
)

type State int

const (
	StateInit State = iota
	StateStreaming
	StateFinalizing
	StateAborting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateAborting:
		return "aborting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Outcome describes how a session ended. Path is Finalizing for a
// committed response and Aborting otherwise.
type Outcome struct {
	Path      State
	MessageId string
	Text      string
	Err       error
}

func (o Outcome) Committed() bool {
	return o.Path == StateFinalizing && o.Err == nil
}
