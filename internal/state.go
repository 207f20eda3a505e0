package internal

// State of a scheduler. A scheduler starts in StateNone, Setup moves it to
// StateStopped and playing the root element moves it to StateRunning.
// StateError sticks until Reset.
type State int

const (
	StateNone State = iota
	StateStopped
	StateError
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

type Transition int

const (
	NullToReady Transition = iota
	ReadyToPaused
	PausedToPlaying
	PlayingToPaused
	PausedToReady
	ReadyToNull
)

func (t Transition) String() string {
	switch t {
	case NullToReady:
		return "null->ready"
	case ReadyToPaused:
		return "ready->paused"
	case PausedToPlaying:
		return "paused->playing"
	case PlayingToPaused:
		return "playing->paused"
	case PausedToReady:
		return "paused->ready"
	case ReadyToNull:
		return "ready->null"
	default:
		return "unknown"
	}
}
