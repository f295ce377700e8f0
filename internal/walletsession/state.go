package walletsession

// State is the connection lifecycle position of the session manager.
type State int

const (
	StateDisconnected State = iota
	StateReconnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateReconnecting:
		return "reconnecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type event int

const (
	eventConnected event = iota
	eventDisconnected
	eventForeground
	eventReconnectSucceeded
	eventReconnectFailed
)

// transitions is the full lifecycle table. The foreground signal is just one
// external event fed into it; an event absent from the current state's row is
// ignored.
var transitions = map[State]map[event]State{
	StateDisconnected: {
		eventConnected:  StateConnected,
		eventForeground: StateReconnecting,
	},
	StateReconnecting: {
		eventReconnectSucceeded: StateConnected,
		eventReconnectFailed:    StateDisconnected,
		eventDisconnected:       StateDisconnected,
	},
	StateConnected: {
		eventDisconnected: StateDisconnected,
	},
}

func (s State) next(ev event) (State, bool) {
	row, ok := transitions[s]
	if !ok {
		return s, false
	}
	to, ok := row[ev]
	return to, ok
}
