package gameserver

// ClientConnectionState represents the state machine of a websocket client.
type ClientConnectionState int32

const (
	ClientStateConnected    ClientConnectionState = iota // upgraded, hello pending
	ClientStateInGame                                    // session attached
	ClientStateDisconnected                              // connection closed
)

func (s ClientConnectionState) String() string {
	switch s {
	case ClientStateConnected:
		return "CONNECTED"
	case ClientStateInGame:
		return "IN_GAME"
	case ClientStateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}
