// Package protocol defines the JSON messages exchanged over the websocket
// transport. Every message carries a type and the protocol version.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the wire protocol version. Clients with a different version
// are refused at the handshake.
const Version = "1.0"

const (
	TypeHello    = "hello"
	TypeIntent   = "intent"
	TypeWelcome  = "welcome"
	TypeSnapshot = "snapshot"
	TypeFrame    = "frame"
	TypeError    = "error"
)

// BaseMessage holds the fields every message has.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// DecodeBase reads the envelope of a raw message without decoding the body.
func DecodeBase(b []byte) (BaseMessage, error) {
	var base BaseMessage
	if err := json.Unmarshal(b, &base); err != nil {
		return BaseMessage{}, fmt.Errorf("decoding message envelope: %w", err)
	}
	if base.Type == "" {
		return BaseMessage{}, fmt.Errorf("decoding message envelope: missing type")
	}
	return base, nil
}
