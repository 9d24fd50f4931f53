package protocol

import (
	"fmt"
	"math"
	"time"

	"github.com/udisondev/coopsim/internal/data"
	"github.com/udisondev/coopsim/internal/game/interest"
	"github.com/udisondev/coopsim/internal/model"
)

// HelloMsg opens a session. ResumeToken is set when the client reconnects
// within the grace period.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Username        string `json:"username"`
	ResumeToken     string `json:"resume_token,omitempty"`
}

// IntentMsg is one input command.
type IntentMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Seq             uint32      `json:"seq"`
	Entity          uint32      `json:"entity"`
	Kind            string      `json:"kind"`
	Dir             *model.Vec2 `json:"dir,omitempty"`
	DT              float64     `json:"dt,omitempty"`
	Weapon          string      `json:"weapon,omitempty"`
	Target          uint32      `json:"target,omitempty"`
	Item            string      `json:"item,omitempty"`
	Action          string      `json:"action,omitempty"`
}

// Command converts the message into a simulation command. Only structural
// problems are errors here; game rules are checked by the engine.
func (m IntentMsg) Command(now time.Time) (model.Command, error) {
	kind, err := model.ParseIntentKind(m.Kind)
	if err != nil {
		return model.Command{}, err
	}
	if m.Seq == 0 {
		return model.Command{}, fmt.Errorf("intent: seq must be positive")
	}
	cmd := model.Command{
		EntityID:    model.EntityID(m.Entity),
		Sequence:    m.Seq,
		Kind:        kind,
		Target:      model.EntityID(m.Target),
		Item:        m.Item,
		SubmittedAt: now,
	}
	if m.Dir != nil {
		if math.IsNaN(m.Dir.X) || math.IsNaN(m.Dir.Y) {
			return model.Command{}, fmt.Errorf("intent: dir is not a number")
		}
		cmd.Direction = *m.Dir
	}
	switch kind {
	case model.IntentMove:
		if m.Dir == nil {
			return model.Command{}, fmt.Errorf("intent move: dir required")
		}
		cmd.DeltaTime = m.DT
	case model.IntentAttack:
		if m.Dir == nil {
			return model.Command{}, fmt.Errorf("intent attack: dir required")
		}
		if cmd.Weapon, err = model.ParseWeaponShape(m.Weapon); err != nil {
			return model.Command{}, err
		}
	case model.IntentInteract:
		if m.Target == 0 && m.Item == "" {
			return model.Command{}, fmt.Errorf("intent interact: target or item required")
		}
		if cmd.Action, err = model.ParseAction(m.Action); err != nil {
			return model.Command{}, err
		}
	}
	return cmd, nil
}

// WelcomeMsg answers a successful hello.
type WelcomeMsg struct {
	Type            string              `json:"type"`
	ProtocolVersion string              `json:"protocol_version"`
	Identity        string              `json:"identity"`
	Entity          uint32              `json:"entity"`
	ResumeToken     string              `json:"resume_token"`
	Resumed         bool                `json:"resumed"`
	TickRate        int                 `json:"tick_rate"`
	Catalog         []data.CatalogEntry `json:"catalog"`
}

// SnapshotMsg is the full set of rows a session is subscribed to. It is the
// first state message of every session and of every resumed session.
type SnapshotMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	Instance        string         `json:"instance"`
	Rows            []interest.Row `json:"rows"`
}

// FrameMsg carries one tick's acks, row changes and events.
type FrameMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Tick            uint64            `json:"tick"`
	Instance        string            `json:"instance"`
	Acks            []AckMsg          `json:"acks"`
	Changes         []interest.Change `json:"changes"`
	Events          []EventMsg        `json:"events"`
}

// AckMsg answers one intent. Position and LastSeq are absolute.
type AckMsg struct {
	Seq      uint32     `json:"seq"`
	Kind     string     `json:"kind"`
	Outcome  string     `json:"outcome"`
	Refusal  string     `json:"refusal,omitempty"`
	Position model.Vec2 `json:"position"`
	LastSeq  uint32     `json:"last_seq"`
}

// EventMsg is one combat event.
type EventMsg struct {
	Kind         string  `json:"kind"`
	Attacker     uint32  `json:"attacker"`
	AttackerKind string  `json:"attacker_kind"`
	Target       uint32  `json:"target"`
	TargetKind   string  `json:"target_kind"`
	Amount       float64 `json:"amount"`
	Health       float64 `json:"health"`
}

// ErrorMsg reports a protocol or session failure. Refusals of individual
// commands travel as acks, not errors.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	Seq             uint32 `json:"seq,omitempty"`
}

// NewError builds an error message.
func NewError(code, msg string, seq uint32) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		Code:            code,
		Message:         msg,
		Seq:             seq,
	}
}
