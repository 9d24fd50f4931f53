package protocol

import (
	"github.com/udisondev/coopsim/internal/game/interest"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/sim"
)

// Encode turns an engine frame into the messages written to the client:
// a snapshot first when the frame carries one, then a frame message if
// anything else is left.
func Encode(f sim.Frame) []any {
	var out []any
	if f.Snapshot != nil {
		out = append(out, SnapshotMsg{
			Type:            TypeSnapshot,
			ProtocolVersion: Version,
			Tick:            f.Tick,
			Instance:        f.Instance,
			Rows:            f.Snapshot,
		})
	}
	if len(f.Acks) == 0 && len(f.Changes) == 0 && len(f.Events) == 0 {
		return out
	}
	msg := FrameMsg{
		Type:            TypeFrame,
		ProtocolVersion: Version,
		Tick:            f.Tick,
		Instance:        f.Instance,
		Acks:            make([]AckMsg, 0, len(f.Acks)),
		Changes:         f.Changes,
		Events:          make([]EventMsg, 0, len(f.Events)),
	}
	if msg.Changes == nil {
		msg.Changes = []interest.Change{}
	}
	for _, a := range f.Acks {
		msg.Acks = append(msg.Acks, ackMsg(a))
	}
	for _, ev := range f.Events {
		msg.Events = append(msg.Events, eventMsg(ev))
	}
	return append(out, msg)
}

func ackMsg(a sim.Ack) AckMsg {
	m := AckMsg{
		Seq:      a.Sequence,
		Kind:     a.Kind.String(),
		Outcome:  a.Outcome.String(),
		Position: a.Position,
		LastSeq:  a.LastSequence,
	}
	if a.Refusal != model.RefusalNone {
		m.Refusal = a.Refusal.String()
	}
	return m
}

func eventMsg(ev model.CombatEvent) EventMsg {
	return EventMsg{
		Kind:         ev.Kind.String(),
		Attacker:     uint32(ev.Attacker),
		AttackerKind: ev.AttackerKind.String(),
		Target:       uint32(ev.Target),
		TargetKind:   ev.TargetKind.String(),
		Amount:       ev.Amount,
		Health:       ev.Health,
	}
}
