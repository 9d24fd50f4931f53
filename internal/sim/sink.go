package sim

import "github.com/udisondev/coopsim/internal/model"

// EventSink receives what each tick produced. Record is called from the
// tick goroutine and must not block; sinks queue and write asynchronously.
type EventSink interface {
	Record(rec model.TickRecord)
}

// MultiSink fans a record out to several sinks in order.
type MultiSink []EventSink

// Record implements EventSink.
func (m MultiSink) Record(rec model.TickRecord) {
	for _, s := range m {
		if s != nil {
			s.Record(rec)
		}
	}
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(rec model.TickRecord)

// Record implements EventSink.
func (f SinkFunc) Record(rec model.TickRecord) { f(rec) }
