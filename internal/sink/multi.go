package sink

import (
	"github.com/ndrwrbgs/flowtrace/internal/event"
)

// Multi fans every event out to each sink, in order.
type Multi []event.Sink

func (m Multi) Emit(e event.Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Where forwards the events for which keep returns true.
func Where(next event.Sink, keep func(event.Event) bool) event.Sink {
	return event.SinkFunc(func(e event.Event) {
		if keep(e) {
			next.Emit(e)
		}
	})
}

// MinLevel forwards events at least as severe as min. Start and stop events
// rank as informational.
func MinLevel(next event.Sink, min event.Level) event.Sink {
	return Where(next, func(e event.Event) bool {
		return e.Level.Severe(min)
	})
}

// Discard drops every event.
var Discard event.Sink = event.SinkFunc(func(event.Event) {})
