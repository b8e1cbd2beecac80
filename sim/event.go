// Package sim provides the discrete-event simulation kernel that the cache
// controller and CPU timing model are built against: virtual time, the event
// queue, the serial engine, ports, buffers, and hook points. These are the
// "external collaborators" that spec.md treats as interfaces the core
// consumes; this package gives them a small, concrete implementation so the
// core can run and be tested standalone.
package sim

// VTimeInSec is simulated time, measured in fractional seconds since the
// simulation started.
type VTimeInSec float64

// An Event is something scheduled to happen at a specific tick, dispatched to
// a Handler when the engine reaches that tick.
type Event interface {
	Time() VTimeInSec
	Handler() Handler
}

// A Handler processes events. Akita-style components implement Handler by
// switching on the dynamic type of the event.
type Handler interface {
	Handle(e Event) error
}

// EventBase is embedded by concrete event types to provide the Event
// interface's bookkeeping fields.
type EventBase struct {
	EventTime    VTimeInSec
	EventHandler Handler
}

// NewEventBase creates an EventBase for tick t handled by h.
func NewEventBase(t VTimeInSec, h Handler) EventBase {
	return EventBase{EventTime: t, EventHandler: h}
}

// Time returns the tick the event is scheduled for.
func (e EventBase) Time() VTimeInSec { return e.EventTime }

// Handler returns the component that handles the event.
func (e EventBase) Handler() Handler { return e.EventHandler }
