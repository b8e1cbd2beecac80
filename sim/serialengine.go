package sim

import "log"

// SerialEngine is an Engine that runs every event one after another on a
// single goroutine, in tick order with scheduling order as the tiebreak —
// the model spec.md §5 requires ("every handler's view of global state is a
// snapshot").
type SerialEngine struct {
	HookableBase

	time  VTimeInSec
	queue EventQueue

	descheduled map[Event]bool

	endHandlers []SimulationEndHandler
}

// NewSerialEngine creates a SerialEngine with an empty event queue.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		queue:       NewEventQueue(),
		descheduled: make(map[Event]bool),
	}
}

// Schedule enqueues evt. Scheduling an event in the past is a programmer
// error.
func (e *SerialEngine) Schedule(evt Event) {
	if evt.Time() < e.time {
		log.Panicf(
			"scheduling an event at %.10f earlier than current time %.10f",
			evt.Time(), e.time,
		)
	}
	e.queue.Push(evt)
}

// Deschedule marks evt so that it is skipped if still pending when popped.
// It is a no-op if evt has already been dispatched.
func (e *SerialEngine) Deschedule(evt Event) {
	e.descheduled[evt] = true
}

// CurrentTime returns the tick of the event currently (or most recently)
// being handled.
func (e *SerialEngine) CurrentTime() VTimeInSec { return e.time }

// Run dispatches every scheduled event, in tick order, until the queue is
// empty.
func (e *SerialEngine) Run() error {
	for e.queue.Len() > 0 {
		evt := e.queue.Pop()

		if e.descheduled[evt] {
			delete(e.descheduled, evt)
			continue
		}

		if evt.Time() < e.time {
			log.Panicf("cannot run event in the past, evt @ %.10f, now %.10f",
				evt.Time(), e.time)
		}
		e.time = evt.Time()

		ctx := HookCtx{Domain: e, Pos: HookPosBeforeEvent, Item: evt}
		e.InvokeHook(ctx)

		if err := evt.Handler().Handle(evt); err != nil {
			return err
		}

		ctx.Pos = HookPosAfterEvent
		e.InvokeHook(ctx)
	}

	return nil
}

// RegisterSimulationEndHandler adds h to the list invoked by Finished.
func (e *SerialEngine) RegisterSimulationEndHandler(h SimulationEndHandler) {
	e.endHandlers = append(e.endHandlers, h)
}

// Finished invokes every registered SimulationEndHandler with the engine's
// final tick.
func (e *SerialEngine) Finished() {
	for _, h := range e.endHandlers {
		h.Handle(e.time)
	}
}
