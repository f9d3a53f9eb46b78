// Package stream carries the typed events of one chat reply from the
// pipeline to the transport.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Event names.
const (
	EventMeta    = "meta"
	EventMessage = "message"
	EventDone    = "done"
	EventError   = "error"
)

// Event is one frame of a reply.
type Event struct {
	Name string
	Data any
}

// State of an Emitter.
type State int

const (
	AwaitingMeta State = iota
	StreamingMessage
	Done
	Errored
)

func (s State) String() string {
	switch s {
	case AwaitingMeta:
		return "awaiting_meta"
	case StreamingMessage:
		return "streaming_message"
	case Done:
		return "done"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrInvalidTransition is returned for events that do not fit the
// meta, message*, done|error sequence.
var ErrInvalidTransition = errors.New("invalid stream transition")

// MessageData is the payload of a message event.
type MessageData struct {
	Text string `json:"text"`
}

// DoneData is the payload of a done event.
type DoneData struct {
	OK bool `json:"ok"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Error string `json:"error"`
	Text  string `json:"text,omitempty"`
}

// Emitter enforces AwaitingMeta -> StreamingMessage -> Done | Errored and
// pushes events into a buffered channel. The channel is closed after the
// terminal event or on Close.
type Emitter struct {
	ctx    context.Context
	mu     sync.Mutex
	state  State
	sent   bool
	closed bool
	events chan Event
}

// NewEmitter returns an emitter whose sends give up when ctx is done.
func NewEmitter(ctx context.Context, buffer int) *Emitter {
	if buffer < 1 {
		buffer = 1
	}
	return &Emitter{ctx: ctx, events: make(chan Event, buffer)}
}

// Events is the receive side for the transport.
func (e *Emitter) Events() <-chan Event { return e.events }

// State returns the current state.
func (e *Emitter) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Meta emits the meta event. It must be first and happens exactly once.
func (e *Emitter) Meta(meta any) error {
	return e.transition(Event{Name: EventMeta, Data: meta}, func(s State) (State, bool) {
		return StreamingMessage, s == AwaitingMeta
	})
}

// Message emits response text. It may be called more than once; the last
// call carries the full text.
func (e *Emitter) Message(text string) error {
	err := e.transition(Event{Name: EventMessage, Data: MessageData{Text: text}}, func(s State) (State, bool) {
		return StreamingMessage, s == StreamingMessage
	})
	if err == nil {
		e.mu.Lock()
		e.sent = true
		e.mu.Unlock()
	}
	return err
}

// Done terminates a successful reply. At least one message must precede it.
func (e *Emitter) Done() error {
	return e.transition(Event{Name: EventDone, Data: DoneData{OK: true}}, func(s State) (State, bool) {
		return Done, s == StreamingMessage && e.sent
	})
}

// Fail terminates the reply with an error event in place of message and done.
func (e *Emitter) Fail(data ErrorData) error {
	return e.transition(Event{Name: EventError, Data: data}, func(s State) (State, bool) {
		return Errored, s == AwaitingMeta || s == StreamingMessage
	})
}

// Close ends the stream without a terminal event, e.g. when the client is gone.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

func (e *Emitter) closeLocked() {
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}

func (e *Emitter) transition(ev Event, next func(State) (State, bool)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	to, ok := next(e.state)
	if !ok || e.closed {
		return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev.Name, e.state)
	}
	if err := e.ctx.Err(); err != nil {
		return err
	}
	select {
	case e.events <- ev:
		e.state = to
		if to == Done || to == Errored {
			e.closeLocked()
		}
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}
