package session

// EventKind identifies the payload carried by an Event.
type EventKind string

const (
	EventInfo     EventKind = "info"
	EventProgress EventKind = "progress"
	EventData     EventKind = "data"
	EventStage    EventKind = "stage"
	EventEnd      EventKind = "end"
	EventError    EventKind = "error"
)

// Terminal reports whether k ends the session.
func (k EventKind) Terminal() bool {
	return k == EventEnd || k == EventError
}

// Event is a structured notification derived from 7-Zip output.
type Event struct {
	Kind     EventKind    `json:"kind"`
	Key      string       `json:"key,omitempty"`
	Value    string       `json:"value,omitempty"`
	Stage    Stage        `json:"stage,omitempty"`
	Progress *Progress    `json:"progress,omitempty"`
	Entry    *Entry       `json:"entry,omitempty"`
	Err      *ErrorRecord `json:"-"`
}

// Sink receives events in the order they are produced.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(evt Event) {
	if f != nil {
		f(evt)
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(nil)

// Collector buffers events in memory.
type Collector struct {
	Events []Event
}

func (c *Collector) Emit(evt Event) {
	c.Events = append(c.Events, evt)
}

// Kinds returns the kinds of the collected events, in order.
func (c *Collector) Kinds() []EventKind {
	out := make([]EventKind, 0, len(c.Events))
	for _, evt := range c.Events {
		out = append(out, evt.Kind)
	}
	return out
}

// Last returns the most recent event of kind k.
func (c *Collector) Last(k EventKind) (Event, bool) {
	for i := len(c.Events) - 1; i >= 0; i-- {
		if c.Events[i].Kind == k {
			return c.Events[i], true
		}
	}
	return Event{}, false
}
