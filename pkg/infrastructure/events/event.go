// Package events records the audit trail of a run as an ordered event stream.
package events

import (
	"time"
)

// Event is one entry of a run stream
type Event interface {
	Type() string
	RunID() string
	Data() interface{}
	Timestamp() time.Time
	// Seq is the 1-based position of the event in its run, set by the store
	Seq() int
}

type EventHandler interface {
	Handle(event Event) error
	CanHandle(eventType string) bool
}

// EventStore keeps one ordered stream per run. A stream opens with its first
// event and closes with run.completed or run.failed.
type EventStore interface {
	Append(event Event) error
	Run(runID string) ([]Event, error)
	Runs() []string
	Subscribe(handler EventHandler) error
	Unsubscribe(handler EventHandler) error
}

type BaseEvent struct {
	EventType string      `json:"type"`
	Run       string      `json:"run_id"`
	EventData interface{} `json:"data,omitempty"`
	EventTime time.Time   `json:"timestamp"`
	Sequence  int         `json:"seq"`
}

func (e BaseEvent) Type() string {
	return e.EventType
}

func (e BaseEvent) RunID() string {
	return e.Run
}

func (e BaseEvent) Data() interface{} {
	return e.EventData
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func (e BaseEvent) Seq() int {
	return e.Sequence
}

func newEvent(eventType, runID string, data interface{}) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Run:       runID,
		EventData: data,
		EventTime: time.Now().UTC(),
	}
}

// terminal reports whether eventType closes a run stream
func terminal(eventType string) bool {
	return eventType == RunCompletedEvent || eventType == RunFailedEvent
}

// HandlerFunc adapts a function to an EventHandler for the given event types.
// An empty type list handles everything.
type HandlerFunc struct {
	Types []string
	Fn    func(Event) error
}

func (h *HandlerFunc) Handle(event Event) error {
	return h.Fn(event)
}

func (h *HandlerFunc) CanHandle(eventType string) bool {
	if len(h.Types) == 0 {
		return true
	}
	for _, t := range h.Types {
		if t == eventType {
			return true
		}
	}
	return false
}
