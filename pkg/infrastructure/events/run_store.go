package events

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

var (
	// ErrUnknownRun is returned when a run has no recorded events
	ErrUnknownRun = errors.New("unknown run")
	// ErrRunClosed is returned when appending after run.completed or run.failed
	ErrRunClosed = errors.New("run stream is closed")
)

// runStream is the ordered trail of one run
type runStream struct {
	events []Event
	closed bool
}

// RunStore keeps the audit trail of each run in memory. Handlers are notified
// synchronously, in append order, after the event is stored.
type RunStore struct {
	mu       sync.RWMutex
	runs     map[string]*runStream
	order    []string
	handlers []EventHandler
	logger   logr.Logger
}

// Verify interface compliance
var _ EventStore = (*RunStore)(nil)

func NewRunStore(logger logr.Logger) *RunStore {
	return &RunStore{
		runs:   make(map[string]*runStream),
		logger: logger.WithName("events"),
	}
}

// Append stamps event with its position in the run and stores it
func (s *RunStore) Append(event Event) error {
	runID := event.RunID()
	if runID == "" {
		return fmt.Errorf("event %s has no run id", event.Type())
	}

	s.mu.Lock()
	stream, ok := s.runs[runID]
	if !ok {
		stream = &runStream{}
		s.runs[runID] = stream
		s.order = append(s.order, runID)
	}
	if stream.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s after run %s ended", ErrRunClosed, event.Type(), runID)
	}

	stamped := BaseEvent{
		EventType: event.Type(),
		Run:       runID,
		EventData: event.Data(),
		EventTime: event.Timestamp(),
		Sequence:  len(stream.events) + 1,
	}
	stream.events = append(stream.events, stamped)
	stream.closed = terminal(stamped.EventType)
	handlers := append([]EventHandler(nil), s.handlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		if !h.CanHandle(stamped.EventType) {
			continue
		}
		if err := h.Handle(stamped); err != nil {
			s.logger.Error(err, "Error handling event", "type", stamped.EventType, "runID", runID)
		}
	}
	return nil
}

// Run returns a copy of the events recorded for runID
func (s *RunStore) Run(runID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return append([]Event(nil), stream.events...), nil
}

// Runs returns the recorded run ids in the order they started
func (s *RunStore) Runs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Subscribe registers handler; it sees every event it CanHandle
func (s *RunStore) Subscribe(handler EventHandler) error {
	if handler == nil {
		return errors.New("nil event handler")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
	return nil
}

func (s *RunStore) Unsubscribe(handler EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.handlers[:0]
	for _, h := range s.handlers {
		if h != handler {
			kept = append(kept, h)
		}
	}
	s.handlers = kept
	return nil
}
