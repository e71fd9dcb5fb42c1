package common

import (
	"context"
	"sync"
)

// RunState describes where a workflow, job or step is in its lifecycle.
type RunState string

const (
	StatePending   RunState = "Pending"
	StateRunning   RunState = "Running"
	StateSuccess   RunState = "Success"
	StateFailure   RunState = "Failure"
	StateSkipped   RunState = "Skipped"
	StateCancelled RunState = "Cancelled"
)

// Event is the tagged union streamed to UI consumers. Exactly one of
// the pointer fields is set.
type Event struct {
	WorkflowStarted  *WorkflowStartedEvent
	JobStateChanged  *JobStateChangedEvent
	StepStateChanged *StepStateChangedEvent
	LogLine          *LogLineEvent
	WorkflowFinished *WorkflowFinishedEvent
}

type WorkflowStartedEvent struct {
	Path string
}

type JobStateChangedEvent struct {
	JobID string
	State RunState
}

type StepStateChangedEvent struct {
	JobID string
	Index int
	State RunState
}

type LogLineEvent struct {
	JobID  string
	Index  int
	Stream string // "stdout" or "stderr"
	Text   string
}

type WorkflowFinishedEvent struct {
	Summary string
}

// EventSink consumes run events. Send may block when the consumer is
// slow, which slows producers instead of buffering without bound.
type EventSink interface {
	Send(event Event)
	Close()
}

type channelSink struct {
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannelSink creates a sink backed by a bounded channel drained by
// handler on a dedicated goroutine.
func NewChannelSink(capacity int, handler func(Event)) EventSink {
	if capacity < 1 {
		capacity = 1
	}
	s := &channelSink{
		events: make(chan Event, capacity),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for ev := range s.events {
			handler(ev)
		}
	}()
	return s
}

func (s *channelSink) Send(event Event) {
	s.events <- event
}

// Close stops the drain goroutine after pending events are delivered.
func (s *channelSink) Close() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
	<-s.done
}

// discardSink swallows events, for callers that do not attach a UI.
type discardSink struct{}

func (discardSink) Send(Event) {}
func (discardSink) Close()     {}

// NewDiscardSink returns a sink that drops every event.
func NewDiscardSink() EventSink {
	return discardSink{}
}

type eventSinkContextKey string

const eventSinkContextKeyVal = eventSinkContextKey("common.EventSink")

// EventSinkFromContext returns the sink for the current context, or a
// discarding sink when none is attached.
func EventSinkFromContext(ctx context.Context) EventSink {
	if val := ctx.Value(eventSinkContextKeyVal); val != nil {
		if sink, ok := val.(EventSink); ok {
			return sink
		}
	}
	return discardSink{}
}

// WithEventSink attaches an event sink to the context.
func WithEventSink(ctx context.Context, sink EventSink) context.Context {
	return context.WithValue(ctx, eventSinkContextKeyVal, sink)
}
