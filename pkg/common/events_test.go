package common

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelSinkDeliversInOrder(t *testing.T) {
	assert := assert.New(t)

	var mu sync.Mutex
	got := make([]RunState, 0)
	sink := NewChannelSink(2, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.JobStateChanged != nil {
			got = append(got, ev.JobStateChanged.State)
		}
	})

	for _, state := range []RunState{StatePending, StateRunning, StateSuccess} {
		sink.Send(Event{JobStateChanged: &JobStateChangedEvent{JobID: "a", State: state}})
	}
	sink.Close()

	assert.Equal([]RunState{StatePending, StateRunning, StateSuccess}, got)
}

func TestChannelSinkCloseIsIdempotent(t *testing.T) {
	sink := NewChannelSink(1, func(Event) {})
	sink.Close()
	sink.Close()
}

func TestEventSinkFromContext(t *testing.T) {
	assert := assert.New(t)

	// without a sink attached, events are discarded without panicking
	sink := EventSinkFromContext(context.Background())
	sink.Send(Event{WorkflowStarted: &WorkflowStartedEvent{Path: "x.yml"}})

	attached := NewChannelSink(1, func(Event) {})
	defer attached.Close()
	ctx := WithEventSink(context.Background(), attached)
	assert.Equal(attached, EventSinkFromContext(ctx))
}
