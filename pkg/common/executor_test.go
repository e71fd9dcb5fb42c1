package common

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPipelineExecutor(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	trace := make([]string, 0)
	stepper := func(name string) Executor {
		return func(ctx context.Context) error {
			trace = append(trace, name)
			return nil
		}
	}

	err := NewPipelineExecutor(stepper("a"), stepper("b"), stepper("c"))(ctx)
	assert.NoError(err)
	assert.Equal([]string{"a", "b", "c"}, trace)
}

func TestPipelineStopsOnError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ran := false
	err := NewPipelineExecutor(
		NewErrorExecutor(errors.New("boom")),
		func(ctx context.Context) error {
			ran = true
			return nil
		},
	)(ctx)
	assert.EqualError(err, "boom")
	assert.False(ran)
}

func TestPipelineContinuesOnWarning(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ran := false
	err := NewPipelineExecutor(
		NewErrorExecutor(Warningf("just a warning")),
		func(ctx context.Context) error {
			ran = true
			return nil
		},
	)(ctx)
	assert.NoError(err)
	assert.True(ran)
}

func TestNewParallelExecutor(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var count atomic.Int32
	var running atomic.Int32
	var peak atomic.Int32

	emptyWorkflow := func(ctx context.Context) error {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		defer running.Add(-1)
		count.Add(1)
		return nil
	}

	err := NewParallelExecutor(2, emptyWorkflow, emptyWorkflow, emptyWorkflow, emptyWorkflow)(ctx)
	assert.NoError(err)
	assert.Equal(int32(4), count.Load())
	assert.LessOrEqual(peak.Load(), int32(2))
}

func TestParallelExecutorFirstError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	err := NewParallelExecutor(4,
		func(ctx context.Context) error { return nil },
		NewErrorExecutor(fmt.Errorf("boom")),
	)(ctx)
	assert.Error(err)
}

func TestParallelExecutorCancelled(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var mu sync.Mutex
	ran := 0
	err := NewParallelExecutor(1, func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		ran++
		return nil
	})(ctx)
	assert.ErrorIs(err, context.Canceled)
}

func TestExecutorConditionals(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ran := false
	set := func(ctx context.Context) error {
		ran = true
		return nil
	}

	assert.NoError(Executor(set).IfBool(false)(ctx))
	assert.False(ran)

	assert.NoError(Executor(set).IfBool(true)(ctx))
	assert.True(ran)
}

func TestExecutorFinally(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	finallyRan := false
	err := NewErrorExecutor(errors.New("boom")).Finally(func(ctx context.Context) error {
		finallyRan = true
		return nil
	})(ctx)
	assert.EqualError(err, "boom")
	assert.True(finallyRan)
}
