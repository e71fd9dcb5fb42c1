package common

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DrainTimeout bounds how long a registry drain may take, both on
// normal completion and when interrupted by a signal.
const DrainTimeout = 10 * time.Second

// ResourceKind classifies a live resource tracked for cleanup.
type ResourceKind string

const (
	ResourceContainer ResourceKind = "container"
	ResourceNetwork   ResourceKind = "network"
	ResourceVolume    ResourceKind = "volume"
	ResourceTempDir   ResourceKind = "temp-dir"
)

// CleanupHandle is one registered resource. Remove is idempotent so a
// handle may be dropped after the resource was already torn down
// externally.
type CleanupHandle struct {
	Kind    ResourceKind
	ID      string
	release Executor

	registry *CleanupRegistry
	seq      uint64
	removed  bool
}

// Remove unregisters the handle without releasing the resource.
func (h *CleanupHandle) Remove() {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()
	if h.removed {
		return
	}
	h.removed = true
	delete(h.registry.handles, h.seq)
}

// CleanupRegistry tracks live resources so they can be released in
// reverse insertion order on completion or interruption.
type CleanupRegistry struct {
	mu      sync.Mutex
	seq     uint64
	handles map[uint64]*CleanupHandle
}

// NewCleanupRegistry creates an empty registry.
func NewCleanupRegistry() *CleanupRegistry {
	return &CleanupRegistry{
		handles: map[uint64]*CleanupHandle{},
	}
}

// Register adds a handle. Callers register before the resource is
// usable so an interrupt arriving mid-creation still releases it.
func (r *CleanupRegistry) Register(kind ResourceKind, id string, release Executor) *CleanupHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	h := &CleanupHandle{
		Kind:     kind,
		ID:       id,
		release:  release,
		registry: r,
		seq:      r.seq,
	}
	r.handles[h.seq] = h
	return h
}

// Len reports how many handles are currently registered.
func (r *CleanupRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Drain releases every registered resource, newest first, best-effort,
// bounded by DrainTimeout. The mutex is only held while copying the
// handle list, never during release calls.
func (r *CleanupRegistry) Drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(withoutCancel(ctx), DrainTimeout)
	defer cancel()

	r.mu.Lock()
	handles := make([]*CleanupHandle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	// reverse insertion order
	for i := 0; i < len(handles); i++ {
		for j := i + 1; j < len(handles); j++ {
			if handles[j].seq > handles[i].seq {
				handles[i], handles[j] = handles[j], handles[i]
			}
		}
	}

	logger := Logger(ctx)
	for i, h := range handles {
		if ctx.Err() != nil {
			logger.Warnf("cleanup deadline reached, %d resource(s) left behind", len(handles)-i)
			return
		}
		if h.release != nil {
			if err := h.release(ctx); err != nil {
				logger.Debugf("cleanup of %s %s: %v", h.Kind, h.ID, err)
			}
		}
		h.Remove()
	}
}

// withoutCancel detaches the drain from an already-cancelled run
// context while keeping its values (logger, sink).
func withoutCancel(ctx context.Context) context.Context {
	return detachedContext{ctx}
}

type detachedContext struct {
	parent context.Context
}

func (detachedContext) Deadline() (time.Time, bool)         { return time.Time{}, false }
func (detachedContext) Done() <-chan struct{}               { return nil }
func (detachedContext) Err() error                          { return nil }
func (c detachedContext) Value(key interface{}) interface{} { return c.parent.Value(key) }

// WithSignalHandler returns a context cancelled on SIGINT or SIGTERM.
// The dedicated handler task owns the drain routine: after cancelling
// it synchronously drains the registry so resources are released even
// if the run never observes the cancellation.
func WithSignalHandler(parent context.Context, registry *CleanupRegistry) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigChan:
			cancel()
			registry.Drain(parent)
		case <-ctx.Done():
		}
	}()

	stop := func() {
		signal.Stop(sigChan)
		cancel()
		<-done
	}
	return ctx, stop
}
