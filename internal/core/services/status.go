package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/arbor-labs/arborsync/internal/core/domain"
	"github.com/arbor-labs/arborsync/internal/core/ports/driving"
	"github.com/arbor-labs/arborsync/internal/logger"
)

// DefaultRevertDelay is how long a success status lingers before
// auto-reverting to idle.
const DefaultRevertDelay = 2 * time.Second

// Ensure StatusBroadcaster implements the driving port.
var _ driving.StatusSource = (*StatusBroadcaster)(nil)

type statusListener struct {
	id int
	fn func(domain.SyncStatus)
}

// StatusBroadcaster publishes the sync status to any number of listeners.
// Broadcasts run synchronously in registration order; each listener call is
// isolated, so one panicking observer cannot stop propagation to the rest.
type StatusBroadcaster struct {
	mu          sync.Mutex
	enabled     bool
	status      domain.SyncStatus
	listeners   []statusListener
	nextID      int
	revertDelay time.Duration
	revertSeq   int
}

// NewStatusBroadcaster creates a broadcaster in the idle state. A
// revertDelay <= 0 uses the default of two seconds. When enabled is false
// the broadcaster stays silently idle: state changes are dropped and nothing
// is broadcast, matching the feature flag in the embedding application.
func NewStatusBroadcaster(revertDelay time.Duration, enabled bool) *StatusBroadcaster {
	if revertDelay <= 0 {
		revertDelay = DefaultRevertDelay
	}
	return &StatusBroadcaster{
		enabled:     enabled,
		status:      domain.SyncStatus{State: domain.StateIdle},
		revertDelay: revertDelay,
	}
}

// Subscribe registers a listener and immediately replays the current status
// to it. The returned cancel func removes the listener.
func (b *StatusBroadcaster) Subscribe(fn func(domain.SyncStatus)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners = append(b.listeners, statusListener{id: id, fn: fn})
	current := b.status
	b.mu.Unlock()

	notify(fn, current)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetEnabled toggles the signal at runtime (config hot-reload). Disabling
// drops future changes without resetting the current status; re-enabling
// picks up from the next change.
func (b *StatusBroadcaster) SetEnabled(enabled bool) {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

// Status returns the current status.
func (b *StatusBroadcaster) Status() domain.SyncStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Syncing marks a write or queue drain as in flight.
func (b *StatusBroadcaster) Syncing() {
	b.set(domain.SyncStatus{State: domain.StateSyncing})
}

// Success marks the last operation(s) as completed and schedules the revert
// to idle. A newer state change supersedes the pending revert.
func (b *StatusBroadcaster) Success() {
	seq := b.set(domain.SyncStatus{State: domain.StateSuccess})
	if seq < 0 {
		return
	}
	time.AfterFunc(b.revertDelay, func() {
		b.mu.Lock()
		if b.revertSeq != seq || b.status.State != domain.StateSuccess {
			b.mu.Unlock()
			return
		}
		idle := domain.SyncStatus{State: domain.StateIdle}
		b.status = idle
		b.revertSeq++
		listeners := make([]statusListener, len(b.listeners))
		copy(listeners, b.listeners)
		b.mu.Unlock()
		for _, l := range listeners {
			notify(l.fn, idle)
		}
	})
}

// Error marks the last operation as failed.
func (b *StatusBroadcaster) Error(msg string) {
	b.set(domain.SyncStatus{State: domain.StateError, Message: msg})
}

// Offline marks connectivity as lost with the current pending-write count.
func (b *StatusBroadcaster) Offline(pending int) {
	msg := "offline"
	if pending > 0 {
		msg = fmt.Sprintf("offline, %d pending", pending)
	}
	b.set(domain.SyncStatus{State: domain.StateOffline, Message: msg, Pending: pending})
}

// Idle returns to the steady state.
func (b *StatusBroadcaster) Idle() {
	b.set(domain.SyncStatus{State: domain.StateIdle})
}

// set updates the status and broadcasts it, returning the revert sequence
// number for this change, or -1 when the broadcaster is disabled.
func (b *StatusBroadcaster) set(status domain.SyncStatus) int {
	b.mu.Lock()
	if !b.enabled {
		b.mu.Unlock()
		return -1
	}
	b.status = status
	b.revertSeq++
	seq := b.revertSeq
	listeners := make([]statusListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		notify(l.fn, status)
	}
	return seq
}

// notify invokes one listener, recovering from panics so a bad observer
// cannot break propagation for listeners registered after it.
func notify(fn func(domain.SyncStatus), status domain.SyncStatus) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("status listener panicked: %v", r)
		}
	}()
	fn(status)
}
