package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbor-labs/arborsync/internal/core/domain"
	"github.com/arbor-labs/arborsync/internal/core/ports/driven"
	"github.com/arbor-labs/arborsync/internal/logger"
)

type queueResult struct {
	data json.RawMessage
	err  error
}

// QueuedRequest is a write deferred while unreachable. The original caller
// stays blocked on done until the queue drains, rejects or clears it.
type QueuedRequest struct {
	ID         string
	Method     string
	Path       string
	Body       any
	EnqueuedAt time.Time

	done chan queueResult
}

// OfflineQueue wraps the transport client: reads always pass through, writes
// are deferred while unreachable and replayed in strict FIFO order on
// reconnect. It also drives the sync status signal.
type OfflineQueue struct {
	inner  driven.Transport
	status *StatusBroadcaster
	clock  driven.Clock

	mu       sync.Mutex
	enabled  bool
	online   bool
	queue    []*QueuedRequest
	draining bool
}

// NewOfflineQueue creates a queue over the given transport, initially
// online. When enabled is false, writes attempted while unreachable fail
// fast with domain.ErrOffline instead of being deferred.
func NewOfflineQueue(inner driven.Transport, status *StatusBroadcaster, clock driven.Clock, enabled bool) *OfflineQueue {
	return &OfflineQueue{
		inner:   inner,
		status:  status,
		clock:   clock,
		enabled: enabled,
		online:  true,
	}
}

// Read executes a read untouched: no queueing, no status changes.
func (q *OfflineQueue) Read(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	return q.inner.Execute(ctx, method, path, body)
}

// Write executes a write, deferring it when unreachable. The call blocks
// until the request settles: immediately when online, or after a later
// drain, rejection or queue clear when offline. Cancelling the context
// abandons a still-queued request.
func (q *OfflineQueue) Write(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	q.mu.Lock()
	online := q.online
	enabled := q.enabled
	q.mu.Unlock()

	if online {
		q.status.Syncing()
		res, err := q.inner.Execute(ctx, method, path, body)
		switch {
		case err == nil:
			q.status.Success()
			return res, nil
		case errors.Is(err, domain.ErrUnreachable):
			// Connectivity dropped mid-write. Transition to offline;
			// with queueing enabled the write is deferred instead of
			// surfaced.
			q.SetOnline(false)
			if !enabled {
				return nil, err
			}
		default:
			q.status.Error(err.Error())
			return nil, err
		}
	}

	if !enabled {
		return nil, domain.ErrOffline
	}
	return q.enqueue(ctx, method, path, body)
}

func (q *OfflineQueue) enqueue(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	req := &QueuedRequest{
		ID:         uuid.New().String(),
		Method:     method,
		Path:       path,
		Body:       body,
		EnqueuedAt: q.clock.Now(),
		done:       make(chan queueResult, 1),
	}

	q.mu.Lock()
	q.queue = append(q.queue, req)
	pending := len(q.queue)
	online := q.online
	q.mu.Unlock()

	if online {
		// Connectivity returned between the failed write and the append.
		// No reconnect event will fire for this request, so drain now.
		go q.drain(context.Background())
	} else {
		logger.Info("queued %s %s while offline (%d pending)", method, path, pending)
		q.status.Offline(pending)
	}

	select {
	case res := <-req.done:
		return res.data, res.err
	case <-ctx.Done():
		q.remove(req.ID)
		return nil, ctx.Err()
	}
}

// SetOnline records a reachability change. Regaining connectivity returns
// the status to idle and immediately triggers a drain of any pending writes.
func (q *OfflineQueue) SetOnline(online bool) {
	q.mu.Lock()
	if q.online == online {
		q.mu.Unlock()
		return
	}
	q.online = online
	pending := len(q.queue)
	q.mu.Unlock()

	if online {
		q.status.Idle()
		if pending > 0 {
			go q.drain(context.Background())
		}
		return
	}
	q.status.Offline(pending)
}

// SetEnabled toggles write deferral at runtime (config hot-reload). Already
// queued writes are unaffected; only future offline writes see the change.
func (q *OfflineQueue) SetEnabled(enabled bool) {
	q.mu.Lock()
	q.enabled = enabled
	q.mu.Unlock()
}

// Online reports the current reachability flag.
func (q *OfflineQueue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// Pending returns the number of deferred writes.
func (q *OfflineQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// PendingRequests returns a snapshot of the deferred writes in FIFO order.
func (q *OfflineQueue) PendingRequests() []QueuedRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedRequest, len(q.queue))
	for i, req := range q.queue {
		out[i] = *req
	}
	return out
}

// Flush forces an immediate synchronous drain attempt.
func (q *OfflineQueue) Flush(ctx context.Context) {
	q.drain(ctx)
}

// Clear discards every pending write, rejecting each original caller with
// domain.ErrQueueCleared. Used for explicit discard-and-reset.
func (q *OfflineQueue) Clear() {
	q.mu.Lock()
	cleared := q.queue
	q.queue = nil
	online := q.online
	q.mu.Unlock()

	for _, req := range cleared {
		req.done <- queueResult{err: domain.ErrQueueCleared}
	}
	if len(cleared) > 0 {
		logger.Info("cleared %d pending writes", len(cleared))
	}
	if online {
		q.status.Idle()
	} else {
		q.status.Offline(0)
	}
}

// drain replays queued writes one at a time in enqueue order. It stops the
// moment connectivity drops, leaving the in-flight entry at the head so the
// next reconnect retries it rather than dropping it. Failures other than
// unreachability reject the original caller and the drain continues.
func (q *OfflineQueue) drain(ctx context.Context) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	processed := false
	for {
		q.mu.Lock()
		if !q.online || len(q.queue) == 0 {
			emptied := q.online && len(q.queue) == 0
			q.mu.Unlock()
			if emptied && processed {
				q.status.Success()
			}
			return
		}
		req := q.queue[0]
		q.mu.Unlock()

		q.status.Syncing()
		res, err := q.inner.Execute(ctx, req.Method, req.Path, req.Body)
		if err != nil && errors.Is(err, domain.ErrUnreachable) {
			q.mu.Lock()
			q.online = false
			pending := len(q.queue)
			q.mu.Unlock()
			q.status.Offline(pending)
			return
		}

		q.remove(req.ID)
		req.done <- queueResult{data: res, err: err}
		processed = true
		if err != nil {
			logger.Warn("queued %s %s rejected: %v", req.Method, req.Path, err)
			q.status.Error(err.Error())
		}
	}
}

// remove drops a request from the queue by id, wherever it sits.
func (q *OfflineQueue) remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, req := range q.queue {
		if req.ID == id {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			return
		}
	}
}
