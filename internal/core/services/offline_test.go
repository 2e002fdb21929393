package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-labs/arborsync/internal/core/domain"
)

func newTestQueue(transport *fakeTransport, enabled bool) (*OfflineQueue, *StatusBroadcaster) {
	status := NewStatusBroadcaster(10*time.Millisecond, true)
	return NewOfflineQueue(transport, status, newFakeClock(), enabled), status
}

func TestOfflineQueue_OnlineWritePassesThrough(t *testing.T) {
	transport := &fakeTransport{}
	q, status := newTestQueue(transport, true)

	res, err := q.Write(context.Background(), http.MethodPost, "pages", map[string]any{"a": 1})

	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(res))
	assert.Equal(t, 1, transport.CallCount())
	assert.Equal(t, domain.StateSuccess, status.Status().State)
}

func TestOfflineQueue_ReadNeverQueued(t *testing.T) {
	transport := &fakeTransport{}
	q, status := newTestQueue(transport, true)
	q.SetOnline(false)

	_, err := q.Read(context.Background(), http.MethodPost, "databases/x/query", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, transport.CallCount())
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, domain.StateOffline, status.Status().State)
}

func TestOfflineQueue_FIFOReplayOnReconnect(t *testing.T) {
	transport := &fakeTransport{}
	q, _ := newTestQueue(transport, true)
	q.SetOnline(false)

	results := make(chan error, 3)
	for i := 1; i <= 3; i++ {
		path := fmt.Sprintf("pages/w%d", i)
		go func() {
			_, err := q.Write(context.Background(), http.MethodPatch, path, nil)
			results <- err
		}()
		// Serialise enqueue order so FIFO is observable.
		require.Eventually(t, func() bool { return q.Pending() == i }, time.Second, time.Millisecond)
	}

	q.SetOnline(true)

	for i := 0; i < 3; i++ {
		require.NoError(t, <-results)
	}
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)

	var order []string
	for _, call := range transport.Calls() {
		order = append(order, call.Path)
	}
	assert.Equal(t, []string{"pages/w1", "pages/w2", "pages/w3"}, order)
}

func TestOfflineQueue_OfflineWriteThenReconnect(t *testing.T) {
	transport := &fakeTransport{}
	q, _ := newTestQueue(transport, true)
	q.SetOnline(false)

	done := make(chan error, 1)
	go func() {
		_, err := q.Write(context.Background(), http.MethodPatch, "pages/p1", map[string]any{"notes": "hello"})
		done <- err
	}()

	require.Eventually(t, func() bool { return q.Pending() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, transport.CallCount(), "nothing sent while offline")

	q.SetOnline(true)

	require.NoError(t, <-done)
	assert.Equal(t, 1, transport.CallCount(), "the update fires exactly once")
}

func TestOfflineQueue_DrainStopsWhenConnectivityDrops(t *testing.T) {
	transport := &fakeTransport{}
	q, status := newTestQueue(transport, true)
	q.SetOnline(false)

	results := make(chan error, 2)
	for i := 1; i <= 2; i++ {
		path := fmt.Sprintf("pages/w%d", i)
		go func() {
			_, err := q.Write(context.Background(), http.MethodPatch, path, nil)
			results <- err
		}()
		require.Eventually(t, func() bool { return q.Pending() == i }, time.Second, time.Millisecond)
	}

	// First drained request hits a dead network.
	transport.SetHandler(func(method, path string, body any) (json.RawMessage, error) {
		return nil, fmt.Errorf("%w: connection refused", domain.ErrUnreachable)
	})
	q.SetOnline(true)

	require.Eventually(t, func() bool { return !q.Online() }, time.Second, time.Millisecond)
	// The in-flight entry is retried, not dropped: both writes survive.
	assert.Equal(t, 2, q.Pending())
	assert.Equal(t, domain.StateOffline, status.Status().State)

	// Connectivity returns; the retained entries drain in order.
	transport.SetHandler(nil)
	q.SetOnline(true)
	require.NoError(t, <-results)
	require.NoError(t, <-results)
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestOfflineQueue_NonConnectivityFailureRejectsCaller(t *testing.T) {
	transport := &fakeTransport{}
	q, _ := newTestQueue(transport, true)
	q.SetOnline(false)

	errs := make(chan error, 2)
	go func() {
		_, err := q.Write(context.Background(), http.MethodPatch, "pages/bad", nil)
		errs <- err
	}()
	require.Eventually(t, func() bool { return q.Pending() == 1 }, time.Second, time.Millisecond)
	go func() {
		_, err := q.Write(context.Background(), http.MethodPatch, "pages/good", nil)
		errs <- err
	}()
	require.Eventually(t, func() bool { return q.Pending() == 2 }, time.Second, time.Millisecond)

	transport.SetHandler(func(method, path string, body any) (json.RawMessage, error) {
		if path == "pages/bad" {
			return nil, fmt.Errorf("validation failed")
		}
		return json.RawMessage(`{}`), nil
	})
	q.SetOnline(true)

	first := <-errs
	second := <-errs
	// One rejection, one success; the failure does not stall the drain.
	if first == nil {
		first, second = second, first
	}
	require.Error(t, first)
	require.NoError(t, second)
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestOfflineQueue_ClearRejectsAllPending(t *testing.T) {
	transport := &fakeTransport{}
	q, _ := newTestQueue(transport, true)
	q.SetOnline(false)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := q.Write(context.Background(), http.MethodPatch, "pages/x", nil)
			errs <- err
		}()
		require.Eventually(t, func() bool { return q.Pending() == i+1 }, time.Second, time.Millisecond)
	}

	q.Clear()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, <-errs, domain.ErrQueueCleared)
	}
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 0, transport.CallCount())
}

func TestOfflineQueue_EnqueueAfterReconnectDrainsImmediately(t *testing.T) {
	// Connectivity can return between a failed write and its append to the
	// queue; no reconnect event fires for that request, so the append
	// itself must notice and drain.
	transport := &fakeTransport{}
	q, _ := newTestQueue(transport, true)

	res, err := q.enqueue(context.Background(), http.MethodPatch, "pages/x", nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(res))
	assert.Equal(t, 1, transport.CallCount())
	assert.Equal(t, 0, q.Pending())
}

func TestOfflineQueue_SetEnabledTogglesDeferral(t *testing.T) {
	transport := &fakeTransport{}
	q, _ := newTestQueue(transport, false)
	q.SetOnline(false)

	_, err := q.Write(context.Background(), http.MethodPatch, "pages/x", nil)
	require.ErrorIs(t, err, domain.ErrOffline)

	q.SetEnabled(true)

	done := make(chan error, 1)
	go func() {
		_, err := q.Write(context.Background(), http.MethodPatch, "pages/x", nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return q.Pending() == 1 }, time.Second, time.Millisecond)

	q.SetOnline(true)
	require.NoError(t, <-done)
}

func TestOfflineQueue_DisabledFailsFastOffline(t *testing.T) {
	transport := &fakeTransport{}
	q, _ := newTestQueue(transport, false)
	q.SetOnline(false)

	_, err := q.Write(context.Background(), http.MethodPatch, "pages/x", nil)

	assert.ErrorIs(t, err, domain.ErrOffline)
	assert.Equal(t, 0, transport.CallCount())
}

func TestOfflineQueue_CancelledCallerAbandonsQueuedWrite(t *testing.T) {
	transport := &fakeTransport{}
	q, _ := newTestQueue(transport, true)
	q.SetOnline(false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Write(ctx, http.MethodPatch, "pages/x", nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return q.Pending() == 1 }, time.Second, time.Millisecond)

	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestOfflineQueue_UnreachableDirectWriteGetsQueued(t *testing.T) {
	transport := &fakeTransport{}
	q, _ := newTestQueue(transport, true)

	// Online, but the network dies under the write.
	transport.SetHandler(func(method, path string, body any) (json.RawMessage, error) {
		return nil, fmt.Errorf("%w: connection reset", domain.ErrUnreachable)
	})

	done := make(chan error, 1)
	go func() {
		_, err := q.Write(context.Background(), http.MethodPatch, "pages/x", nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return q.Pending() == 1 }, time.Second, time.Millisecond)
	assert.False(t, q.Online())

	transport.SetHandler(nil)
	q.SetOnline(true)
	require.NoError(t, <-done)
}
