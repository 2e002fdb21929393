package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-labs/arborsync/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ClientOptions) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL
	if opts.Retries == 0 {
		opts.Retries = 1
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 10000
	}
	return NewClient(opts)
}

func TestClient_DirectRouting(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"ok":true}`))
	}, ClientOptions{Route: RouteDirect})

	res, err := client.Execute(context.Background(), http.MethodPatch, "pages/abc", map[string]any{"k": "v"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(res))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/pages/abc", gotPath)
	assert.JSONEq(t, `{"k":"v"}`, string(gotBody))
}

func TestClient_EnvelopeRouting(t *testing.T) {
	// Production routing embeds the logical request in a POST body; the
	// logical method and path must survive unchanged.
	var gotMethod string
	var gotBody []byte

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}, ClientOptions{Route: RouteEnvelope})

	_, err := client.Execute(context.Background(), http.MethodPatch, "pages/abc", map[string]any{"k": "v"})

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)

	var env struct {
		Method string          `json:"method"`
		Path   string          `json:"path"`
		Body   json.RawMessage `json:"body"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &env))
	assert.Equal(t, http.MethodPatch, env.Method)
	assert.Equal(t, "pages/abc", env.Path)
	assert.JSONEq(t, `{"k":"v"}`, string(env.Body))
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}, ClientOptions{Retries: 3})

	res, err := client.Execute(context.Background(), http.MethodGet, "databases/x", nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(res))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RetriesExhausted_SurfacesLastError(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"code":"service_unavailable","message":"down"}`))
	}, ClientOptions{Retries: 2})

	_, err := client.Execute(context.Background(), http.MethodGet, "databases/x", nil)

	require.Error(t, err)
	// 1 initial attempt + 2 retries.
	assert.Equal(t, int32(3), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "service_unavailable", apiErr.Code)
}

func TestClient_ClientErrorsNotExemptFromRetry(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"validation_error","message":"bad filter"}`))
	}, ClientOptions{Retries: 2})

	_, err := client.Execute(context.Background(), http.MethodPost, "databases/x/query", nil)

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}, ClientOptions{Retries: 1})

	_, err := client.Execute(context.Background(), http.MethodGet, "x", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestClient_EmptyErrorBodySynthesizesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, ClientOptions{Retries: 1})

	_, err := client.Execute(context.Background(), http.MethodGet, "x", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "HTTP 500", apiErr.Message)
}

func TestClient_SetRetryPolicyAppliesToNextCall(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, ClientOptions{Retries: 2})

	_, err := client.Execute(context.Background(), http.MethodGet, "x", nil)
	require.Error(t, err)
	require.Equal(t, int32(3), calls.Load())

	// Reloaded config drops retries to zero: one attempt only.
	client.SetRetryPolicy(0, time.Millisecond, time.Second)
	calls.Store(0)

	_, err = client.Execute(context.Background(), http.MethodGet, "x", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ConnectionFailureIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening any more

	client := NewClient(ClientOptions{
		BaseURL:           srv.URL,
		Retries:           1,
		RetryDelay:        time.Millisecond,
		RequestsPerSecond: 10000,
	})

	_, err := client.Execute(context.Background(), http.MethodGet, "x", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnreachable)
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsUnauthorized(&APIError{StatusCode: 401}))
	assert.True(t, IsNotFound(&APIError{StatusCode: 404}))
	assert.True(t, IsRateLimited(&APIError{StatusCode: 429}))
	assert.False(t, IsUnauthorized(domain.ErrUnreachable))
}
