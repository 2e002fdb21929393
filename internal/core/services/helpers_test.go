package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/arbor-labs/arborsync/internal/adapters/driven/notion"
	"github.com/arbor-labs/arborsync/internal/core/ports/driven"
)

// fakeClock is a manually advanced clock for deterministic expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// transportCall records one request seen by the fake transport.
type transportCall struct {
	Method string
	Path   string
	Body   any
}

// fakeTransport scripts transport behaviour per request and records the
// calls it saw, in order.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []transportCall
	handler func(method, path string, body any) (json.RawMessage, error)
}

var _ driven.Transport = (*fakeTransport)(nil)

func (t *fakeTransport) Execute(_ context.Context, method, path string, body any) (json.RawMessage, error) {
	t.mu.Lock()
	t.calls = append(t.calls, transportCall{Method: method, Path: path, Body: body})
	handler := t.handler
	t.mu.Unlock()
	if handler == nil {
		return json.RawMessage(`{}`), nil
	}
	return handler(method, path, body)
}

func (t *fakeTransport) Calls() []transportCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]transportCall, len(t.calls))
	copy(out, t.calls)
	return out
}

func (t *fakeTransport) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

func (t *fakeTransport) SetHandler(h func(method, path string, body any) (json.RawMessage, error)) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// Page builders shared by the service tests.

func textProp(s string) notion.Property {
	return notion.Property{Type: "rich_text", RichText: []notion.RichText{{PlainText: s}}}
}

func titleProp(s string) notion.Property {
	return notion.Property{Type: "title", Title: []notion.RichText{{PlainText: s}}}
}

func pathPage(pageID, id, name, nodeIDs string) notion.Page {
	return notion.Page{
		ID: pageID,
		Properties: map[string]notion.Property{
			"id":      textProp(id),
			"name":    titleProp(name),
			"nodeIds": textProp(nodeIDs),
		},
	}
}

func queryResult(pages ...notion.Page) json.RawMessage {
	if pages == nil {
		pages = []notion.Page{}
	}
	data, err := json.Marshal(notion.QueryResponse{Results: pages})
	if err != nil {
		panic(err)
	}
	return data
}

func pagedQueryResult(cursor string, pages ...notion.Page) json.RawMessage {
	data, err := json.Marshal(notion.QueryResponse{Results: pages, HasMore: true, NextCursor: cursor})
	if err != nil {
		panic(err)
	}
	return data
}

// newTestService builds a service over the fake transport with short status
// delays and the queue online.
func newTestService(transport *fakeTransport, clock driven.Clock, ttl time.Duration) (*RecordService, *OfflineQueue, *StatusBroadcaster, *RecordCache) {
	status := NewStatusBroadcaster(10*time.Millisecond, true)
	queue := NewOfflineQueue(transport, status, clock, true)
	cache := NewRecordCache(clock, ttl)
	svc := NewRecordService(RecordServiceOptions{
		Queue: queue,
		Cache: cache,
		Clock: clock,
		Databases: Databases{
			Nodes:      "db-nodes",
			Paths:      "db-paths",
			NodePaths:  "db-nodepaths",
			Categories: "db-categories",
		},
		ValidateCategoryCycles: true,
	})
	return svc, queue, status, cache
}

// queryBodyFilter extracts the id-equality filter value from a query body,
// or "" when the body has no filter.
func queryBodyFilter(body any) string {
	req, ok := body.(notion.QueryRequest)
	if !ok || req.Filter == nil || req.Filter.RichText == nil {
		return ""
	}
	return req.Filter.RichText.Equals
}
