package driven

import (
	"context"
	"encoding/json"
)

// Transport executes one logical request against the remote API. The
// method/path pair is the remote API's own surface (e.g. POST
// "databases/{id}/query"); routing to a physical endpoint, retries and
// per-call timeouts are the implementation's concern, invisible to callers.
//
// A nil body sends no payload. Network-level failures are wrapped with
// domain.ErrUnreachable; API-level failures carry the HTTP status.
type Transport interface {
	Execute(ctx context.Context, method, path string, body any) (json.RawMessage, error)
}
