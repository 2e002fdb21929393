// Package notion adapts the core to the remote Notion workspace: a property
// codec translating between typed pages and domain records, query/filter
// request bodies, and the HTTP transport client that reaches the API through
// the credential-holding proxy.
//
// The codec is deliberately lossy-tolerant. The workspace is hand-curated,
// so every decode falls back to a documented default instead of failing, and
// every encode is sparse: only fields the caller explicitly set are sent.
package notion
