// Package domain defines the application-level records synchronised with the
// remote Notion workspace, plus the error and status values shared across the
// core. Records are decoded from remote pages by the notion adapter; the
// domain package itself has no knowledge of the wire format.
package domain
