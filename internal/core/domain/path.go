package domain

import (
	"strings"
	"time"
)

// Path is a user-created, ordered selection of nodes with notes and
// categorisation. Paths are soft-deleted (archived) rather than removed.
type Path struct {
	// ID is the caller-supplied identifier. Never empty: the decoder falls
	// back to the remote page id. A leading single quote (a legacy
	// spreadsheet-import artifact) is stripped during decode.
	ID string

	// Name is the display name. Never empty; same fallback and
	// quote-stripping rules as ID.
	Name string

	// NodeIDs is the ordered list of referenced node identifiers.
	NodeIDs []string

	CategoryID       string
	SubCategoryID    string
	SubSubCategoryID string

	Notes      string
	AudioNotes []AudioNote

	Status string

	// LastUpdated is an optional date (YYYY-MM-DD) maintained by the
	// service so paths can be sorted by recency.
	LastUpdated string

	// Priority is an optional 0-100 ranking.
	Priority *int

	Favorite bool

	LastEdited time.Time
}

// PathUpdate is a partial update. Only non-nil fields are encoded and sent,
// so untouched remote values are never clobbered.
type PathUpdate struct {
	Name             *string
	NodeIDs          *[]string
	CategoryID       *string
	SubCategoryID    *string
	SubSubCategoryID *string
	Notes            *string
	AudioNotes       *[]AudioNote
	Status           *string
	LastUpdated      *string
	Priority         *int
	Favorite         *bool
}

// NodePath holds the user's notes attached to one node within one path.
// Its identifier is derived, never stored independently.
type NodePath struct {
	// ID is always exactly "{PathID}_{NodeID}".
	ID string

	PathID string
	NodeID string

	Content    string
	AudioNotes []AudioNote

	LastEdited time.Time
}

// NodePathID computes the derived identifier for a (path, node) pair.
func NodePathID(pathID, nodeID string) string {
	return pathID + "_" + nodeID
}

// HasNodePathPrefix reports whether a derived identifier belongs to the
// given path. Used when bulk-deleting a path's node notes.
func HasNodePathPrefix(id, pathID string) bool {
	return strings.HasPrefix(id, pathID+"_")
}

// SaveOutcome reports what a write against an application identifier did.
// Resolution misses are ordinary outcomes, not errors: callers decide
// whether to surface them.
type SaveOutcome int

const (
	// OutcomeUpdated means an existing remote record was updated.
	OutcomeUpdated SaveOutcome = iota

	// OutcomeCreated means no record existed and one was created.
	OutcomeCreated

	// OutcomeNotFound means the identifier resolved to no remote record
	// and the operation was a no-op.
	OutcomeNotFound
)

// String returns the outcome name for logs.
func (o SaveOutcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeCreated:
		return "created"
	case OutcomeNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}
