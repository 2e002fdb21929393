package domain

import "time"

// Node is a single element of the diagram graph. Nodes are curated in the
// remote workspace; the application never originates node identifiers.
type Node struct {
	// ID is the curated identifier. Never empty: the decoder falls back to
	// the remote page id when the id property is missing.
	ID string

	// ParentIDs lists the identifiers of this node's parents. A node may
	// have several parents.
	ParentIDs []string

	Label    string
	Category string
	Color    string
	DocURL   string

	ShortDesc string
	LongDesc  string

	Links  []Link
	Images []Image
	Video  *Video

	// Hidden marks a node that is collapsed by default in the viewer.
	Hidden bool

	// Group is an optional tag used to cluster sibling nodes.
	Group string

	LastEdited time.Time
}

// Link is an external reference attached to a node.
type Link struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// Image is an illustration attached to a node.
type Image struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// Video is an optional single video reference attached to a node.
type Video struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}
