package notion

// QueryRequest is the body of a database query call.
type QueryRequest struct {
	Filter      *Filter `json:"filter,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
}

// Filter matches pages by one property. Only rich-text equality is needed
// here: identifier resolution filters on the indexed "id" property.
type Filter struct {
	Property string      `json:"property"`
	RichText *TextFilter `json:"rich_text,omitempty"`
}

// TextFilter is a rich-text property condition.
type TextFilter struct {
	Equals string `json:"equals,omitempty"`
}

// QueryResponse is one page of database query results.
type QueryResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// IDFilter builds the equality filter used for identifier resolution.
func IDFilter(id string) *Filter {
	return &Filter{Property: "id", RichText: &TextFilter{Equals: id}}
}

// QueryPath returns the logical path for querying a database.
func QueryPath(databaseID string) string {
	return "databases/" + databaseID + "/query"
}

// PagePath returns the logical path for updating a page.
func PagePath(pageID string) string {
	return "pages/" + pageID
}

// CreatePageRequest is the body of a page create call.
type CreatePageRequest struct {
	Parent     Parent         `json:"parent"`
	Properties map[string]any `json:"properties"`
}

// Parent identifies the database a new page belongs to.
type Parent struct {
	DatabaseID string `json:"database_id"`
}

// UpdatePageRequest is the body of a page update call. Archived uses a
// pointer so plain property updates do not send the field at all.
type UpdatePageRequest struct {
	Properties map[string]any `json:"properties,omitempty"`
	Archived   *bool          `json:"archived,omitempty"`
}
