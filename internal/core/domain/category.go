package domain

// Category is a folder used to organise paths. Categories form a tree via
// ParentID; an empty ParentID marks a root.
type Category struct {
	// ID is the curated identifier; a leading single quote is stripped
	// during decode.
	ID string

	Name string

	// ParentID is the identifier of the parent category, or "" for roots.
	ParentID string

	// PageID is the remote page id backing this category.
	PageID string
}

// FindCategoryCycle walks the parent chain that would result from setting
// parentID as the parent of id. It returns true when the change would make
// the category its own ancestor. The walk is bounded by the number of known
// categories, so a pre-existing cycle in the input cannot loop forever.
func FindCategoryCycle(categories []Category, id, parentID string) bool {
	if parentID == "" {
		return false
	}
	byID := make(map[string]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	cur := parentID
	for range categories {
		if cur == "" {
			return false
		}
		if cur == id {
			return true
		}
		next, ok := byID[cur]
		if !ok {
			return false
		}
		cur = next.ParentID
	}
	return cur == id
}
