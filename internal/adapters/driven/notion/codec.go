package notion

import (
	"encoding/json"
	"strings"

	"github.com/arbor-labs/arborsync/internal/core/domain"
)

// Decode helpers. Each tries an ordered list of candidate property names and
// returns the first successfully-typed match; a missing or mistyped property
// yields the documented default. Decoding never fails.

func pageText(p Page, names ...string) string {
	for _, name := range names {
		if prop, ok := p.Properties[name]; ok {
			if s, ok := prop.text(); ok {
				return s
			}
		}
	}
	return ""
}

func pageBool(p Page, names ...string) bool {
	for _, name := range names {
		if prop, ok := p.Properties[name]; ok && prop.Checkbox != nil {
			return *prop.Checkbox
		}
	}
	return false
}

func pageNumber(p Page, names ...string) *float64 {
	for _, name := range names {
		if prop, ok := p.Properties[name]; ok && prop.Number != nil {
			return prop.Number
		}
	}
	return nil
}

func pageDate(p Page, names ...string) string {
	for _, name := range names {
		if prop, ok := p.Properties[name]; ok && prop.Date != nil {
			return prop.Date.Start
		}
	}
	return ""
}

func pageURL(p Page, names ...string) string {
	for _, name := range names {
		if prop, ok := p.Properties[name]; ok {
			if prop.URL != nil {
				return *prop.URL
			}
			if s, ok := prop.text(); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// stripLeadingQuote removes exactly one leading single quote, an artifact of
// a historical spreadsheet import. Idempotent on already-clean values.
func stripLeadingQuote(s string) string {
	return strings.TrimPrefix(s, "'")
}

// splitIDList parses a string-encoded id list. JSON arrays are tried first;
// on failure or an empty result the value is comma-split with trimming and
// blank entries removed (the trailing-separator encoding leaves one).
func splitIDList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var fromJSON []string
	if err := json.Unmarshal([]byte(s), &fromJSON); err == nil && len(fromJSON) > 0 {
		return fromJSON
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// joinIDList is the inverse of splitIDList. A single-element list gets a
// trailing separator so the remote API cannot reinterpret a lone
// numeric-looking token as a number.
func joinIDList(ids []string) string {
	if len(ids) == 1 {
		return ids[0] + ","
	}
	return strings.Join(ids, ",")
}

// decodeJSONList parses a JSON-serialised array property. Malformed input
// decodes to nil, never an error.
func decodeJSONList[T any](s string) []T {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func encodeJSONList(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeNode translates a remote page into a Node record.
func DecodeNode(p Page) domain.Node {
	id := pageText(p, "id")
	if id == "" {
		id = p.ID
	}
	// The video property holds either a single JSON object or a
	// one-element array, depending on the era of the curating script.
	var video *domain.Video
	if raw := strings.TrimSpace(pageText(p, "video")); raw != "" {
		if vids := decodeJSONList[domain.Video](raw); len(vids) > 0 {
			video = &vids[0]
		} else {
			var v domain.Video
			if err := json.Unmarshal([]byte(raw), &v); err == nil && v.URL != "" {
				video = &v
			}
		}
	}
	return domain.Node{
		ID:         id,
		ParentIDs:  splitIDList(pageText(p, "parentIds", "parents")),
		Label:      pageText(p, "label", "Name"),
		Category:   pageText(p, "category"),
		Color:      pageText(p, "color"),
		DocURL:     pageURL(p, "docUrl", "url"),
		ShortDesc:  pageText(p, "shortDescription", "description"),
		LongDesc:   pageText(p, "longDescription"),
		Links:      decodeJSONList[domain.Link](pageText(p, "links")),
		Images:     decodeJSONList[domain.Image](pageText(p, "images")),
		Video:      video,
		Hidden:     pageBool(p, "hiddenByDefault", "hidden"),
		Group:      pageText(p, "group"),
		LastEdited: p.LastEditedTime,
	}
}

// DecodePath translates a remote page into a Path record.
func DecodePath(p Page) domain.Path {
	id := stripLeadingQuote(pageText(p, "id"))
	if id == "" {
		id = p.ID
	}
	name := stripLeadingQuote(pageText(p, "name", "Name"))
	if name == "" {
		name = p.ID
	}
	var priority *int
	if n := pageNumber(p, "priority"); n != nil {
		v := int(*n)
		priority = &v
	}
	return domain.Path{
		ID:               id,
		Name:             name,
		NodeIDs:          splitIDList(pageText(p, "nodeIds")),
		CategoryID:       pageText(p, "categoryId"),
		SubCategoryID:    pageText(p, "subcategoryId"),
		SubSubCategoryID: pageText(p, "subsubcategoryId"),
		Notes:            pageText(p, "notes"),
		AudioNotes:       decodeJSONList[domain.AudioNote](pageText(p, "audioNotes")),
		Status:           pageText(p, "status"),
		LastUpdated:      pageDate(p, "lastUpdated"),
		Priority:         priority,
		Favorite:         pageBool(p, "favorite"),
		LastEdited:       p.LastEditedTime,
	}
}

// DecodeNodePath translates a remote page into a NodePath record. The
// derived identifier is reconstructed from its components when both are
// present, keeping the {pathId}_{nodeId} invariant even if the stored id
// property drifted.
func DecodeNodePath(p Page) domain.NodePath {
	pathID := pageText(p, "pathId")
	nodeID := pageText(p, "nodeId")
	id := pageText(p, "id")
	if pathID != "" && nodeID != "" {
		id = domain.NodePathID(pathID, nodeID)
	} else if id == "" {
		id = p.ID
	}
	return domain.NodePath{
		ID:         id,
		PathID:     pathID,
		NodeID:     nodeID,
		Content:    pageText(p, "content", "notes"),
		AudioNotes: decodeJSONList[domain.AudioNote](pageText(p, "audioNotes")),
		LastEdited: p.LastEditedTime,
	}
}

// DecodeCategory translates a remote page into a Category record.
func DecodeCategory(p Page) domain.Category {
	id := stripLeadingQuote(pageText(p, "id"))
	if id == "" {
		id = p.ID
	}
	return domain.Category{
		ID:       id,
		Name:     stripLeadingQuote(pageText(p, "name", "Name")),
		ParentID: pageText(p, "parentId"),
		PageID:   p.ID,
	}
}

// EncodePath builds the full property set for creating a Path page.
func EncodePath(p domain.Path) map[string]any {
	props := map[string]any{
		"Name":    titleValue(p.Name),
		"id":      richTextValue(p.ID),
		"nodeIds": richTextValue(joinIDList(p.NodeIDs)),
	}
	if p.CategoryID != "" {
		props["categoryId"] = richTextValue(p.CategoryID)
	}
	if p.SubCategoryID != "" {
		props["subcategoryId"] = richTextValue(p.SubCategoryID)
	}
	if p.SubSubCategoryID != "" {
		props["subsubcategoryId"] = richTextValue(p.SubSubCategoryID)
	}
	if p.Notes != "" {
		props["notes"] = richTextValue(p.Notes)
	}
	if len(p.AudioNotes) > 0 {
		props["audioNotes"] = richTextValue(encodeJSONList(p.AudioNotes))
	}
	if p.Status != "" {
		props["status"] = richTextValue(p.Status)
	}
	if p.LastUpdated != "" {
		props["lastUpdated"] = dateValue(p.LastUpdated)
	}
	if p.Priority != nil {
		props["priority"] = numberValue(float64(*p.Priority))
	}
	if p.Favorite {
		props["favorite"] = checkboxValue(true)
	}
	return props
}

// EncodePathUpdate builds a sparse property set containing only the fields
// present in the partial update. Absent fields are never sent, so remote
// values the caller did not touch are preserved.
func EncodePathUpdate(u domain.PathUpdate) map[string]any {
	props := map[string]any{}
	if u.Name != nil {
		props["Name"] = titleValue(*u.Name)
	}
	if u.NodeIDs != nil {
		props["nodeIds"] = richTextValue(joinIDList(*u.NodeIDs))
	}
	if u.CategoryID != nil {
		props["categoryId"] = richTextValue(*u.CategoryID)
	}
	if u.SubCategoryID != nil {
		props["subcategoryId"] = richTextValue(*u.SubCategoryID)
	}
	if u.SubSubCategoryID != nil {
		props["subsubcategoryId"] = richTextValue(*u.SubSubCategoryID)
	}
	if u.Notes != nil {
		props["notes"] = richTextValue(*u.Notes)
	}
	if u.AudioNotes != nil {
		props["audioNotes"] = richTextValue(encodeJSONList(*u.AudioNotes))
	}
	if u.Status != nil {
		props["status"] = richTextValue(*u.Status)
	}
	if u.LastUpdated != nil {
		props["lastUpdated"] = dateValue(*u.LastUpdated)
	}
	if u.Priority != nil {
		props["priority"] = numberValue(float64(*u.Priority))
	}
	if u.Favorite != nil {
		props["favorite"] = checkboxValue(*u.Favorite)
	}
	return props
}

// EncodeNodePath builds the full property set for creating or replacing a
// NodePath page. The id property always carries the derived identifier.
func EncodeNodePath(np domain.NodePath) map[string]any {
	props := map[string]any{
		"Name":    titleValue(domain.NodePathID(np.PathID, np.NodeID)),
		"id":      richTextValue(domain.NodePathID(np.PathID, np.NodeID)),
		"pathId":  richTextValue(np.PathID),
		"nodeId":  richTextValue(np.NodeID),
		"content": richTextValue(np.Content),
	}
	if len(np.AudioNotes) > 0 {
		props["audioNotes"] = richTextValue(encodeJSONList(np.AudioNotes))
	}
	return props
}

// EncodeNodePathUpdate builds a sparse update for an existing NodePath.
func EncodeNodePathUpdate(content *string, audioNotes *[]domain.AudioNote) map[string]any {
	props := map[string]any{}
	if content != nil {
		props["content"] = richTextValue(*content)
	}
	if audioNotes != nil {
		props["audioNotes"] = richTextValue(encodeJSONList(*audioNotes))
	}
	return props
}

// EncodeCategory builds the full property set for creating a Category page.
func EncodeCategory(c domain.Category) map[string]any {
	props := map[string]any{
		"Name": titleValue(c.Name),
		"id":   richTextValue(c.ID),
	}
	if c.ParentID != "" {
		props["parentId"] = richTextValue(c.ParentID)
	}
	return props
}

// EncodeCategoryUpdate builds a sparse update for an existing Category.
func EncodeCategoryUpdate(name, parentID *string) map[string]any {
	props := map[string]any{}
	if name != nil {
		props["Name"] = titleValue(*name)
	}
	if parentID != nil {
		props["parentId"] = richTextValue(*parentID)
	}
	return props
}
