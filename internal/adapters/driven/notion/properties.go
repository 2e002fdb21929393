package notion

import (
	"strings"
	"time"
)

// TextChunkLimit is the remote API's maximum length for one rich-text block.
// Longer values must be split into sequential chunks.
const TextChunkLimit = 2000

// Page is the remote document: an id plus a bag of typed properties.
type Page struct {
	ID             string              `json:"id"`
	Archived       bool                `json:"archived,omitempty"`
	LastEditedTime time.Time           `json:"last_edited_time,omitempty"`
	Properties     map[string]Property `json:"properties"`
}

// Property is one typed value from a page's property bag. Only the payload
// matching Type is populated; the rest stay zero. An unknown Type decodes to
// a Property with all payloads empty, which every reader treats as absent.
type Property struct {
	Type           string        `json:"type,omitempty"`
	Title          []RichText    `json:"title,omitempty"`
	RichText       []RichText    `json:"rich_text,omitempty"`
	Checkbox       *bool         `json:"checkbox,omitempty"`
	Number         *float64      `json:"number,omitempty"`
	Date           *Date         `json:"date,omitempty"`
	Select         *SelectOption `json:"select,omitempty"`
	URL            *string       `json:"url,omitempty"`
	LastEditedTime *time.Time    `json:"last_edited_time,omitempty"`
}

// RichText is one block of a title or rich_text property.
type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

// TextContent is the writable part of a rich-text block.
type TextContent struct {
	Content string `json:"content"`
}

// Date is a date property payload; Start is YYYY-MM-DD or RFC 3339.
type Date struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

// SelectOption is a select property payload.
type SelectOption struct {
	Name string `json:"name"`
}

// text flattens a title or rich_text payload to a plain string. Returns
// ("", false) when the property holds neither, so callers can try the next
// candidate name.
func (p Property) text() (string, bool) {
	var blocks []RichText
	switch {
	case len(p.Title) > 0 || p.Type == "title":
		blocks = p.Title
	case len(p.RichText) > 0 || p.Type == "rich_text":
		blocks = p.RichText
	default:
		return "", false
	}
	var b strings.Builder
	for _, rt := range blocks {
		if rt.PlainText != "" {
			b.WriteString(rt.PlainText)
		} else if rt.Text != nil {
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String(), true
}

// chunkText splits s into sequential chunks of at most limit characters.
// The remote limit counts characters, not bytes, and cutting by bytes would
// tear a multi-byte rune at the boundary. Order is preserved so the chunks
// concatenate back to s.
func chunkText(s string, limit int) []RichText {
	if s == "" {
		return []RichText{}
	}
	runes := []rune(s)
	chunks := make([]RichText, 0, (len(runes)+limit-1)/limit)
	for len(runes) > limit {
		chunks = append(chunks, RichText{Text: &TextContent{Content: string(runes[:limit])}})
		runes = runes[limit:]
	}
	return append(chunks, RichText{Text: &TextContent{Content: string(runes)}})
}

// Value builders for sparse property updates. Builders return the JSON shape
// the remote API expects for one property; empty strings still produce an
// explicit empty block list so a field can be cleared.

func titleValue(s string) map[string]any {
	return map[string]any{"title": chunkText(s, TextChunkLimit)}
}

func richTextValue(s string) map[string]any {
	return map[string]any{"rich_text": chunkText(s, TextChunkLimit)}
}

func checkboxValue(b bool) map[string]any {
	return map[string]any{"checkbox": b}
}

func numberValue(f float64) map[string]any {
	return map[string]any{"number": f}
}

func dateValue(start string) map[string]any {
	if start == "" {
		return map[string]any{"date": nil}
	}
	return map[string]any{"date": map[string]any{"start": start}}
}
