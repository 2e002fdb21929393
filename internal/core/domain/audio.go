package domain

import "encoding/json"

// AudioNote is a voice recording attached to a path or node note. A note is
// either a fresh upload (FileUploadID set, not yet attached remotely) or an
// already-attached file (URL set; the remote download URL expires roughly an
// hour after issuance).
//
// Raw preserves the original remote object verbatim. The remote API rejects
// reconstructed file objects, so re-serialising a decoded note must emit Raw
// unmodified; only brand-new uploads are assembled from struct fields.
type AudioNote struct {
	FileUploadID string  `json:"fileUploadId,omitempty"`
	URL          string  `json:"url,omitempty"`
	Name         string  `json:"name,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	CreatedAt    string  `json:"createdAt,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type audioNoteAlias AudioNote

// MarshalJSON emits the preserved remote object when present, and the
// assembled fields only for new uploads.
func (a AudioNote) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	return json.Marshal(audioNoteAlias(a))
}

// UnmarshalJSON decodes the fields and stashes the original bytes in Raw so
// a later re-save round-trips exactly.
func (a *AudioNote) UnmarshalJSON(data []byte) error {
	var alias audioNoteAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*a = AudioNote(alias)
	a.Raw = append(json.RawMessage(nil), data...)
	return nil
}
