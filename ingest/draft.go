package ingest

import (
	"encoding/json"
	"strings"
)

// Draft is one extracted memory candidate before storage. Extraction
// backends return either a bare string or a structured object per item;
// both decode into a Draft.
type Draft struct {
	Content    string   `json:"content"`
	Type       string   `json:"type,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// PlainText builds a draft from raw text with no structure.
func PlainText(content string) Draft {
	return Draft{Content: strings.TrimSpace(content)}
}

// UnmarshalJSON accepts both `"some text"` and `{"content": ...}` forms.
func (d *Draft) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = PlainText(s)
		return nil
	}

	type plain Draft
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.Content = strings.TrimSpace(p.Content)
	*d = Draft(p)
	return nil
}

// Empty reports whether the draft has no usable content.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Content) == ""
}
