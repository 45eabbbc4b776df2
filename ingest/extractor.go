package ingest

import (
	"context"
	"strings"
)

// Worthiness is the triage verdict on a piece of raw input.
type Worthiness struct {
	WorthRemembering bool     `json:"is_worth_remembering"`
	Reason           string   `json:"reason,omitempty"`
	SuggestedTypes   []string `json:"suggested_types,omitempty"`
}

// Extractor turns raw input into memory drafts. Implementations decide
// what is worth keeping and split compound statements into atomic drafts.
type Extractor interface {
	// CheckWorthiness triages raw text before any extraction work.
	CheckWorthiness(ctx context.Context, text string) (Worthiness, error)

	// Extract produces zero or more drafts from raw text.
	Extract(ctx context.Context, text string) ([]Draft, error)
}

// PassthroughExtractor stores input verbatim as a single draft. It is the
// default when no LLM-backed extractor is configured.
type PassthroughExtractor struct{}

// CheckWorthiness accepts everything that is not blank.
func (PassthroughExtractor) CheckWorthiness(_ context.Context, text string) (Worthiness, error) {
	if strings.TrimSpace(text) == "" {
		return Worthiness{Reason: "empty input"}, nil
	}
	return Worthiness{WorthRemembering: true}, nil
}

// Extract returns the input as one draft.
func (PassthroughExtractor) Extract(_ context.Context, text string) ([]Draft, error) {
	d := PlainText(text)
	if d.Empty() {
		return nil, nil
	}
	return []Draft{d}, nil
}
