package crawler

import (
	"errors"
	"fmt"
)

// ErrInvalidBounds indicates a crawl was requested without usable depth or fan-out limits.
var ErrInvalidBounds = errors.New("invalid crawl bounds")

// Kind classifies a Fragment.
type Kind string

const (
	// KindHTML is text extracted from a rendered page.
	KindHTML Kind = "html"
	// KindPDF is text extracted from a PDF document.
	KindPDF Kind = "pdf"
	// KindError records a node whose fetch or extraction failed.
	KindError Kind = "error"
	// KindSkipped marks a node that was not fetched: already visited or past MaxDepth.
	KindSkipped Kind = "skipped"
)

// Target is one seed of a batch.
type Target struct {
	URL         string
	MaxDepth    int
	FollowLinks bool
}

// Node is a URL under consideration at a depth. Seeds start at depth 1.
type Node struct {
	URL   string
	Depth int
}

// Bounds limits a recursive crawl. Both values are required on every call.
type Bounds struct {
	MaxDepth int
	FanOut   int
}

// Validate rejects non-positive limits.
func (b Bounds) Validate() error {
	if b.MaxDepth < 1 {
		return fmt.Errorf("%w: max depth %d", ErrInvalidBounds, b.MaxDepth)
	}
	if b.FanOut < 1 {
		return fmt.Errorf("%w: fan-out %d", ErrInvalidBounds, b.FanOut)
	}
	return nil
}

// Fragment is the typed result of crawling one node. Failures keep their error;
// display strings are produced only when the corpus is assembled.
type Fragment struct {
	URL      string
	Kind     Kind
	Text     string
	Depth    int
	Err      error
	Children []Fragment
}

// Failed reports whether the fragment records an error.
func (f Fragment) Failed() bool {
	return f.Kind == KindError
}

// Stats are the batch counters reported to callers.
type Stats struct {
	SourcesProcessed int `json:"sources_processed"`
	TotalVisited     int `json:"total_visited"`
}

// SourceResult summarizes what one seed contributed.
type SourceResult struct {
	URL      string `json:"url"`
	Kind     Kind   `json:"kind"`
	Chars    int    `json:"chars"`
	Subpages int    `json:"subpages"`
	Error    string `json:"error,omitempty"`
}

// Result is the outcome of a batch.
type Result struct {
	Corpus  string
	Sources []SourceResult
	Stats   Stats
}
