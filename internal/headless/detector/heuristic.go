// Package detector decides when a statically fetched page needs a headless
// browser, and provides a Renderer that promotes such pages automatically.
package detector

import (
	"strings"
)

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = []string{
	"__next",
	`id="root"`,
	`id="app"`,
	"data-reactroot",
	"ng-version",
}

// ShouldPromote decides whether html, as served without JavaScript, is a
// shell that only a browser would fill in.
func (h *Heuristic) ShouldPromote(html string) bool {
	if strings.TrimSpace(html) == "" {
		return true
	}
	lower := strings.ToLower(html)
	if len(lower) < h.BodyLengthThreshold && scriptDensityHigh(lower) {
		return true
	}
	for _, marker := range spaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script elements cover at least a quarter
// of the lowercased document.
func scriptDensityHigh(lower string) bool {
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	return scriptCoverage*100/total >= 25
}
