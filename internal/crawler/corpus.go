package crawler

import (
	"fmt"
	"strings"
)

// Limits are the character caps applied while assembling the corpus.
type Limits struct {
	SubLinkChars int
	SourceChars  int
	CorpusChars  int
}

// DefaultLimits mirror the payload budget of the summarizer.
var DefaultLimits = Limits{SubLinkChars: 1000, SourceChars: 4000, CorpusChars: 12000}

// Truncate returns at most n characters of s without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Render is the display text of a fragment tree. Children are labeled and
// each is capped at subCap characters; skipped nodes contribute nothing.
func (f Fragment) Render(subCap int) string {
	switch f.Kind {
	case KindSkipped:
		return ""
	case KindError:
		return fmt.Sprintf("Error processing %s: %v", f.URL, f.Err)
	case KindPDF:
		return fmt.Sprintf("PDF Content from %s:\n%s", f.URL, f.Text)
	}

	var b strings.Builder
	b.WriteString(f.Text)
	for _, child := range f.Children {
		text := child.Render(subCap)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\nSubpage: %s\n%s", child.URL, Truncate(text, subCap))
	}
	return b.String()
}

// sourceBlock renders a seed's fragment as its corpus entry, capping the
// fragment body at limits.SourceChars.
func sourceBlock(f Fragment, limits Limits) string {
	switch f.Kind {
	case KindSkipped:
		return ""
	case KindError:
		return fmt.Sprintf("Source: %s\n%s\n", f.URL, f.Render(limits.SubLinkChars))
	case KindPDF:
		return fmt.Sprintf("Source: %s (PDF)\n%s\n", f.URL, Truncate(f.Text, limits.SourceChars))
	default:
		return fmt.Sprintf("Source: %s\n%s\n", f.URL, Truncate(f.Render(limits.SubLinkChars), limits.SourceChars))
	}
}

// Assemble joins seed fragments into the corpus and applies the overall cap.
func Assemble(seeds []Fragment, limits Limits) string {
	blocks := make([]string, 0, len(seeds))
	for _, f := range seeds {
		if block := sourceBlock(f, limits); block != "" {
			blocks = append(blocks, block)
		}
	}
	return Truncate(strings.Join(blocks, "\n"), limits.CorpusChars)
}
