// Package extract pulls readable text and links out of rendered or raw HTML.
//
// The same noise and content selector lists drive two paths: MainTextScript is
// evaluated inside a live browser tab, while FromHTML applies the identical
// algorithm to raw markup with goquery.
package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MinContentChars is the trimmed length below which the main-content result is
// considered a miss and the whole-document fallback is used.
const MinContentChars = 100

// NoiseSelectors are removed before content selection.
var NoiseSelectors = []string{
	"script", "style", "noscript",
	"nav", "header", "footer", "aside",
	".ad", ".advertisement", ".sidebar",
}

// ContentSelectors are tried in order; the first present element wins.
var ContentSelectors = []string{
	"main", "article", ".content", ".post", ".entry", ".main-content",
}

// Source is a loaded page able to report its main text and raw markup.
type Source interface {
	MainText(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
}

// Text returns the page's main text, falling back to whole-document text when
// the main text is missing or shorter than MinContentChars. It never fails;
// an unreadable page yields an empty string.
func Text(ctx context.Context, src Source) string {
	main, err := src.MainText(ctx)
	if err == nil && len([]rune(strings.TrimSpace(main))) >= MinContentChars {
		return normalizeWhitespace(main)
	}
	raw, rawErr := src.HTML(ctx)
	if rawErr != nil {
		if err == nil {
			return normalizeWhitespace(main)
		}
		return ""
	}
	return FullText(raw)
}

// FromHTML removes noise and returns the text of the first matching content
// selector, or of the body when none match.
func FromHTML(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	for _, sel := range NoiseSelectors {
		doc.Find(sel).Remove()
	}
	for _, sel := range ContentSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			return selectionText(found.First())
		}
	}
	return selectionText(doc.Find("body").First())
}

// FullText is the simpler whole-document extraction used as a fallback. Only
// executable and style content is dropped.
func FullText(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()
	return selectionText(doc.Selection)
}

func selectionText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		collectText(&b, n)
	}
	return normalizeWhitespace(b.String())
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "dd": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// collectText approximates innerText: block elements start new lines.
func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		name := strings.ToLower(n.Data)
		if name == "br" {
			b.WriteString("\n")
			return
		}
		if blockElements[name] {
			b.WriteString("\n")
			defer b.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

// normalizeWhitespace collapses runs of spaces within lines and drops blank lines.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 {
			out = append(out, strings.Join(fields, " "))
		}
	}
	return strings.Join(out, "\n")
}
