package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Links returns the absolute targets of every anchor in raw, resolved against
// base, in document order. Pseudo-schemes and bare fragments are skipped.
func Links(raw, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if parsed, err := baseURL.Parse(strings.TrimSpace(href)); err == nil {
			baseURL = parsed
		}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
			if strings.HasPrefix(lower, prefix) {
				return
			}
		}
		resolved, err := baseURL.Parse(href)
		if err != nil {
			return
		}
		links = append(links, resolved.String())
	})
	return links
}
