package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Scope restricts which discovered links may be followed.
type Scope string

const (
	// ScopeSameHost follows links whose host equals the page's host.
	ScopeSameHost Scope = "same-host"
	// ScopeSameSite follows links sharing the page's registrable domain.
	ScopeSameSite Scope = "same-site"
	// ScopeAny follows any http(s) link.
	ScopeAny Scope = "any"
)

// ParseScope validates a configured scope name.
func ParseScope(raw string) (Scope, error) {
	switch s := Scope(strings.ToLower(strings.TrimSpace(raw))); s {
	case ScopeSameHost, ScopeSameSite, ScopeAny:
		return s, nil
	case "":
		return ScopeSameHost, nil
	default:
		return "", fmt.Errorf("unknown link scope %q", raw)
	}
}

// LinkFilter selects the sub-links worth following from a page.
type LinkFilter struct {
	Scope      Scope
	MaxPerPage int
}

// Candidates returns links in discovery order, minus non-http(s), unparsable,
// already-visited, repeated, and out-of-scope entries, truncated to MaxPerPage.
// It never touches the network.
func (f LinkFilter) Candidates(pageURL string, links []string, visited *VisitedSet) []string {
	if f.MaxPerPage <= 0 || len(links) == 0 {
		return nil
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	out := make([]string, 0, min(len(links), f.MaxPerPage))
	seen := make(map[string]struct{}, len(links))
	for _, raw := range links {
		link, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || link.Host == "" {
			continue
		}
		if link.Scheme != "http" && link.Scheme != "https" {
			continue
		}
		link.Fragment = ""
		link.RawFragment = ""
		candidate := link.String()

		key := visitKey(candidate)
		if _, dup := seen[key]; dup {
			continue
		}
		if visited != nil && visited.Has(candidate) {
			continue
		}
		if !f.inScope(page, link) {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, candidate)
		if len(out) == f.MaxPerPage {
			break
		}
	}
	return out
}

func (f LinkFilter) inScope(page, link *url.URL) bool {
	switch f.Scope {
	case ScopeAny:
		return true
	case ScopeSameSite:
		return sameSite(page, link)
	default:
		return sameHost(page, link)
	}
}
