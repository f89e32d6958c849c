package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeURL standardizes a URL for visited-set keys. It lowercases the
// scheme and host, drops default ports and fragments, gives empty paths a
// slash, and sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.Host != "" && u.Path == "" {
		u.Path = "/"
	}
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	return u.String(), nil
}

func sameHost(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}

// sameSite compares registrable domains (eTLD+1), so news.example.org and
// www.example.org match while example.org and example.com do not.
func sameSite(a, b *url.URL) bool {
	if sameHost(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	da, errA := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(a.Hostname()))
	db, errB := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(b.Hostname()))
	if errA != nil || errB != nil {
		return false
	}
	return da == db
}
