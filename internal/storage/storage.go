// Package storage defines the persistence seams of the bulletin service:
// corpus artifacts, operator settings, and the bulletin archive. Backends live
// in the memory, local, gcs and postgres subpackages.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// DefaultHistoryLimit is how many URL history entries are retained.
const DefaultHistoryLimit = 10

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BlobStore persists artifacts such as the aggregated corpus and returns a
// backend-specific URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// HistoryEntry is one submitted batch remembered for the UI.
type HistoryEntry struct {
	URLs         []string  `json:"urls"`
	Region       string    `json:"region"`
	CustomPrompt string    `json:"custom_prompt"`
	Timestamp    time.Time `json:"timestamp"`
}

// SettingsStore keeps operator settings between restarts. Load methods return
// an empty value, not an error, when nothing has been saved.
type SettingsStore interface {
	SaveAPIKey(ctx context.Context, key string) error
	LoadAPIKey(ctx context.Context) (string, error)
	ClearAPIKey(ctx context.Context) error

	SaveSystemPrompt(ctx context.Context, prompt string) error
	LoadSystemPrompt(ctx context.Context) (string, error)

	// SaveURLs appends an entry, keeping only the newest history entries.
	SaveURLs(ctx context.Context, entry HistoryEntry) error
	// RecentURLs returns up to limit newest entries, oldest first.
	RecentURLs(ctx context.Context, limit int) ([]HistoryEntry, error)
	// RecentPrompt returns the custom prompt of the newest entry.
	RecentPrompt(ctx context.Context) (string, error)
}

// Bulletin is an archived analysis.
type Bulletin struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Region           string    `json:"region"`
	URLs             []string  `json:"urls"`
	FollowLinks      bool      `json:"follow_links"`
	MaxDepth         int       `json:"max_depth"`
	SourcesProcessed int       `json:"sources_processed"`
	TotalVisited     int       `json:"urls_analyzed"`
	CorpusChars      int       `json:"corpus_chars"`
	CorpusHash       string    `json:"corpus_hash"`
	CorpusURI        string    `json:"corpus_uri,omitempty"`
	Analysis         string    `json:"analysis"`
}

// Archive stores finished bulletins.
type Archive interface {
	SaveBulletin(ctx context.Context, b Bulletin) error
	GetBulletin(ctx context.Context, id string) (Bulletin, error)
	// ListBulletins returns up to limit bulletins, newest first.
	ListBulletins(ctx context.Context, limit int) ([]Bulletin, error)
}

// AppendHistory adds entry and trims to the newest limit entries.
func AppendHistory(entries []HistoryEntry, entry HistoryEntry, limit int) []HistoryEntry {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	entry.URLs = append([]string(nil), entry.URLs...)
	out := append(entries, entry)
	if len(out) > limit {
		out = append([]HistoryEntry(nil), out[len(out)-limit:]...)
	}
	return out
}

// Tail returns a copy of the last limit entries. A non-positive limit yields
// every entry.
func Tail(entries []HistoryEntry, limit int) []HistoryEntry {
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]HistoryEntry, limit)
	copy(out, entries[len(entries)-limit:])
	return out
}
