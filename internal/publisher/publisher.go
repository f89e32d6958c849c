// Package publisher announces finished bulletins to downstream consumers.
package publisher

import (
	"context"
	"strconv"
	"time"
)

// EventBulletinCompleted is the event_type attribute of completion messages.
const EventBulletinCompleted = "bulletin.completed"

// Publisher sends a JSON payload to a topic and returns the message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Attributer lets a payload contribute message attributes.
type Attributer interface {
	Attributes() map[string]string
}

// BulletinCompleted is published after a bulletin has been archived.
type BulletinCompleted struct {
	BatchID          string    `json:"batch_id"`
	Region           string    `json:"region"`
	URLs             []string  `json:"urls"`
	SourcesProcessed int       `json:"sources_processed"`
	TotalVisited     int       `json:"urls_analyzed"`
	CorpusChars      int       `json:"corpus_chars"`
	CorpusURI        string    `json:"corpus_uri,omitempty"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Attributes exposes routing fields without decoding the body.
func (e BulletinCompleted) Attributes() map[string]string {
	return map[string]string{
		"event_type":    EventBulletinCompleted,
		"batch_id":      e.BatchID,
		"region":        e.Region,
		"urls_analyzed": strconv.Itoa(e.TotalVisited),
	}
}
