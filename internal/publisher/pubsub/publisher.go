// Package pubsub implements a Google Cloud Pub/Sub publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"

	"github.com/Menenkel/aibulletin/internal/publisher"
)

// Publisher wraps a Pub/Sub publisher client.
type Publisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

// Open connects to projectID and publishes to topicID.
func Open(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*Publisher, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Publisher{client: client, publisher: client.Publisher(topicID)}, nil
}

// New creates a Publisher for the provided topic publisher.
func New(p *pubsub.Publisher) *Publisher {
	return &Publisher{publisher: p}
}

// Publish marshals the payload to JSON and publishes it, waiting for the
// server-assigned id. The topic argument is fixed at construction.
func (p *Publisher) Publish(ctx context.Context, _ string, payload any) (string, error) {
	if p == nil || p.publisher == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data}
	if a, ok := payload.(publisher.Attributer); ok {
		msg.Attributes = a.Attributes()
	}

	result := p.publisher.Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	if p == nil || p.publisher == nil {
		return nil
	}
	p.publisher.Stop()
	if p.client == nil {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
