// Package summarize turns an aggregated crawl corpus into a regional drought
// analysis using an OpenAI-compatible chat model.
package summarize

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// DevKey is the API key value that switches the service into development
// mode: analyses are canned and no model is called.
const DevKey = "story"

// ErrEmptyResponse indicates the model returned no choices.
var ErrEmptyResponse = errors.New("summarizer returned no choices")

// Request is one summarization call.
type Request struct {
	System string
	User   string
	// MaxTokens overrides the summarizer's default when positive.
	MaxTokens int
}

// Summarizer produces an analysis from a prepared prompt pair.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// ChatClient is the subset of *openai.Client used here. Tests and alternative
// OpenAI-compatible backends implement it directly.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}
