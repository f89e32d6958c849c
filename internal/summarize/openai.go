package summarize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/metrics"
)

// Defaults match the analysis the service has always produced.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 1500
	DefaultTemperature = float32(0.3)
	pingMaxTokens      = 5
)

// Options configures an OpenAI summarizer.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	MaxRetries  int
	Timeout     time.Duration
	Logger      *zap.Logger
}

// OpenAI calls the chat completions API with bounded exponential retry.
type OpenAI struct {
	client      ChatClient
	model       string
	maxTokens   int
	temperature float32
	maxRetries  int
	timeout     time.Duration
	logger      *zap.Logger
	newBackOff  func() backoff.BackOff
}

// NewOpenAI builds a summarizer backed by the go-openai client.
func NewOpenAI(opts Options) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return NewWithClient(openai.NewClientWithConfig(cfg), opts)
}

// NewWithClient wires an arbitrary ChatClient.
func NewWithClient(client ChatClient, opts Options) *OpenAI {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &OpenAI{
		client:      client,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		maxRetries:  opts.MaxRetries,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		newBackOff:  defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 8 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Summarize sends the system and user prompts and returns the trimmed reply.
func (s *OpenAI) Summarize(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}
	chatReq := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		MaxTokens:   maxTokens,
		Temperature: s.temperature,
	}

	var out string
	op := func() error {
		text, err := s.complete(ctx, chatReq)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = text
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.maxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("chat completion failed, retrying", zap.Error(err), zap.Duration("backoff", wait))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		metrics.ObserveSummarizer("error")
		return "", fmt.Errorf("chat completion: %w", err)
	}
	metrics.ObserveSummarizer("ok")
	return out, nil
}

// Ping issues the smallest possible completion to prove the key works.
func (s *OpenAI) Ping(ctx context.Context) error {
	_, err := s.complete(ctx, openai.ChatCompletionRequest{
		Model:     s.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "Hello"}},
		MaxTokens: pingMaxTokens,
	})
	if err != nil && !errors.Is(err, ErrEmptyResponse) {
		return fmt.Errorf("validate api key: %w", err)
	}
	return nil
}

func (s *OpenAI) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// isRetryable treats rate limiting, server errors and transport failures as
// transient. Client errors such as a bad key are final.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyResponse) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
