package summarize

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

type chatResult struct {
	text string
	err  error
	none bool
}

type fakeChat struct {
	mu       sync.Mutex
	results  []chatResult
	requests []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(
	_ context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	if idx >= len(f.results) {
		return openai.ChatCompletionResponse{}, errors.New("unexpected call")
	}
	res := f.results[idx]
	if res.err != nil {
		return openai.ChatCompletionResponse{}, res.err
	}
	if res.none {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: res.text}}},
	}, nil
}

func newTestSummarizer(client ChatClient, retries int) *OpenAI {
	s := NewWithClient(client, Options{MaxRetries: retries})
	s.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return s
}

func TestSummarizeSendsPromptPair(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{results: []chatResult{{text: "  Current Drought Conditions: dry.  "}}}
	s := newTestSummarizer(chat, 2)

	out, err := s.Summarize(context.Background(), Request{System: "sys", User: "corpus"})
	require.NoError(t, err)
	require.Equal(t, "Current Drought Conditions: dry.", out)

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	require.Equal(t, DefaultModel, req.Model)
	require.Equal(t, DefaultMaxTokens, req.MaxTokens)
	require.InDelta(t, DefaultTemperature, req.Temperature, 0.0001)
	require.Len(t, req.Messages, 2)
	require.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	require.Equal(t, "sys", req.Messages[0].Content)
	require.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
	require.Equal(t, "corpus", req.Messages[1].Content)
}

func TestSummarizeRequestMaxTokensOverride(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{results: []chatResult{{text: "ok"}}}
	s := newTestSummarizer(chat, 0)

	_, err := s.Summarize(context.Background(), Request{User: "x", MaxTokens: 42})
	require.NoError(t, err)
	require.Equal(t, 42, chat.requests[0].MaxTokens)
}

func TestSummarizeRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{results: []chatResult{
		{err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}},
		{err: &openai.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}},
		{text: "analysis"},
	}}
	s := newTestSummarizer(chat, 3)

	out, err := s.Summarize(context.Background(), Request{User: "x"})
	require.NoError(t, err)
	require.Equal(t, "analysis", out)
	require.Len(t, chat.requests, 3)
}

func TestSummarizeStopsOnClientError(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{results: []chatResult{
		{err: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "invalid key"}},
		{text: "never"},
	}}
	s := newTestSummarizer(chat, 3)

	_, err := s.Summarize(context.Background(), Request{User: "x"})
	require.Error(t, err)
	var apiErr *openai.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Len(t, chat.requests, 1)
}

func TestSummarizeGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	transient := &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable, Message: "down"}
	chat := &fakeChat{results: []chatResult{{err: transient}, {err: transient}, {err: transient}}}
	s := newTestSummarizer(chat, 2)

	_, err := s.Summarize(context.Background(), Request{User: "x"})
	require.Error(t, err)
	require.Len(t, chat.requests, 3)
}

func TestSummarizeEmptyChoices(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{results: []chatResult{{none: true}, {text: "never"}}}
	s := newTestSummarizer(chat, 3)

	_, err := s.Summarize(context.Background(), Request{User: "x"})
	require.ErrorIs(t, err, ErrEmptyResponse)
	require.Len(t, chat.requests, 1)
}

func TestPingUsesTinyCompletion(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{results: []chatResult{{text: "Hi"}}}
	s := newTestSummarizer(chat, 0)

	require.NoError(t, s.Ping(context.Background()))
	require.Equal(t, pingMaxTokens, chat.requests[0].MaxTokens)
	require.Equal(t, "Hello", chat.requests[0].Messages[0].Content)
}

func TestPingReportsInvalidKey(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{results: []chatResult{
		{err: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "Incorrect API key provided"}},
	}}
	s := newTestSummarizer(chat, 0)

	err := s.Ping(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "Incorrect API key")
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	require.True(t, isRetryable(errors.New("connection reset")))
	require.True(t, isRetryable(&openai.APIError{HTTPStatusCode: http.StatusInternalServerError}))
	require.False(t, isRetryable(&openai.APIError{HTTPStatusCode: http.StatusBadRequest}))
	require.False(t, isRetryable(context.Canceled))
}

func TestMockHonorsDelayAndContext(t *testing.T) {
	t.Parallel()

	out, err := Mock{}.Summarize(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, MockAnalysis, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Mock{Delay: time.Hour}.Summarize(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)
}
