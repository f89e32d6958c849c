package bulletin

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Menenkel/aibulletin/internal/clock"
	"github.com/Menenkel/aibulletin/internal/crawler"
	"github.com/Menenkel/aibulletin/internal/id"
	"github.com/Menenkel/aibulletin/internal/publisher"
	pubmemory "github.com/Menenkel/aibulletin/internal/publisher/memory"
	"github.com/Menenkel/aibulletin/internal/regions"
	"github.com/Menenkel/aibulletin/internal/storage"
	"github.com/Menenkel/aibulletin/internal/storage/memory"
	"github.com/Menenkel/aibulletin/internal/summarize"
)

type fakeCrawler struct {
	mu     sync.Mutex
	calls  int
	urls   []string
	follow bool
	depth  int
	result crawler.Result
	err    error
}

func (f *fakeCrawler) CrawlAndAggregate(_ context.Context, urls []string, followLinks bool, maxDepth int) (crawler.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.urls = append([]string(nil), urls...)
	f.follow = followLinks
	f.depth = maxDepth
	return f.result, f.err
}

type fakeSummarizer struct {
	mu   sync.Mutex
	keys []string
	reqs []summarize.Request
	out  string
	err  error
}

func (f *fakeSummarizer) factory(key string) summarize.Summarizer {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	return f
}

func (f *fakeSummarizer) Summarize(_ context.Context, req summarize.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

type fixture struct {
	svc       *Service
	crawler   *fakeCrawler
	summ      *fakeSummarizer
	settings  *memory.SettingsStore
	blobs     *memory.BlobStore
	archive   *memory.Archive
	publisher *pubmemory.Publisher
	keys      *KeyManager
}

var testNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, key string) *fixture {
	t.Helper()
	f := &fixture{
		crawler: &fakeCrawler{result: crawler.Result{
			Corpus: "Source: https://example.org/\nRainfall deficits persist.\n",
			Sources: []crawler.SourceResult{
				{URL: "https://example.org/", Kind: crawler.KindHTML, Chars: 42, Subpages: 2},
			},
			Stats: crawler.Stats{SourcesProcessed: 1, TotalVisited: 3},
		}},
		summ:      &fakeSummarizer{out: "Current Drought Conditions: severe."},
		settings:  memory.NewSettingsStore(storage.DefaultHistoryLimit),
		blobs:     memory.NewBlobStore(),
		archive:   memory.NewArchive(),
		publisher: pubmemory.New(),
	}
	f.keys = NewKeyManager(f.settings, nil, nil)
	if key != "" {
		_, err := f.keys.Load(context.Background(), key)
		require.NoError(t, err)
	}
	f.svc = NewService(Options{
		Crawler:       f.crawler,
		Keys:          f.keys,
		Settings:      f.settings,
		Regions:       regions.Default(),
		NewSummarizer: f.summ.factory,
		Blobs:         f.blobs,
		Archive:       f.archive,
		Publisher:     f.publisher,
		Topic:         "bulletins",
		IDs:           &id.Sequence{Prefix: "batch"},
		Clock:         clock.Fixed{T: testNow},
	})
	return f
}

func TestAnalyze_RequiresKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	_, err := f.svc.Analyze(context.Background(), Request{URLs: []string{"https://example.org"}})
	require.ErrorIs(t, err, ErrNoAPIKey)
	require.Zero(t, f.crawler.calls)
}

func TestAnalyze_RequiresURLs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "sk-test")
	_, err := f.svc.Analyze(context.Background(), Request{URLs: []string{"  ", ""}})
	require.ErrorIs(t, err, ErrNoURLs)
	require.Zero(t, f.crawler.calls)
}

func TestAnalyze_DevKeyReturnsMock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, summarize.DevKey)
	resp, err := f.svc.Analyze(context.Background(), Request{
		URLs:        []string{"https://a.example", "https://b.example"},
		FollowLinks: true,
	})
	require.NoError(t, err)
	require.Equal(t, summarize.MockAnalysis, resp.Analysis)
	require.Equal(t, 2, resp.URLsAnalyzed)
	require.True(t, resp.FollowedLinks)
	require.Zero(t, f.crawler.calls)
	require.Empty(t, f.summ.keys)

	history, err := f.settings.RecentURLs(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestAnalyze_FullPipeline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "sk-test")
	ctx := context.Background()
	resp, err := f.svc.Analyze(ctx, Request{
		URLs:         []string{" https://example.org/ "},
		CustomPrompt: "",
		Region:       "South Asia",
		FollowLinks:  true,
		MaxDepth:     3,
	})
	require.NoError(t, err)

	require.Equal(t, "Current Drought Conditions: severe.", resp.Analysis)
	require.Equal(t, 3, resp.URLsAnalyzed)
	require.Equal(t, 1, resp.SourcesProcessed)
	require.True(t, resp.PDFSupport)
	require.Equal(t, "batch-1", resp.BatchID)
	require.Equal(t, "memory://batch-1.txt", resp.CorpusURI)
	require.Len(t, resp.Sources, 1)

	require.Equal(t, []string{"https://example.org/"}, f.crawler.urls)
	require.True(t, f.crawler.follow)
	require.Equal(t, 3, f.crawler.depth)

	require.Equal(t, []string{"sk-test"}, f.summ.keys)
	require.Len(t, f.summ.reqs, 1)
	sent := f.summ.reqs[0]
	require.Contains(t, sent.System, "South Asia region")
	require.True(t, strings.HasSuffix(sent.System, SectionOrderInstruction))
	require.True(t, strings.HasPrefix(sent.User, "Please analyze all the following content sources"))
	require.Contains(t, sent.User, "Rainfall deficits persist.")

	stored, ok := f.blobs.Object("batch-1.txt")
	require.True(t, ok)
	require.Equal(t, f.crawler.result.Corpus, string(stored))

	history, err := f.settings.RecentURLs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "South Asia", history[0].Region)
	require.Equal(t, testNow, history[0].Timestamp)

	archived, err := f.archive.GetBulletin(ctx, "batch-1")
	require.NoError(t, err)
	require.Equal(t, 3, archived.TotalVisited)
	require.Equal(t, 3, archived.MaxDepth)
	require.Len(t, archived.CorpusHash, 64)
	require.Equal(t, resp.Analysis, archived.Analysis)

	msgs := f.publisher.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "bulletins", msgs[0].Topic)
	event, ok := msgs[0].Payload.(publisher.BulletinCompleted)
	require.True(t, ok)
	require.Equal(t, "batch-1", event.BatchID)
	require.Equal(t, publisher.EventBulletinCompleted, msgs[0].Attributes["event_type"])
}

func TestAnalyze_DefaultsRegionAndDepth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "sk-test")
	resp, err := f.svc.Analyze(context.Background(), Request{URLs: []string{"https://example.org"}})
	require.NoError(t, err)
	require.Equal(t, regions.GlobalOverview, resp.Region)
	require.Equal(t, 2, f.crawler.depth)
	require.False(t, f.crawler.follow)
	require.Contains(t, f.summ.reqs[0].System, "all countries worldwide")
}

func TestAnalyze_CustomPromptKeepsSectionInstruction(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "sk-test")
	_, err := f.svc.Analyze(context.Background(), Request{
		URLs:         []string{"https://example.org"},
		CustomPrompt: "Focus on pastoralists.",
	})
	require.NoError(t, err)
	system := f.summ.reqs[0].System
	require.Contains(t, system, "User's specific request: Focus on pastoralists.")
	require.True(t, strings.HasSuffix(system, SectionOrderInstruction))
}

func TestAnalyze_SummarizerFailureBecomesAnalysis(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "sk-test")
	f.summ.err = errors.New("rate limited")
	resp, err := f.svc.Analyze(context.Background(), Request{URLs: []string{"https://example.org"}})
	require.NoError(t, err)
	require.Equal(t, "Error generating analysis: rate limited", resp.Analysis)

	list, err := f.archive.ListBulletins(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, list)
	require.Empty(t, f.publisher.Messages())
}

func TestAnalyze_CrawlErrorPropagates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "sk-test")
	f.crawler.err = crawler.ErrInvalidBounds
	_, err := f.svc.Analyze(context.Background(), Request{URLs: []string{"https://example.org"}})
	require.ErrorIs(t, err, crawler.ErrInvalidBounds)
	require.Empty(t, f.summ.reqs)
}

func TestAnalyze_OptionalSinksMayBeNil(t *testing.T) {
	t.Parallel()

	keys := NewKeyManager(nil, nil, nil)
	_, err := keys.Set(context.Background(), "sk-test")
	require.NoError(t, err)
	summ := &fakeSummarizer{out: "ok"}
	svc := NewService(Options{
		Crawler:       &fakeCrawler{result: crawler.Result{Corpus: "x", Stats: crawler.Stats{SourcesProcessed: 1, TotalVisited: 1}}},
		Keys:          keys,
		NewSummarizer: summ.factory,
	})
	resp, err := svc.Analyze(context.Background(), Request{URLs: []string{"https://example.org"}})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Analysis)
	require.Empty(t, resp.CorpusURI)
	require.NotEmpty(t, resp.BatchID)
}
