// Package bulletin turns a batch of source URLs into a regional drought
// analysis: it crawls, aggregates, summarizes, archives and announces.
package bulletin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/clock"
	"github.com/Menenkel/aibulletin/internal/crawler"
	"github.com/Menenkel/aibulletin/internal/hash"
	"github.com/Menenkel/aibulletin/internal/id"
	"github.com/Menenkel/aibulletin/internal/metrics"
	"github.com/Menenkel/aibulletin/internal/publisher"
	"github.com/Menenkel/aibulletin/internal/regions"
	"github.com/Menenkel/aibulletin/internal/storage"
	"github.com/Menenkel/aibulletin/internal/summarize"
)

// PDFSupport reports that PDF sources are extracted.
const PDFSupport = true

var (
	// ErrNoAPIKey is returned when analysis is requested before a key is set.
	ErrNoAPIKey = errors.New("api key not set")
	// ErrNoURLs is returned when a request carries no usable URL.
	ErrNoURLs = errors.New("no urls provided")
)

// Crawler aggregates a batch of seeds into a corpus.
type Crawler interface {
	CrawlAndAggregate(ctx context.Context, urls []string, followLinks bool, maxDepth int) (crawler.Result, error)
}

// SummarizerFactory returns a summarizer bound to an API key.
type SummarizerFactory func(apiKey string) summarize.Summarizer

// Request is one analysis submission.
type Request struct {
	URLs         []string
	CustomPrompt string
	Region       string
	FollowLinks  bool
	MaxDepth     int
}

// Response is the outcome of Analyze. URLsAnalyzed is the number of distinct
// URLs visited in the batch.
type Response struct {
	Analysis         string                 `json:"analysis"`
	URLsAnalyzed     int                    `json:"urls_analyzed"`
	FollowedLinks    bool                   `json:"followed_links"`
	PDFSupport       bool                   `json:"pdf_support"`
	SourcesProcessed int                    `json:"sources_processed"`
	BatchID          string                 `json:"batch_id,omitempty"`
	Region           string                 `json:"region,omitempty"`
	CorpusURI        string                 `json:"corpus_uri,omitempty"`
	Sources          []crawler.SourceResult `json:"sources,omitempty"`
}

// Options wires a Service. Blobs, Archive and Publisher are optional.
type Options struct {
	Crawler         Crawler
	Keys            *KeyManager
	Settings        storage.SettingsStore
	Regions         *regions.Catalog
	NewSummarizer   SummarizerFactory
	DevSummarizer   summarize.Summarizer
	Blobs           storage.BlobStore
	Archive         storage.Archive
	Publisher       publisher.Publisher
	Topic           string
	IDs             id.Generator
	Clock           clock.Clock
	Hasher          hash.Hasher
	DefaultMaxDepth int
	Logger          *zap.Logger
}

// Service runs analyses. Each call owns its crawl state, so concurrent calls
// are independent.
type Service struct {
	opts Options
}

// NewService builds a Service, filling in defaults for optional collaborators.
func NewService(opts Options) *Service {
	if opts.Regions == nil {
		opts.Regions = regions.Default()
	}
	if opts.DevSummarizer == nil {
		opts.DevSummarizer = summarize.Mock{}
	}
	if opts.IDs == nil {
		opts.IDs = id.UUID{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Hasher == nil {
		opts.Hasher = hash.SHA256{}
	}
	if opts.DefaultMaxDepth < 1 {
		opts.DefaultMaxDepth = 2
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{opts: opts}
}

// Regions exposes the catalog used for prompts.
func (s *Service) Regions() *regions.Catalog {
	return s.opts.Regions
}

// Analyze crawls req.URLs and summarizes the corpus for req.Region. Crawl
// failures of individual sources and a failed summary are reported inside the
// Response; only missing preconditions and invalid bounds return an error.
func (s *Service) Analyze(ctx context.Context, req Request) (Response, error) {
	key := ""
	if s.opts.Keys != nil {
		key = s.opts.Keys.Key()
	}
	if key == "" {
		return Response{}, ErrNoAPIKey
	}
	urls := cleanURLs(req.URLs)
	if len(urls) == 0 {
		return Response{}, ErrNoURLs
	}
	region := strings.TrimSpace(req.Region)
	if region == "" {
		region = regions.GlobalOverview
	}
	maxDepth := req.MaxDepth
	if maxDepth < 1 {
		maxDepth = s.opts.DefaultMaxDepth
	}
	logger := s.opts.Logger.With(zap.String("region", region), zap.Int("seeds", len(urls)))

	if key == summarize.DevKey {
		logger.Info("development key active, returning mock analysis")
		analysis, err := s.opts.DevSummarizer.Summarize(ctx, summarize.Request{})
		if err != nil {
			return Response{}, fmt.Errorf("mock analysis: %w", err)
		}
		metrics.ObserveBatch("dev", 0, 0)
		return Response{
			Analysis:      analysis,
			URLsAnalyzed:  len(urls),
			FollowedLinks: req.FollowLinks,
			PDFSupport:    PDFSupport,
			Region:        region,
		}, nil
	}

	if s.opts.Settings != nil {
		entry := storage.HistoryEntry{URLs: urls, Region: region, CustomPrompt: req.CustomPrompt, Timestamp: s.opts.Clock.Now()}
		if err := s.opts.Settings.SaveURLs(ctx, entry); err != nil {
			logger.Warn("save url history failed", zap.Error(err))
		}
	}

	batchID, err := s.opts.IDs.NewID()
	if err != nil {
		return Response{}, fmt.Errorf("batch id: %w", err)
	}
	logger = logger.With(zap.String("batch_id", batchID))

	result, err := s.opts.Crawler.CrawlAndAggregate(ctx, urls, req.FollowLinks, maxDepth)
	if err != nil {
		metrics.ObserveBatch("invalid", 0, 0)
		if errors.Is(err, crawler.ErrNoSeeds) {
			return Response{}, ErrNoURLs
		}
		return Response{}, fmt.Errorf("crawl batch: %w", err)
	}

	resp := Response{
		URLsAnalyzed:     result.Stats.TotalVisited,
		FollowedLinks:    req.FollowLinks,
		PDFSupport:       PDFSupport,
		SourcesProcessed: result.Stats.SourcesProcessed,
		BatchID:          batchID,
		Region:           region,
		Sources:          result.Sources,
	}
	corpusChars := len([]rune(result.Corpus))
	resp.CorpusURI = s.storeCorpus(ctx, logger, batchID, result.Corpus)

	summarizer := s.opts.NewSummarizer(key)
	analysis, err := summarizer.Summarize(ctx, summarize.Request{
		System: systemPrompt(s.opts.Regions.Prompt(region, req.CustomPrompt)),
		User:   userPrompt(result.Corpus),
	})
	if err != nil {
		logger.Error("summarization failed", zap.Error(err))
		metrics.ObserveBatch("summarize_error", resp.URLsAnalyzed, corpusChars)
		resp.Analysis = fmt.Sprintf("Error generating analysis: %v", err)
		return resp, nil
	}
	resp.Analysis = analysis
	metrics.ObserveBatch("ok", resp.URLsAnalyzed, corpusChars)

	completedAt := s.opts.Clock.Now()
	s.archive(ctx, logger, storage.Bulletin{
		ID:               batchID,
		CreatedAt:        completedAt,
		Region:           region,
		URLs:             urls,
		FollowLinks:      req.FollowLinks,
		MaxDepth:         maxDepth,
		SourcesProcessed: resp.SourcesProcessed,
		TotalVisited:     resp.URLsAnalyzed,
		CorpusChars:      corpusChars,
		CorpusHash:       s.corpusHash(logger, result.Corpus),
		CorpusURI:        resp.CorpusURI,
		Analysis:         analysis,
	})
	s.announce(ctx, logger, publisher.BulletinCompleted{
		BatchID:          batchID,
		Region:           region,
		URLs:             urls,
		SourcesProcessed: resp.SourcesProcessed,
		TotalVisited:     resp.URLsAnalyzed,
		CorpusChars:      corpusChars,
		CorpusURI:        resp.CorpusURI,
		CompletedAt:      completedAt,
	})

	logger.Info("bulletin generated",
		zap.Int("urls_analyzed", resp.URLsAnalyzed),
		zap.Int("corpus_chars", corpusChars),
		zap.Int("analysis_chars", len(analysis)),
	)
	return resp, nil
}

func (s *Service) storeCorpus(ctx context.Context, logger *zap.Logger, batchID, corpus string) string {
	if s.opts.Blobs == nil {
		return ""
	}
	uri, err := s.opts.Blobs.PutObject(ctx, batchID+".txt", "text/plain; charset=utf-8", strings.NewReader(corpus))
	if err != nil {
		logger.Warn("store corpus failed", zap.Error(err))
		return ""
	}
	return uri
}

func (s *Service) corpusHash(logger *zap.Logger, corpus string) string {
	sum, err := s.opts.Hasher.Hash([]byte(corpus))
	if err != nil {
		logger.Warn("hash corpus failed", zap.Error(err))
		return ""
	}
	return sum
}

func (s *Service) archive(ctx context.Context, logger *zap.Logger, b storage.Bulletin) {
	if s.opts.Archive == nil {
		return
	}
	if err := s.opts.Archive.SaveBulletin(ctx, b); err != nil {
		logger.Warn("archive bulletin failed", zap.Error(err))
	}
}

func (s *Service) announce(ctx context.Context, logger *zap.Logger, event publisher.BulletinCompleted) {
	if s.opts.Publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	msgID, err := s.opts.Publisher.Publish(pubCtx, s.opts.Topic, event)
	if err != nil {
		logger.Warn("publish completion failed", zap.Error(err))
		return
	}
	logger.Debug("completion published", zap.String("message_id", msgID))
}

func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
