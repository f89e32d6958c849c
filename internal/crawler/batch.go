package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrNoSeeds indicates a batch was requested without any URL.
var ErrNoSeeds = errors.New("no seed URLs provided")

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Engine   *Engine
	Renderer Renderer
	Limits   Limits
	FanOut   int
	Logger   *zap.Logger
}

// Orchestrator runs batches: seeds in order, each isolated from the others,
// sharing one VisitedSet that lives only for the batch.
type Orchestrator struct {
	engine   *Engine
	renderer Renderer
	limits   Limits
	fanOut   int
	logger   *zap.Logger
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		engine:   opts.Engine,
		renderer: opts.Renderer,
		limits:   opts.Limits,
		fanOut:   opts.FanOut,
		logger:   opts.Logger,
	}
	if o.limits == (Limits{}) {
		o.limits = DefaultLimits
	}
	if o.fanOut <= 0 {
		o.fanOut = 5
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// CrawlAndAggregate crawls every seed and returns the capped corpus with the
// batch counters. Per-seed failures are embedded in the corpus; only invalid
// arguments produce an error. With followLinks false only the seeds are fetched.
func (o *Orchestrator) CrawlAndAggregate(ctx context.Context, urls []string, followLinks bool, maxDepth int) (Result, error) {
	seeds := cleanSeeds(urls)
	if len(seeds) == 0 {
		return Result{}, ErrNoSeeds
	}
	bounds := Bounds{MaxDepth: maxDepth, FanOut: o.fanOut}
	if !followLinks {
		bounds.MaxDepth = 1
	}
	if err := bounds.Validate(); err != nil {
		return Result{}, err
	}

	visited := NewVisitedSet()
	fragments := make([]Fragment, 0, len(seeds))
	sources := make([]SourceResult, 0, len(seeds))
	for _, seed := range seeds {
		frag := o.crawlSeed(ctx, visited, Target{URL: seed, MaxDepth: bounds.MaxDepth, FollowLinks: followLinks}, bounds)
		fragments = append(fragments, frag)
		sources = append(sources, summarizeSource(frag, o.limits))
	}

	result := Result{
		Corpus:  Assemble(fragments, o.limits),
		Sources: sources,
		Stats: Stats{
			SourcesProcessed: len(seeds),
			TotalVisited:     visited.Len(),
		},
	}
	o.logger.Info("batch crawled",
		zap.Int("sources_processed", result.Stats.SourcesProcessed),
		zap.Int("total_visited", result.Stats.TotalVisited),
		zap.Int("corpus_chars", len([]rune(result.Corpus))),
		zap.Bool("follow_links", followLinks),
		zap.Int("max_depth", bounds.MaxDepth),
	)
	return result, nil
}

// crawlSeed isolates one seed: a rendering session is opened only for HTML
// seeds and always closed, and a panic becomes an error fragment.
func (o *Orchestrator) crawlSeed(ctx context.Context, visited *VisitedSet, target Target, bounds Bounds) (frag Fragment) {
	node := Node{URL: target.URL, Depth: 1}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("seed crawl panicked", zap.String("url", target.URL), zap.Any("panic", r))
			frag = Fragment{URL: target.URL, Kind: KindError, Depth: 1, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if o.engine.isPDF(target.URL) || visited.Has(target.URL) {
		return o.engine.Crawl(ctx, visited, nil, node, bounds)
	}
	if o.renderer == nil {
		visited.Add(target.URL)
		return Fragment{URL: target.URL, Kind: KindError, Depth: 1, Err: errors.New("no renderer configured")}
	}

	session, err := o.renderer.NewSession(ctx)
	if err != nil {
		o.logger.Warn("rendering session failed", zap.String("url", target.URL), zap.Error(err))
		visited.Add(target.URL)
		return Fragment{URL: target.URL, Kind: KindError, Depth: 1, Err: fmt.Errorf("start renderer: %w", err)}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			o.logger.Debug("rendering session close failed", zap.String("url", target.URL), zap.Error(cerr))
		}
	}()
	return o.engine.Crawl(ctx, visited, session, node, bounds)
}

func summarizeSource(f Fragment, limits Limits) SourceResult {
	src := SourceResult{URL: f.URL, Kind: f.Kind}
	if f.Err != nil {
		src.Error = f.Err.Error()
	}
	for _, c := range f.Children {
		if c.Kind != KindSkipped {
			src.Subpages++
		}
	}
	src.Chars = len([]rune(sourceBlock(f, limits)))
	return src
}

func cleanSeeds(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
