package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/extract"
	"github.com/Menenkel/aibulletin/internal/metrics"
	"github.com/Menenkel/aibulletin/internal/pdf"
)

// EngineOptions configures an Engine.
type EngineOptions struct {
	PDF         PDFExtractor
	Filter      LinkFilter
	PageTimeout time.Duration
	Limiter     Limiter
	Logger      *zap.Logger
	// IsPDF routes URLs to PDF extraction; defaults to pdf.IsPDFURL.
	IsPDF func(string) bool
}

// Engine performs the recursive, depth-bounded crawl of one seed.
type Engine struct {
	pdf         PDFExtractor
	filter      LinkFilter
	pageTimeout time.Duration
	limiter     Limiter
	logger      *zap.Logger
	isPDF       func(string) bool
}

// NewEngine builds an Engine.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		pdf:         opts.PDF,
		filter:      opts.Filter,
		pageTimeout: opts.PageTimeout,
		limiter:     opts.Limiter,
		logger:      opts.Logger,
		isPDF:       opts.IsPDF,
	}
	if e.pageTimeout <= 0 {
		e.pageTimeout = 30 * time.Second
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.isPDF == nil {
		e.isPDF = pdf.IsPDFURL
	}
	return e
}

// Crawl visits node and, while node.Depth < bounds.MaxDepth, up to
// bounds.FanOut unvisited in-scope links, depth-first and sequentially.
//
// A node already in visited, or deeper than bounds.MaxDepth, is returned as
// KindSkipped without being fetched or marked. Every other node is marked
// before its fetch, so a URL is fetched at most once per batch. Failures
// become KindError fragments; Crawl itself never fails.
func (e *Engine) Crawl(ctx context.Context, visited *VisitedSet, session Session, node Node, bounds Bounds) Fragment {
	if err := bounds.Validate(); err != nil {
		return e.record(Fragment{URL: node.URL, Kind: KindError, Depth: node.Depth, Err: err})
	}
	if node.Depth > bounds.MaxDepth || visited.Has(node.URL) {
		return Fragment{URL: node.URL, Kind: KindSkipped, Depth: node.Depth}
	}
	visited.Add(node.URL)

	if err := ctx.Err(); err != nil {
		return e.record(Fragment{URL: node.URL, Kind: KindError, Depth: node.Depth, Err: err})
	}
	if e.isPDF(node.URL) {
		return e.record(e.crawlPDF(ctx, node))
	}
	if session == nil {
		return e.record(Fragment{URL: node.URL, Kind: KindError, Depth: node.Depth,
			Err: fmt.Errorf("no rendering session available")})
	}

	frag, links := e.crawlPage(ctx, session, node, bounds)
	e.record(frag)
	if frag.Failed() {
		return frag
	}

	for _, link := range e.filter.withFanOut(bounds.FanOut).Candidates(node.URL, links, visited) {
		child := e.Crawl(ctx, visited, session, Node{URL: link, Depth: node.Depth + 1}, bounds)
		frag.Children = append(frag.Children, child)
	}
	return frag
}

func (e *Engine) crawlPDF(ctx context.Context, node Node) (frag Fragment) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("pdf extraction panicked", zap.String("url", node.URL), zap.Any("panic", r))
			frag = Fragment{URL: node.URL, Kind: KindError, Depth: node.Depth, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if e.pdf == nil {
		return Fragment{URL: node.URL, Kind: KindError, Depth: node.Depth, Err: fmt.Errorf("pdf extraction disabled")}
	}
	text, err := e.pdf.Extract(ctx, node.URL)
	if err != nil {
		e.logger.Warn("pdf extraction failed", zap.String("url", node.URL), zap.Int("depth", node.Depth), zap.Error(err))
		return Fragment{URL: node.URL, Kind: KindError, Depth: node.Depth, Err: err}
	}
	return Fragment{URL: node.URL, Kind: KindPDF, Depth: node.Depth, Text: text}
}

// crawlPage loads the page, extracts its text and (below MaxDepth) its raw
// links, and releases the page before returning so that recursion never holds
// more than one render context open.
func (e *Engine) crawlPage(ctx context.Context, session Session, node Node, bounds Bounds) (frag Fragment, links []string) {
	frag = Fragment{URL: node.URL, Kind: KindHTML, Depth: node.Depth}
	defer func() {
		if r := recover(); r != nil {
			frag = Fragment{URL: node.URL, Kind: KindError, Depth: node.Depth, Err: fmt.Errorf("panic: %v", r)}
			links = nil
		}
	}()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, node.URL); err != nil {
			frag.Kind, frag.Err = KindError, err
			return frag, nil
		}
	}

	page, err := session.Load(ctx, node.URL, e.pageTimeout)
	if err != nil {
		e.logger.Warn("page load failed", zap.String("url", node.URL), zap.Int("depth", node.Depth), zap.Error(err))
		frag.Kind, frag.Err = KindError, err
		return frag, nil
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			e.logger.Debug("page close failed", zap.String("url", node.URL), zap.Error(cerr))
		}
	}()

	frag.Text = extract.Text(ctx, page)

	if node.Depth < bounds.MaxDepth {
		links, err = page.Links(ctx)
		if err != nil {
			e.logger.Warn("link enumeration failed", zap.String("url", node.URL), zap.Error(err))
			links = nil
		}
	}
	e.logger.Debug("page crawled",
		zap.String("url", node.URL),
		zap.Int("depth", node.Depth),
		zap.Int("chars", len(frag.Text)),
		zap.Int("links", len(links)),
	)
	return frag, links
}

func (e *Engine) record(f Fragment) Fragment {
	metrics.ObserveFragment(f.URL, string(f.Kind))
	return f
}

func (f LinkFilter) withFanOut(n int) LinkFilter {
	f.MaxPerPage = n
	return f
}
