// Package collyfetcher implements a static crawler.Renderer on top of gocolly.
// It serves hosts without Chrome: pages are fetched once and extracted from raw
// markup with the same selector lists the browser path evaluates in-page.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/crawler"
	"github.com/Menenkel/aibulletin/internal/extract"
)

// ErrSessionClosed is returned by Load after Close.
var ErrSessionClosed = errors.New("colly session closed")

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	// ClientTimeout is a hard ceiling on any single HTTP exchange; per-load
	// timeouts passed to Load are usually tighter.
	ClientTimeout time.Duration
	MaxBodyBytes  int
}

// Renderer implements crawler.Renderer using the Colly collector.
type Renderer struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Renderer. The transport and client timeout live on the shared
// backend, so they are fixed here and never touched per load.
func New(cfg Config, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ClientTimeout <= 0 {
		cfg.ClientTimeout = 60 * time.Second
	}
	opts := []colly.CollectorOption{
		colly.Async(false),
		// The crawl engine owns visited tracking.
		colly.AllowURLRevisit(),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	if cfg.MaxBodyBytes > 0 {
		opts = append(opts, colly.MaxBodySize(cfg.MaxBodyBytes))
	}
	c := colly.NewCollector(opts...)
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.ClientTimeout)
	c.WithTransport(newRobotsFallbackTransport(newHTTPTransport(), logger))

	return &Renderer{
		cfg:           cfg,
		logger:        logger,
		baseCollector: c,
	}
}

// NewSession returns a session backed by the shared collector. Static
// sessions hold no external process, so creation never fails.
func (r *Renderer) NewSession(context.Context) (crawler.Session, error) {
	return &Session{renderer: r}, nil
}

// Session fetches pages one at a time.
type Session struct {
	renderer *Renderer
	mu       sync.Mutex
	closed   bool
}

// Close marks the session closed. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Load fetches rawURL and keeps the body for extraction.
func (s *Session) Load(ctx context.Context, rawURL string, timeout time.Duration) (crawler.Page, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}

	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		page     Page
		fetchErr error
	)
	collector := s.renderer.buildCollector(loadCtx, rawURL, &page, &fetchErr)
	if err := runCollector(loadCtx, collector, rawURL, &fetchErr); err != nil {
		return nil, err
	}
	if page.FinalURL == "" {
		return nil, fmt.Errorf("colly fetch %s: no response", rawURL)
	}
	return &page, nil
}

func (r *Renderer) buildCollector(
	ctx context.Context,
	rawURL string,
	page *Page,
	fetchErr *error,
) *colly.Collector {
	collector := r.baseCollector.Clone()
	collector.Context = ctx
	configureCollectorHooks(collector, rawURL, page, fetchErr)
	return collector
}

func configureCollectorHooks(hooks collectorHooks, rawURL string, page *Page, fetchErr *error) {
	hooks.OnResponse(func(resp *colly.Response) {
		finalURL := rawURL
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}
		*page = Page{
			URL:      rawURL,
			FinalURL: finalURL,
			Status:   resp.StatusCode,
			body:     string(resp.Body),
		}
	})

	hooks.OnError(func(resp *colly.Response, err error) {
		if resp != nil && resp.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", resp.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// Page is a fetched document. It holds no external resources.
type Page struct {
	URL      string
	FinalURL string
	Status   int
	body     string
}

// MainText applies the noise and content selectors to the raw markup.
func (p *Page) MainText(context.Context) (string, error) {
	return extract.FromHTML(p.body), nil
}

// Links resolves anchors against the final URL after redirects.
func (p *Page) Links(context.Context) ([]string, error) {
	return extract.Links(p.body, p.FinalURL), nil
}

// HTML returns the response body.
func (p *Page) HTML(context.Context) (string, error) {
	return p.body, nil
}

// Close is a no-op.
func (p *Page) Close() error { return nil }

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
