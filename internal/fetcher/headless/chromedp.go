// Package headless renders pages in headless Chrome via chromedp.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/crawler"
	"github.com/Menenkel/aibulletin/internal/extract"
)

// Config controls the headless renderer.
type Config struct {
	ExecPath       string
	UserAgent      string
	NetworkIdle    time.Duration
	EvalTimeout    time.Duration
	DisableSandbox bool
	WindowWidth    int
	WindowHeight   int
	BlockMedia     bool
}

// blockedMedia keeps page loads light; images and fonts never carry bulletin text.
var blockedMedia = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg",
	"*.woff", "*.woff2", "*.ttf", "*.mp4", "*.webm",
}

// Renderer launches one browser per session.
type Renderer struct {
	cfg    Config
	logger *zap.Logger
}

// NewRenderer creates a chromedp-backed crawler.Renderer.
func NewRenderer(cfg Config, logger *zap.Logger) *Renderer {
	if cfg.NetworkIdle <= 0 {
		cfg.NetworkIdle = 3 * time.Second
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = 10 * time.Second
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		cfg.WindowWidth, cfg.WindowHeight = 1366, 768
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{cfg: cfg, logger: logger}
}

func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(r.cfg.WindowWidth, r.cfg.WindowHeight),
	)
	if r.cfg.DisableSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if r.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.cfg.UserAgent))
	}
	if r.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
	}
	return opts
}

// NewSession starts a browser process and waits until it accepts commands.
func (r *Renderer) NewSession(ctx context.Context) (crawler.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), r.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	stopForward := forwardCancel(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stopForward()
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &Session{
		cfg:           r.cfg,
		logger:        r.logger,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// Session is one running browser; each Load opens a tab.
type Session struct {
	cfg           Config
	logger        *zap.Logger
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closeOnce     sync.Once
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.browserCancel()
		s.allocCancel()
	})
	return nil
}

// Load opens rawURL in a new tab and waits for the load event plus a bounded
// network-idle settle. The whole load is limited by timeout.
func (s *Session) Load(ctx context.Context, rawURL string, timeout time.Duration) (crawler.Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	// The first Run binds the tab's lifetime to its context, so the tab is
	// created on tabCtx rather than on the load timeout.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	loadCtx, cancelLoad := context.WithTimeout(tabCtx, timeout)
	defer cancelLoad()
	stopForward := forwardCancel(ctx, cancelLoad)
	defer stopForward()

	meta := newResponseMeta()
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	err := chromedp.Run(loadCtx,
		s.networkSetupAction(),
		navigateAndSettle(rawURL, s.cfg.NetworkIdle, meta),
	)
	if err != nil {
		cancelTab()
		if ctxErr := loadCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("load %s: %w", rawURL, ctxErr)
		}
		return nil, fmt.Errorf("load %s: %w", rawURL, err)
	}

	status, finalURL := meta.snapshot(rawURL)
	if status >= http.StatusBadRequest {
		s.logger.Debug("rendered page returned error status", zap.String("url", rawURL), zap.Int("status", status))
	}
	return &Page{
		tabCtx:      tabCtx,
		cancel:      cancelTab,
		evalTimeout: s.cfg.EvalTimeout,
		URL:         rawURL,
		FinalURL:    finalURL,
		Status:      status,
	}, nil
}

func (s *Session) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if s.cfg.BlockMedia {
			if err := network.SetBlockedURLs(blockedMedia).Do(ctx); err != nil {
				return fmt.Errorf("set blocked urls: %w", err)
			}
		}
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		return nil
	})
}

// navigateAndSettle navigates, then waits up to idle for Chrome's networkIdle
// lifecycle event of the new document. A page that never goes idle is still
// usable once the wait expires.
func navigateAndSettle(rawURL string, idle time.Duration, meta *responseMeta) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := chromedp.Navigate(rawURL).Do(ctx); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		timer := time.NewTimer(idle)
		defer timer.Stop()
		select {
		case <-meta.idle:
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// Page is a loaded tab. Close releases it.
type Page struct {
	tabCtx      context.Context
	cancel      context.CancelFunc
	evalTimeout time.Duration

	URL      string
	FinalURL string
	Status   int
}

// MainText evaluates the in-page content extraction script.
func (p *Page) MainText(ctx context.Context) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Evaluate(extract.MainTextScript, &text)); err != nil {
		return "", fmt.Errorf("evaluate main text: %w", err)
	}
	return text, nil
}

// Links returns every anchor href resolved by the browser.
func (p *Page) Links(ctx context.Context) ([]string, error) {
	var links []string
	if err := p.run(ctx, chromedp.Evaluate(extract.LinksScript, &links)); err != nil {
		return nil, fmt.Errorf("evaluate links: %w", err)
	}
	return links, nil
}

// HTML returns the current DOM serialized.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// Close closes the tab.
func (p *Page) Close() error {
	p.cancel()
	return nil
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.tabCtx, p.evalTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

// responseMeta captures the main document response and the first networkIdle
// event that follows navigation of a new loader.
type responseMeta struct {
	mu       sync.Mutex
	status   int
	url      string
	loaderID string
	idle     chan struct{}
	idleOnce sync.Once
}

func newResponseMeta() *responseMeta {
	return &responseMeta{idle: make(chan struct{})}
}

func (m *responseMeta) captureEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		m.mu.Lock()
		if m.status == 0 {
			m.status = int(e.Response.Status)
			m.url = e.Response.URL
			m.loaderID = string(e.LoaderID)
		}
		m.mu.Unlock()
	case *page.EventLifecycleEvent:
		if e.Name != "networkIdle" {
			return
		}
		m.mu.Lock()
		match := m.loaderID != "" && string(e.LoaderID) == m.loaderID
		m.mu.Unlock()
		if match {
			m.idleOnce.Do(func() { close(m.idle) })
		}
	}
}

func (m *responseMeta) snapshot(requestURL string) (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, url := m.status, m.url
	if url == "" {
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
