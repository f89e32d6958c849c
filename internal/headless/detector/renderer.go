package detector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/crawler"
	"github.com/Menenkel/aibulletin/internal/metrics"
)

// Renderer loads pages with a static renderer first and retries them in a
// headless one when the static result fails or looks script-driven. The
// headless session is only started on the first promotion.
type Renderer struct {
	static   crawler.Renderer
	headless crawler.Renderer
	detector *Heuristic
	logger   *zap.Logger
}

// NewRenderer composes static and headless renderers.
func NewRenderer(static, headless crawler.Renderer, detector *Heuristic, logger *zap.Logger) *Renderer {
	if detector == nil {
		detector = NewHeuristic(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{static: static, headless: headless, detector: detector, logger: logger}
}

// NewSession opens the static session.
func (r *Renderer) NewSession(ctx context.Context) (crawler.Session, error) {
	static, err := r.static.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open static session: %w", err)
	}
	return &session{renderer: r, static: static}, nil
}

type session struct {
	renderer *Renderer
	static   crawler.Session
	headless crawler.Session
}

func (s *session) Load(ctx context.Context, rawURL string, timeout time.Duration) (crawler.Page, error) {
	page, staticErr := s.static.Load(ctx, rawURL, timeout)
	if staticErr == nil {
		html, err := page.HTML(ctx)
		if err == nil && !s.renderer.detector.ShouldPromote(html) {
			metrics.ObserveRender("static")
			return page, nil
		}
		_ = page.Close()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if s.headless == nil {
		headless, err := s.renderer.headless.NewSession(ctx)
		if err != nil {
			if staticErr != nil {
				return nil, staticErr
			}
			return nil, fmt.Errorf("open headless session: %w", err)
		}
		s.headless = headless
	}
	s.renderer.logger.Debug("promoting to headless", zap.String("url", rawURL), zap.NamedError("static_error", staticErr))
	metrics.ObserveRender("headless")
	return s.headless.Load(ctx, rawURL, timeout)
}

func (s *session) Close() error {
	err := s.static.Close()
	if s.headless != nil {
		if herr := s.headless.Close(); herr != nil && err == nil {
			err = herr
		}
	}
	return err
}
