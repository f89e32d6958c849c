package crawler

import (
	"context"
	"time"
)

// Renderer opens rendering sessions. One session serves one seed.
type Renderer interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session loads pages. Implementations must allow Close after any Load failure.
type Session interface {
	Load(ctx context.Context, rawURL string, timeout time.Duration) (Page, error)
	Close() error
}

// Page is a loaded document holding a render context until Close.
type Page interface {
	MainText(ctx context.Context) (string, error)
	Links(ctx context.Context) ([]string, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}

// PDFExtractor turns a PDF URL into text.
type PDFExtractor interface {
	Extract(ctx context.Context, rawURL string) (string, error)
}

// Limiter throttles fetches per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}
