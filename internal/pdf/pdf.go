// Package pdf downloads PDF documents with bounded retries and extracts their
// text page by page.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/metrics"
)

// NoTextExtracted is returned as the document text when no page yields text.
const NoTextExtracted = "No text content could be extracted from the PDF."

var (
	// ErrNotPDF indicates the server answered with a non-PDF content type.
	ErrNotPDF = errors.New("URL does not appear to be a PDF file")
	// ErrDownload indicates the download failed after all retries.
	ErrDownload = errors.New("error downloading PDF")
)

// IsPDFURL reports whether raw should be routed to PDF extraction: the
// lower-cased path ends in .pdf or mentions pdf anywhere.
func IsPDFURL(raw string) bool {
	p := strings.ToLower(urlPath(raw))
	return strings.HasSuffix(p, ".pdf") || strings.Contains(p, "pdf")
}

func hasPDFSuffix(raw string) bool {
	return strings.HasSuffix(strings.ToLower(urlPath(raw)), ".pdf")
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

// Limiter throttles outbound requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Options configures an Extractor.
type Options struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	TempDir   string
	Retry     RetryPolicy
	Parser    Parser
	Limiter   Limiter
	Logger    *zap.Logger
}

// Extractor downloads PDFs and turns them into page-labeled text.
type Extractor struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	tempDir   string
	retry     RetryPolicy
	parser    Parser
	limiter   Limiter
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewExtractor fills unset options with production defaults.
func NewExtractor(opts Options) *Extractor {
	e := &Extractor{
		client:    opts.Client,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		tempDir:   opts.TempDir,
		retry:     opts.Retry,
		parser:    opts.Parser,
		limiter:   opts.Limiter,
		logger:    opts.Logger,
		sleep:     sleepCtx,
	}
	if e.client == nil {
		e.client = &http.Client{}
	}
	if e.timeout <= 0 {
		e.timeout = 30 * time.Second
	}
	if e.retry == nil {
		e.retry = NewExponentialRetryPolicy(3, time.Second, 10*time.Second)
	}
	if e.parser == nil {
		e.parser = LedongthucParser{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Extract downloads rawURL and returns its text as "Page n:" sections joined
// by blank lines, or NoTextExtracted when nothing was readable.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (string, error) {
	resp, err := e.download(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "pdf") && !hasPDFSuffix(rawURL) {
		return "", fmt.Errorf("%w (Content-Type: %s)", ErrNotPDF, contentType)
	}

	tmp, err := os.CreateTemp(e.tempDir, "bulletin-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			e.logger.Warn("remove temp pdf failed", zap.String("path", tmp.Name()), zap.Error(rmErr))
		}
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrDownload, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("flush temp file: %w", err)
	}

	return e.pagesText(tmp.Name(), rawURL)
}

// pagesText reads every page of the file at path. The parser panics on some
// malformed catalogs and object tables; that is reported like any other read
// failure.
func (e *Extractor) pagesText(path, rawURL string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("pdf parser panicked", zap.String("url", rawURL), zap.Any("panic", r))
			text, err = "", fmt.Errorf("error reading PDF: malformed document: %v", r)
		}
	}()

	doc, err := e.parser.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading PDF: %w", err)
	}
	defer doc.Close() //nolint:errcheck // file opened read-only

	var sections []string
	for n := 1; n <= doc.NumPages(); n++ {
		pageText, pageErr := doc.PageText(n)
		if pageErr != nil {
			e.logger.Warn("skip unreadable pdf page", zap.String("url", rawURL), zap.Int("page", n), zap.Error(pageErr))
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("Page %d:\n%s", n, strings.TrimSpace(pageText)))
	}
	if len(sections) == 0 {
		return NoTextExtracted, nil
	}
	return strings.Join(sections, "\n\n"), nil
}

// download performs GET with retries. The returned response has a 2xx status.
func (e *Extractor) download(ctx context.Context, rawURL string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx, rawURL); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrDownload, err)
			}
		}
		resp, err := e.attempt(ctx, rawURL)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		if err == nil && status >= 200 && status < 300 {
			metrics.ObservePDFAttempt("success")
			return resp, nil
		}

		if !e.retry.ShouldRetry(err, status, attempt) {
			metrics.ObservePDFAttempt("failed")
			if resp != nil {
				drain(resp)
			}
			if err != nil {
				return nil, fmt.Errorf("%w after %d attempt(s): %w", ErrDownload, attempt+1, err)
			}
			return nil, fmt.Errorf("%w after %d attempt(s): HTTP %d", ErrDownload, attempt+1, status)
		}

		metrics.ObservePDFAttempt("retry")
		if resp != nil {
			drain(resp)
		}
		wait := e.retry.Backoff(attempt)
		e.logger.Debug("retrying pdf download",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Int("status", status),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := e.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDownload, err)
		}
	}
}

// attempt issues a single GET bounded by the per-download timeout. The
// timeout covers the body read, so the cancel is tied to the body's Close.
func (e *Extractor) attempt(ctx context.Context, rawURL string) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	req.Header.Set("Accept", "application/pdf,*/*;q=0.8")
	resp, err := e.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
