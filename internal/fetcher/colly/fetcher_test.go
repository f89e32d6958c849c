package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"
)

const bulletinPage = `<html><head><title>Outlook</title></head><body>
<nav>Home | About</nav>
<main><h1>Seasonal outlook</h1>
<p>Below-average rainfall is expected across the eastern highlands through the coming season, with pasture stress in pastoral zones.</p>
<a href="/reports/2024.pdf">Report</a>
<a href="other.html">Other</a>
<a href="mailto:desk@example.org">Mail</a>
</main>
<footer>Copyright</footer>
</body></html>`

func newBulletinServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/outlook", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(bulletinPage))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/outlook", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>secret</body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSessionLoadExtractsTextAndLinks(t *testing.T) {
	t.Parallel()

	srv := newBulletinServer(t)
	r := New(Config{UserAgent: "bulletin-test"}, nil)
	session, err := r.NewSession(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	page, err := session.Load(context.Background(), srv.URL+"/outlook", 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = page.Close() })

	text, err := page.MainText(context.Background())
	require.NoError(t, err)
	require.Contains(t, text, "Below-average rainfall")
	require.NotContains(t, text, "Home | About")
	require.NotContains(t, text, "Copyright")

	links, err := page.Links(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{srv.URL + "/reports/2024.pdf", srv.URL + "/other.html"}, links)

	html, err := page.HTML(context.Background())
	require.NoError(t, err)
	require.Contains(t, html, "<footer>")
}

func TestSessionLoadFollowsRedirectForLinkBase(t *testing.T) {
	t.Parallel()

	srv := newBulletinServer(t)
	session, err := New(Config{}, nil).NewSession(context.Background())
	require.NoError(t, err)

	page, err := session.Load(context.Background(), srv.URL+"/moved", 5*time.Second)
	require.NoError(t, err)
	p, ok := page.(*Page)
	require.True(t, ok)
	require.Equal(t, srv.URL+"/moved", p.URL)
	require.Equal(t, srv.URL+"/outlook", p.FinalURL)
	require.Equal(t, http.StatusOK, p.Status)
}

func TestSessionLoadReportsHTTPErrors(t *testing.T) {
	t.Parallel()

	srv := newBulletinServer(t)
	session, err := New(Config{}, nil).NewSession(context.Background())
	require.NoError(t, err)

	_, err = session.Load(context.Background(), srv.URL+"/missing", 5*time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestSessionLoadTimesOut(t *testing.T) {
	t.Parallel()

	srv := newBulletinServer(t)
	session, err := New(Config{}, nil).NewSession(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = session.Load(context.Background(), srv.URL+"/slow", 50*time.Millisecond)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestSessionLoadHonorsRobots(t *testing.T) {
	t.Parallel()

	srv := newBulletinServer(t)
	session, err := New(Config{RespectRobots: true}, nil).NewSession(context.Background())
	require.NoError(t, err)

	_, err = session.Load(context.Background(), srv.URL+"/private", 5*time.Second)
	require.Error(t, err)

	page, err := session.Load(context.Background(), srv.URL+"/outlook", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, page)
}

func TestSessionLoadAllowsRevisits(t *testing.T) {
	t.Parallel()

	srv := newBulletinServer(t)
	r := New(Config{}, nil)
	for i := 0; i < 2; i++ {
		session, err := r.NewSession(context.Background())
		require.NoError(t, err)
		_, err = session.Load(context.Background(), srv.URL+"/outlook", 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, session.Close())
	}
}

func TestSessionLoadAfterClose(t *testing.T) {
	t.Parallel()

	session, err := New(Config{}, nil).NewSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	_, err = session.Load(context.Background(), "https://example.org", time.Second)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	var (
		page     Page
		fetchErr error
	)
	hooks := &stubHooks{}
	configureCollectorHooks(hooks, "https://example.org/a", &page, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("<p>body</p>"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.org/b")},
	})
	require.Equal(t, "https://example.org/a", page.URL)
	require.Equal(t, "https://example.org/b", page.FinalURL)
	require.Equal(t, "<p>body</p>", page.body)

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("Bad Gateway"))
	require.Error(t, fetchErr)
	require.True(t, strings.HasPrefix(fetchErr.Error(), "status 502"))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
