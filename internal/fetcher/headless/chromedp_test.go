package headless

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/require"

	"github.com/Menenkel/aibulletin/internal/extract"
)

func TestNewRendererDefaults(t *testing.T) {
	t.Parallel()

	r := NewRenderer(Config{}, nil)
	require.Equal(t, 3*time.Second, r.cfg.NetworkIdle)
	require.Equal(t, 10*time.Second, r.cfg.EvalTimeout)
	require.Equal(t, 1366, r.cfg.WindowWidth)
	require.NotNil(t, r.logger)
}

func TestAllocatorOptionsFollowConfig(t *testing.T) {
	t.Parallel()

	base := len(NewRenderer(Config{}, nil).allocatorOptions())
	full := len(NewRenderer(Config{DisableSandbox: true, UserAgent: "ua", ExecPath: "/usr/bin/chromium"}, nil).allocatorOptions())
	require.Equal(t, base+3, full)
}

func TestResponseMetaCapturesDocumentOnly(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		LoaderID: "L1",
		Response: &network.Response{Status: 404, URL: "https://d.example/logo.png"},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		LoaderID: "L1",
		Response: &network.Response{Status: 200, URL: "https://d.example/final"},
	})
	status, url := meta.snapshot("https://d.example/")
	require.Equal(t, 200, status)
	require.Equal(t, "https://d.example/final", url)

	status, url = newResponseMeta().snapshot("https://d.example/")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://d.example/", url)
}

func TestResponseMetaIdleMatchesDocumentLoader(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&page.EventLifecycleEvent{Name: "networkIdle", LoaderID: cdp.LoaderID("blank")})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		LoaderID: "doc",
		Response: &network.Response{Status: 200},
	})
	select {
	case <-meta.idle:
		t.Fatal("idle from a previous loader must not count")
	default:
	}

	meta.captureEvent(&page.EventLifecycleEvent{Name: "load", LoaderID: "doc"})
	meta.captureEvent(&page.EventLifecycleEvent{Name: "networkIdle", LoaderID: "doc"})
	meta.captureEvent(&page.EventLifecycleEvent{Name: "networkIdle", LoaderID: "doc"})
	select {
	case <-meta.idle:
	default:
		t.Fatal("expected idle signal")
	}
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("parent cancellation was not forwarded")
	}
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func TestRendererLoadsRenderedContent(t *testing.T) {
	if testing.Short() || !chromeAvailable() {
		t.Skip("headless chrome not available")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><nav>menu</nav><main id="m"></main>
<a href="/next">next</a>
<script>document.getElementById('m').innerText = 'Rendered drought outlook for the Sahel region.';</script>
</body></html>`))
	}))
	defer srv.Close()

	r := NewRenderer(Config{DisableSandbox: true, NetworkIdle: 500 * time.Millisecond}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session, err := r.NewSession(ctx)
	require.NoError(t, err)
	defer session.Close() //nolint:errcheck // test cleanup

	p, err := session.Load(ctx, srv.URL, 20*time.Second)
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck // test cleanup

	text, err := p.MainText(ctx)
	require.NoError(t, err)
	require.Equal(t, "Rendered drought outlook for the Sahel region.", text)

	links, err := p.Links(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{srv.URL + "/next"}, links)

	require.Contains(t, extract.Text(ctx, p), "Rendered drought outlook")
}
