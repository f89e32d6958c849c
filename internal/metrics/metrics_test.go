package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://ReliefWeb.int/report", "reliefweb.int"},
		{"no scheme", "fews.net/africa", "fews.net"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	if crawlerFragmentsTotal == nil || pdfDownloadAttemptsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveFragment(t *testing.T) {
	Init()
	counter := crawlerFragmentsTotal.WithLabelValues("drought.example", "pdf")
	before := testutil.ToFloat64(counter)
	ObserveFragment("https://drought.example/report.pdf", "pdf")
	after := testutil.ToFloat64(counter)
	if after-before != 1 {
		t.Errorf("expected fragment counter to grow by 1, got %f", after-before)
	}
}

func TestObservePDFAttempt(t *testing.T) {
	Init()
	before := testutil.ToFloat64(pdfDownloadAttemptsTotal.WithLabelValues("retry"))
	ObservePDFAttempt("retry")
	ObservePDFAttempt("retry")
	if got := testutil.ToFloat64(pdfDownloadAttemptsTotal.WithLabelValues("retry")) - before; got != 2 {
		t.Errorf("expected 2 retry attempts, got %f", got)
	}
}

func TestObserveBatch(t *testing.T) {
	Init()
	before := testutil.ToFloat64(bulletinBatchesTotal.WithLabelValues("succeeded"))
	ObserveBatch("succeeded", 3, 1200)
	if got := testutil.ToFloat64(bulletinBatchesTotal.WithLabelValues("succeeded")) - before; got != 1 {
		t.Errorf("expected batch counter to grow by 1, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://reliefweb.int", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}

func TestObserveRender(t *testing.T) {
	Init()
	before := testutil.ToFloat64(crawlerRendersTotal.WithLabelValues("headless"))
	ObserveRender("headless")
	if got := testutil.ToFloat64(crawlerRendersTotal.WithLabelValues("headless")) - before; got != 1 {
		t.Errorf("expected render counter to grow by 1, got %f", got)
	}
}
