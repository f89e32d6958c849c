package crawler

import (
	"context"
	"errors"
	"sync"
	"time"
)

type pageFixture struct {
	text    string
	links   []string
	loadErr error
	hang    bool
	panicOn string
}

// fakeRenderer serves pages from a map and records how it was used.
type fakeRenderer struct {
	mu         sync.Mutex
	pages      map[string]pageFixture
	sessionErr error

	loads        []string
	linkCalls    int
	sessions     int
	closed       int
	openPages    int
	maxOpenPages int
}

func newFakeRenderer(pages map[string]pageFixture) *fakeRenderer {
	return &fakeRenderer{pages: pages}
}

func (r *fakeRenderer) NewSession(context.Context) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessionErr != nil {
		return nil, r.sessionErr
	}
	r.sessions++
	return &fakeSession{r: r}, nil
}

func (r *fakeRenderer) loadCount(url string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.loads {
		if l == url {
			n++
		}
	}
	return n
}

type fakeSession struct {
	r *fakeRenderer
}

func (s *fakeSession) Load(ctx context.Context, url string, timeout time.Duration) (Page, error) {
	s.r.mu.Lock()
	s.r.loads = append(s.r.loads, url)
	fixture, ok := s.r.pages[url]
	s.r.mu.Unlock()

	if !ok {
		return nil, errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	if fixture.hang {
		loadCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		<-loadCtx.Done()
		return nil, loadCtx.Err()
	}
	if fixture.loadErr != nil {
		return nil, fixture.loadErr
	}

	s.r.mu.Lock()
	s.r.openPages++
	if s.r.openPages > s.r.maxOpenPages {
		s.r.maxOpenPages = s.r.openPages
	}
	s.r.mu.Unlock()
	return &fakePage{r: s.r, fixture: fixture}, nil
}

func (s *fakeSession) Close() error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.closed++
	return nil
}

type fakePage struct {
	r       *fakeRenderer
	fixture pageFixture
}

func (p *fakePage) MainText(context.Context) (string, error) {
	if p.fixture.panicOn == "main" {
		panic("renderer crashed")
	}
	return p.fixture.text, nil
}

func (p *fakePage) Links(context.Context) ([]string, error) {
	p.r.mu.Lock()
	p.r.linkCalls++
	p.r.mu.Unlock()
	return p.fixture.links, nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	return "<html><body><p>" + p.fixture.text + "</p></body></html>", nil
}

func (p *fakePage) Close() error {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	p.r.openPages--
	return nil
}

type fakePDF struct {
	mu     sync.Mutex
	calls  []string
	texts  map[string]string
	err    error
	panics map[string]string
}

func (f *fakePDF) Extract(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if msg, ok := f.panics[url]; ok {
		panic(msg)
	}
	if f.err != nil {
		return "", f.err
	}
	if text, ok := f.texts[url]; ok {
		return text, nil
	}
	return "Page 1:\npdf text", nil
}
