package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/erauner12/hubmirror/internal/auth"
	"github.com/erauner12/hubmirror/internal/github"
	"github.com/erauner12/hubmirror/internal/jobs"
	"github.com/erauner12/hubmirror/internal/store/memstore"
)

// fixture wires a Server to an in-memory store and a stub upstream. Tests
// register upstream routes on mux before issuing requests.
type fixture struct {
	store  *memstore.Store
	mux    *http.ServeMux
	srv    *Server
	router http.Handler
}

// newFixture builds a test server. A nil queue means inline scheduling, so
// async dispatch paths run to completion before the response returns.
func newFixture(t *testing.T, queue jobs.Scheduler) *fixture {
	t.Helper()

	mux := http.NewServeMux()
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	gh, err := github.New(upstream.URL, github.StaticTokenSource("test-token"))
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	if queue == nil {
		queue = jobs.NewInline(zerolog.Nop())
	}

	st := memstore.New()
	srv := NewServer(st, gh, queue, zerolog.Nop())
	return &fixture{
		store:  st,
		mux:    mux,
		srv:    srv,
		router: srv.Routes(auth.Config{HS256Secret: "test-secret", DevMode: true}),
	}
}

// serveJSON registers an upstream route returning a fixed JSON body, with
// optional "Header: value" pairs.
func (f *fixture) serveJSON(pattern, body string, headers ...string) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		for _, h := range headers {
			k, v, _ := strings.Cut(h, ": ")
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

// post issues an authenticated load request through the router.
func (f *fixture) post(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, nil)
	req.Header.Set("X-Debug-Sub", "octocat")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// postRaw issues an unauthenticated POST with the given body, for legacy
// webhook paths selected by URL rather than header.
func postRaw(t *testing.T, router http.Handler, path string, body *strings.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// webhook delivers one notification to the intake.
func (f *fixture) webhook(t *testing.T, event, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/replication", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Github-Event", event)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}
