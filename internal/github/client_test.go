package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, StaticTokenSource("test-token"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, srv
}

func TestItemDecodesAndSnapshotsRateLimit(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Reset", "1372700873")
		w.Write([]byte(`{"id": 1, "login": "octocat"}`))
	}))

	obj, fetchedAt, err := c.Item(context.Background(), "octocat", "/users/octocat")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if login, _ := obj.String("login"); login != "octocat" {
		t.Fatalf("login = %q", login)
	}
	if fetchedAt.IsZero() {
		t.Fatal("fetchedAt is zero")
	}

	rl, ok := c.LastRateLimit()
	if !ok {
		t.Fatal("no rate limit observation")
	}
	if rl.Remaining != 4999 || rl.Limit != 5000 {
		t.Fatalf("snapshot = %+v", rl)
	}
	if want := time.Unix(1372700873, 0).UTC(); !rl.Reset.Equal(want) {
		t.Fatalf("reset = %v, want %v", rl.Reset, want)
	}
}

func TestExhaustedBudgetFailsRegardlessOfStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"forbidden", http.StatusForbidden},
		{"ok", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-RateLimit-Limit", "60")
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", "1372700873")
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"message": "API rate limit exceeded"}`))
			}))

			_, _, err := c.Item(context.Background(), "", "/users/octocat")
			var rle *RateLimitedError
			if !errors.As(err, &rle) {
				t.Fatalf("err = %v, want RateLimitedError", err)
			}
			if want := time.Unix(1372700873, 0).UTC(); !rle.Reset.Equal(want) {
				t.Fatalf("reset = %v, want %v", rle.Reset, want)
			}
			if rle.Limit != 60 {
				t.Fatalf("limit = %d", rle.Limit)
			}
		})
	}
}

func TestNotFoundAndUpstreamErrors(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream exploded"))
		}
	}))

	_, _, err := c.Item(context.Background(), "", "/missing")
	var nfe *NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if nfe.URL != srv.URL+"/missing" {
		t.Fatalf("url = %q", nfe.URL)
	}

	_, _, err = c.Item(context.Background(), "", "/broken")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if ue.Status != http.StatusBadGateway || ue.Body != "upstream exploded" {
		t.Fatalf("upstream error = %+v", ue)
	}
}

func TestPageShapesQuery(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "3" || q.Get("per_page") != "100" || q.Get("state") != "all" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`[{"id": 1}, {"id": 2}]`))
	}))

	items, _, err := c.Page(context.Background(), "", "/repos/octocat/Hello-World/pulls",
		url.Values{"state": {"all"}}, 3, 0)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	if id, _ := items[1].Int64("id"); id != 2 {
		t.Fatalf("second item id = %d", id)
	}
}

func TestLastPageParsesLinkHeader(t *testing.T) {
	tests := []struct {
		name string
		link string
		want int
	}{
		{
			"rel last present",
			`<https://api.github.com/repos/o/r/pulls?page=2&per_page=100>; rel="next", <https://api.github.com/repos/o/r/pulls?page=7&per_page=100>; rel="last"`,
			7,
		},
		{"no link header", "", 1},
		{"no rel last", `<https://api.github.com/repos/o/r/pulls?page=2>; rel="next"`, 1},
		{"malformed target", `<::bogus::>; rel="last"`, 1},
		{"missing page param", `<https://api.github.com/repos/o/r/pulls>; rel="last"`, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("method = %s, want HEAD", r.Method)
				}
				if tc.link != "" {
					w.Header().Set("Link", tc.link)
				}
			}))
			got, err := c.LastPage(context.Background(), "", "/repos/o/r/pulls", nil, 0)
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if got != tc.want {
				t.Fatalf("last page = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHeadDoesNotFollowRedirect(t *testing.T) {
	var followed bool
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/moved":
			w.Header().Set("Location", "/target")
			w.WriteHeader(http.StatusMovedPermanently)
		case "/target":
			followed = true
			w.Header().Set("Link", `<`+r.Host+`?page=9>; rel="last"`)
		}
	}))
	_ = srv

	got, err := c.LastPage(context.Background(), "", "/moved", nil, 0)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if followed {
		t.Fatal("HEAD followed the redirect")
	}
	if got != 1 {
		t.Fatalf("last page = %d, want 1 (redirect response has no Link)", got)
	}
}
