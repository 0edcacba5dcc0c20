package scan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/erauner12/hubmirror/internal/github"
	"github.com/erauner12/hubmirror/internal/jobs"
	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/store"
	"github.com/erauner12/hubmirror/internal/store/memstore"
)

// harness binds a Syncer to an in-memory store, an inline scheduler and a
// stub upstream. hits counts every upstream request.
type harness struct {
	store *memstore.Store
	mux   *http.ServeMux
	s     *Syncer
	hits  atomic.Int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: memstore.New(), mux: http.NewServeMux()}

	counting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.hits.Add(1)
		h.mux.ServeHTTP(w, r)
	})
	upstream := httptest.NewServer(counting)
	t.Cleanup(upstream.Close)

	gh, err := github.New(upstream.URL, github.StaticTokenSource(""))
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	h.s = New(h.store, gh, jobs.NewInline(zerolog.Nop()), zerolog.Nop())
	return h
}

func (h *harness) serveJSON(pattern, body string) {
	h.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

func (h *harness) inTxT(t *testing.T, fn func(tx store.Tx) error) {
	t.Helper()
	if err := h.s.inTx(context.Background(), fn); err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func ptr[T any](v T) *T { return &v }

// seedRepo plants the octocat/Hello-World parent row.
func (h *harness) seedRepo(t *testing.T, stampedAt time.Time) {
	t.Helper()
	h.inTxT(t, func(tx store.Tx) error {
		r := &model.Repository{ID: 1296269, Name: "Hello-World", OwnerID: ptr(int64(1)), OwnerLogin: ptr("octocat")}
		r.Stamp(model.ViaAPI, stampedAt)
		return tx.UpsertRepo(context.Background(), r)
	})
}

func (h *harness) seedPull(t *testing.T, id int64, number int, stampedAt time.Time) {
	t.Helper()
	h.inTxT(t, func(tx store.Tx) error {
		p := &model.PullRequest{ID: id, Number: ptr(number), BaseRepoID: ptr(int64(1296269))}
		p.Stamp(model.ViaAPI, stampedAt)
		return tx.UpsertPull(context.Background(), p)
	})
}

func prListJSON(entries ...int) string {
	out := "["
	for i, n := range entries {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"id": %d, "number": %d, "state": "open",
			"base": {"ref": "master", "repo": {"id": 1296269, "name": "Hello-World",
				"full_name": "octocat/Hello-World", "owner": {"id": 1, "login": "octocat"}}}}`,
			100+n, n)
	}
	return out + "]"
}

func TestPullsScanReapsUnseenRows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	t0 := time.Date(2015, 4, 1, 12, 0, 0, 0, time.UTC)
	tPrev := t0.Add(time.Hour)

	h.seedRepo(t, t0)
	h.inTxT(t, func(tx store.Tx) error {
		r, err := tx.RepoByID(ctx, 1296269)
		if err != nil {
			return err
		}
		r.PullRequestsLastScannedAt = ptr(tPrev)
		return tx.UpsertRepo(ctx, r)
	})
	for _, n := range []int{1, 2, 3} {
		h.seedPull(t, int64(100+n), n, t0)
	}

	// Upstream now lists only #1 and #3.
	h.serveJSON("GET /repos/octocat/Hello-World/pulls", prListJSON(1, 3))

	before := time.Now().UTC()
	if err := h.s.PullsScan("octocat", "octocat", "Hello-World", "all", false).Run(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if n := h.store.Counts()["pulls"]; n != 2 {
		t.Errorf("pulls = %d, want 2 after reaping", n)
	}
	h.inTxT(t, func(tx store.Tx) error {
		if _, err := tx.PullByID(ctx, 102); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("pull #2 lookup = %v, want not found", err)
		}
		for _, id := range []int64{101, 103} {
			p, err := tx.PullByID(ctx, id)
			if err != nil {
				t.Fatalf("pull %d: %v", id, err)
			}
			if p.LastReplicatedViaAPIAt == nil || p.LastReplicatedViaAPIAt.Before(before) {
				t.Errorf("pull %d api stamp = %v, want refreshed", id, p.LastReplicatedViaAPIAt)
			}
		}
		r, err := tx.RepoByID(ctx, 1296269)
		if err != nil {
			return err
		}
		if r.PullRequestsLastScannedAt == nil || r.PullRequestsLastScannedAt.Before(before) {
			t.Errorf("scan column = %v, want scan start", r.PullRequestsLastScannedAt)
		}
		return nil
	})
	if h.store.MutexHeld("Repository|octocat/Hello-World|pulls") {
		t.Error("scan mutex still held")
	}
}

func TestScanSkipsReapingOnFirstRun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	t0 := time.Date(2015, 4, 1, 12, 0, 0, 0, time.UTC)
	h.seedRepo(t, t0)
	// A pull the upstream no longer lists, but no previous scan column:
	// there is no cutoff to reap against.
	h.seedPull(t, 102, 2, t0)
	h.serveJSON("GET /repos/octocat/Hello-World/pulls", prListJSON(1))

	if err := h.s.PullsScan("octocat", "octocat", "Hello-World", "all", false).Run(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n := h.store.Counts()["pulls"]; n != 2 {
		t.Errorf("pulls = %d, want 2 (no reaping without a previous scan)", n)
	}
}

func TestScanMutexCollision(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedRepo(t, time.Now().UTC())

	held, err := h.store.AcquireMutex(ctx, "Repository|octocat/Hello-World|pulls", "other-worker")
	if err != nil || !held {
		t.Fatalf("pre-acquire: held=%v err=%v", held, err)
	}

	err = h.s.PullsScan("octocat", "octocat", "Hello-World", "all", false).Run(ctx)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
	// The loser must not have touched the upstream.
	if n := h.hits.Load(); n != 0 {
		t.Errorf("upstream hits = %d, want 0", n)
	}
	// The holder's mutex survives the losing attempt.
	if !h.store.MutexHeld("Repository|octocat/Hello-World|pulls") {
		t.Error("mutex vanished after losing spawn")
	}
}

func TestScanFansOutAcrossPages(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedRepo(t, time.Now().UTC())

	h.mux.HandleFunc("GET /repos/octocat/Hello-World/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link",
			`<https://example.test/repos/octocat/Hello-World/pulls?page=2&per_page=100>; rel="next", `+
				`<https://example.test/repos/octocat/Hello-World/pulls?page=3&per_page=100>; rel="last"`)
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodHead {
			return
		}
		switch r.URL.Query().Get("page") {
		case "1":
			w.Write([]byte(prListJSON(1, 2)))
		case "2":
			w.Write([]byte(prListJSON(3)))
		default:
			w.Write([]byte(prListJSON(4)))
		}
	})

	if err := h.s.PullsScan("octocat", "octocat", "Hello-World", "all", false).Run(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n := h.store.Counts()["pulls"]; n != 4 {
		t.Errorf("pulls = %d, want 4 across 3 pages", n)
	}
}

func TestScanReleasesMutexWhenSizingFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedRepo(t, time.Now().UTC())
	h.mux.HandleFunc("GET /repos/octocat/Hello-World/pulls", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "boom"}`, 500)
	})

	err := h.s.PullsScan("octocat", "octocat", "Hello-World", "all", false).Run(ctx)
	var ue *github.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if h.store.MutexHeld("Repository|octocat/Hello-World|pulls") {
		t.Error("mutex leaked after failed spawn")
	}
}

func TestUserReposScanRecordsPermissions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.serveJSON("GET /user", `{"id": 777449, "login": "unoju"}`)
	h.serveJSON("GET /user/repos", `[
		{"id": 1724195, "name": "Hello-World", "full_name": "unoju/Hello-World",
		 "owner": {"id": 777449, "login": "unoju"},
		 "permissions": {"admin": true, "push": true, "pull": true}}
	]`)

	// Requestor scanning themselves goes through the authenticated
	// endpoints and mirrors the permissions block.
	if err := h.s.UserReposScan("unoju", "unoju", "").Run(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}

	counts := h.store.Counts()
	if counts["repos"] != 1 {
		t.Errorf("repos = %d, want 1", counts["repos"])
	}
	if counts["user_repos"] != 1 {
		t.Errorf("user_repos = %d, want 1", counts["user_repos"])
	}
	h.inTxT(t, func(tx store.Tx) error {
		u, err := tx.UserByID(ctx, 777449)
		if err != nil {
			return err
		}
		if u.ReposLastScannedAt == nil {
			t.Error("repos scan column not stamped")
		}
		return nil
	})
}

func TestPullFilesScanRequiresKnownPull(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedRepo(t, time.Now().UTC())

	err := h.s.PullFilesScan("octocat", "octocat", "Hello-World", 9).Run(ctx)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	// prepare failed before the mutex, so nothing to clean up.
	if h.store.MutexHeld("PullRequest|octocat/Hello-World#9|files") {
		t.Error("mutex taken despite failed prepare")
	}
}
