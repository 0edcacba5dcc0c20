package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/store"
)

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v.UTC()
}

func strp(s string) *string { return &s }

func i64p(v int64) *int64 { return &v }

func intp(v int) *int { return &v }

func begin(t *testing.T, s *Store) store.Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return tx
}

func commit(t *testing.T, tx store.Tx) {
	t.Helper()
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// seedRepo writes one repo with the given owner and stamps, committed.
func seedRepo(t *testing.T, s *Store, id int64, owner string, ownerID int64, name string, via model.Via, at time.Time) {
	t.Helper()
	tx := begin(t, s)
	r := &model.Repository{ID: id, Name: name, OwnerID: &ownerID, OwnerLogin: &owner}
	r.Stamp(via, at)
	if err := tx.UpsertRepo(context.Background(), r); err != nil {
		t.Fatalf("upsert repo: %v", err)
	}
	commit(t, tx)
}

func TestStagedWritesVisibleOnlyAfterCommit(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx1 := begin(t, s)
	u := &model.User{ID: 1, Login: "octocat", Name: strp("The Octocat")}
	u.Stamp(model.ViaAPI, ts(t, "2011-01-26T19:01:12Z"))
	if err := tx1.UpsertUser(ctx, u); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// The writer sees its own staged row.
	if got, err := tx1.UserByID(ctx, 1); err != nil || got.Login != "octocat" {
		t.Fatalf("read-your-writes: got %v, err %v", got, err)
	}

	// A concurrent reader does not.
	tx2 := begin(t, s)
	if _, err := tx2.UserByID(ctx, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("uncommitted row leaked: err = %v", err)
	}
	if err := tx2.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	commit(t, tx1)

	tx3 := begin(t, s)
	defer tx3.Rollback(ctx)
	got, err := tx3.UserByID(ctx, 1)
	if err != nil {
		t.Fatalf("after commit: %v", err)
	}
	if got.Name == nil || *got.Name != "The Octocat" {
		t.Fatalf("name = %v", got.Name)
	}
}

func TestRollbackDiscardsStaging(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx := begin(t, s)
	if err := tx.UpsertLabel(ctx, &model.IssueLabel{RepoID: 10, Name: "bug", Color: strp("ff0000")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if n := s.Counts()["labels"]; n != 0 {
		t.Fatalf("labels after rollback = %d, want 0", n)
	}

	if err := tx.UpsertLabel(ctx, &model.IssueLabel{RepoID: 10, Name: "bug"}); !errors.Is(err, errTxClosed) {
		t.Fatalf("write on closed tx: err = %v", err)
	}
}

func TestRepoByFullName(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedRepo(t, s, 1296269, "octocat", 1, "Hello-World", model.ViaAPI, ts(t, "2011-01-26T19:14:43Z"))
	seedRepo(t, s, 1724195, "unoju", 777449, "Hello-World", model.ViaAPI, ts(t, "2011-05-02T15:59:10Z"))

	tests := []struct {
		name    string
		owner   string
		repo    string
		wantID  int64
		wantErr error
	}{
		{"octocat fork", "octocat", "Hello-World", 1296269, nil},
		{"unoju fork", "unoju", "Hello-World", 1724195, nil},
		{"missing", "octocat", "Spoon-Knife", 0, store.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx := begin(t, s)
			defer tx.Rollback(ctx)
			got, err := tx.RepoByFullName(ctx, tc.owner, tc.repo)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if got.ID != tc.wantID {
				t.Fatalf("id = %d, want %d", got.ID, tc.wantID)
			}
		})
	}
}

func TestRepoByFullNameAmbiguous(t *testing.T) {
	ctx := context.Background()
	s := New()
	// Two distinct upstream ids claiming the same owner/name, as happens
	// briefly after a rename+recreate before a scan cleans up.
	seedRepo(t, s, 1, "octocat", 1, "Hello-World", model.ViaAPI, ts(t, "2011-01-26T19:14:43Z"))
	seedRepo(t, s, 2, "octocat", 1, "Hello-World", model.ViaAPI, ts(t, "2011-01-26T19:14:44Z"))

	tx := begin(t, s)
	defer tx.Rollback(ctx)
	if _, err := tx.RepoByFullName(ctx, "octocat", "Hello-World"); !errors.Is(err, store.ErrAmbiguous) {
		t.Fatalf("err = %v, want ErrAmbiguous", err)
	}
}

func TestDeleteReposNotSeenCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	old := ts(t, "2011-04-10T20:09:31Z")
	cutoff := ts(t, "2011-04-11T00:00:00Z")

	tx := begin(t, s)
	repoID := int64(1296269)
	r := &model.Repository{ID: repoID, Name: "Hello-World", OwnerID: i64p(1), OwnerLogin: strp("octocat")}
	r.Stamp(model.ViaAPI, old)
	if err := tx.UpsertRepo(ctx, r); err != nil {
		t.Fatalf("repo: %v", err)
	}
	h := &model.RepositoryHook{ID: 77, RepoID: &repoID, Name: strp("web")}
	h.Stamp(model.ViaAPI, old)
	if err := tx.UpsertHook(ctx, h); err != nil {
		t.Fatalf("hook: %v", err)
	}
	i := &model.Issue{ID: 51, RepoID: &repoID, Number: intp(1)}
	i.Stamp(model.ViaAPI, old)
	if err := tx.UpsertIssue(ctx, i); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := tx.ReplaceIssueLabels(ctx, 51, []string{"bug"}); err != nil {
		t.Fatalf("issue labels: %v", err)
	}
	p := &model.PullRequest{ID: 140900, Number: intp(1), BaseRepoID: &repoID}
	p.Stamp(model.ViaAPI, old)
	if err := tx.UpsertPull(ctx, p); err != nil {
		t.Fatalf("pull: %v", err)
	}
	f := &model.PullRequestFile{PullRequestID: 140900, SHA: "9a4b4de", Filename: strp("README")}
	f.Stamp(model.ViaAPI, old)
	if err := tx.UpsertPullFile(ctx, f); err != nil {
		t.Fatalf("file: %v", err)
	}
	commit(t, tx)

	tx2 := begin(t, s)
	n, err := tx2.DeleteReposNotSeen(ctx, 1, cutoff)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d repos, want 1", n)
	}
	commit(t, tx2)

	counts := s.Counts()
	for _, table := range []string{"repos", "hooks", "issues", "issue_labels", "pulls", "pull_files"} {
		if counts[table] != 0 {
			t.Errorf("%s = %d after cascade, want 0", table, counts[table])
		}
	}
}

func TestDeleteNotSeenHonorsCutoff(t *testing.T) {
	ctx := context.Background()
	s := New()
	cutoff := ts(t, "2011-04-11T00:00:00Z")

	tx := begin(t, s)
	stale := &model.IssueLabel{RepoID: 10, Name: "wontfix"}
	stale.Stamp(model.ViaAPI, ts(t, "2011-04-10T00:00:00Z"))
	fresh := &model.IssueLabel{RepoID: 10, Name: "bug"}
	fresh.Stamp(model.ViaWebhook, ts(t, "2011-04-12T00:00:00Z"))
	other := &model.IssueLabel{RepoID: 11, Name: "wontfix"}
	other.Stamp(model.ViaAPI, ts(t, "2011-04-10T00:00:00Z"))
	for _, l := range []*model.IssueLabel{stale, fresh, other} {
		if err := tx.UpsertLabel(ctx, l); err != nil {
			t.Fatalf("upsert %s: %v", l.Name, err)
		}
	}
	commit(t, tx)

	tx2 := begin(t, s)
	n, err := tx2.DeleteLabelsNotSeen(ctx, 10, cutoff)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d labels, want 1", n)
	}
	commit(t, tx2)

	tx3 := begin(t, s)
	defer tx3.Rollback(ctx)
	if _, err := tx3.LabelByName(ctx, 10, "wontfix"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("stale label survived: %v", err)
	}
	if _, err := tx3.LabelByName(ctx, 10, "bug"); err != nil {
		t.Fatalf("fresh label reaped: %v", err)
	}
	if _, err := tx3.LabelByName(ctx, 11, "wontfix"); err != nil {
		t.Fatalf("other repo's label reaped: %v", err)
	}
}

func TestMutexAcquireRelease(t *testing.T) {
	ctx := context.Background()
	s := New()
	const name = "Repository|octocat/Hello-World|pulls"

	ok, err := s.AcquireMutex(ctx, name, "octocat")
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = s.AcquireMutex(ctx, name, "unoju")
	if err != nil || ok {
		t.Fatalf("second acquire should lose: ok=%v err=%v", ok, err)
	}
	if err := s.ReleaseMutex(ctx, name); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = s.AcquireMutex(ctx, name, "unoju")
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
	if !s.MutexHeld(name) {
		t.Fatal("MutexHeld = false while held")
	}
}

func TestReadsDoNotAliasStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx := begin(t, s)
	u := &model.User{ID: 1, Login: "octocat", Bio: strp("There once was...")}
	u.Stamp(model.ViaAPI, ts(t, "2011-01-26T19:01:12Z"))
	if err := tx.UpsertUser(ctx, u); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	commit(t, tx)

	// Mutating what the caller passed in must not reach the store.
	*u.Bio = "scribbled"

	tx2 := begin(t, s)
	got, err := tx2.UserByID(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got.Bio != "There once was..." {
		t.Fatalf("stored bio aliased caller memory: %q", *got.Bio)
	}

	// Mutating what a reader got back must not reach the store either.
	*got.Bio = "doodled"
	got2, err := tx2.UserByID(ctx, 1)
	if err != nil {
		t.Fatalf("re-get: %v", err)
	}
	if *got2.Bio != "There once was..." {
		t.Fatalf("read aliased store memory: %q", *got2.Bio)
	}
	tx2.Rollback(ctx)
}

func TestReplaceIssueLabels(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx := begin(t, s)
	i := &model.Issue{ID: 51, RepoID: i64p(10), Number: intp(1)}
	i.Stamp(model.ViaWebhook, ts(t, "2011-04-22T13:33:48Z"))
	if err := tx.UpsertIssue(ctx, i); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := tx.ReplaceIssueLabels(ctx, 51, []string{"bug", "help wanted"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	// Read-your-writes inside the tx.
	names, err := tx.IssueLabels(ctx, 51)
	if err != nil {
		t.Fatalf("labels: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("labels = %v", names)
	}
	commit(t, tx)

	tx2 := begin(t, s)
	if err := tx2.ReplaceIssueLabels(ctx, 51, []string{"bug"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	commit(t, tx2)

	tx3 := begin(t, s)
	defer tx3.Rollback(ctx)
	names, err = tx3.IssueLabels(ctx, 51)
	if err != nil {
		t.Fatalf("labels: %v", err)
	}
	if len(names) != 1 || names[0] != "bug" {
		t.Fatalf("labels after replace = %v", names)
	}
}

func TestPullByNumber(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedRepo(t, s, 1724195, "unoju", 777449, "Hello-World", model.ViaAPI, ts(t, "2011-05-02T15:59:10Z"))

	tx := begin(t, s)
	p := &model.PullRequest{ID: 140900, Number: intp(1), BaseRepoID: i64p(1724195), Title: strp("Edited README via GitHub")}
	p.Stamp(model.ViaWebhook, ts(t, "2011-05-02T16:00:00Z"))
	if err := tx.UpsertPull(ctx, p); err != nil {
		t.Fatalf("pull: %v", err)
	}
	commit(t, tx)

	tx2 := begin(t, s)
	defer tx2.Rollback(ctx)
	got, err := tx2.PullByNumber(ctx, "unoju", "Hello-World", 1)
	if err != nil {
		t.Fatalf("by number: %v", err)
	}
	if got.ID != 140900 {
		t.Fatalf("id = %d", got.ID)
	}
	if _, err := tx2.PullByNumber(ctx, "unoju", "Hello-World", 2); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing number: err = %v", err)
	}
	if _, err := tx2.PullByNumber(ctx, "octocat", "Hello-World", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing repo: err = %v", err)
	}
}

func TestDeletePullFilesReplacesSet(t *testing.T) {
	ctx := context.Background()
	s := New()
	at := ts(t, "2011-05-02T16:00:00Z")

	tx := begin(t, s)
	for _, sha := range []string{"aaa111", "bbb222"} {
		f := &model.PullRequestFile{PullRequestID: 140900, SHA: sha}
		f.Stamp(model.ViaAPI, at)
		if err := tx.UpsertPullFile(ctx, f); err != nil {
			t.Fatalf("file %s: %v", sha, err)
		}
	}
	commit(t, tx)

	// Replacement happens inside one unit of work: delete then reinsert.
	tx2 := begin(t, s)
	n, err := tx2.DeletePullFiles(ctx, 140900)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d, want 2", n)
	}
	f := &model.PullRequestFile{PullRequestID: 140900, SHA: "ccc333"}
	f.Stamp(model.ViaWebhook, at.Add(time.Second))
	if err := tx2.UpsertPullFile(ctx, f); err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	commit(t, tx2)

	if n := s.Counts()["pull_files"]; n != 1 {
		t.Fatalf("pull_files = %d, want 1", n)
	}
	tx3 := begin(t, s)
	defer tx3.Rollback(ctx)
	if _, err := tx3.PullFileBySHA(ctx, 140900, "ccc333"); err != nil {
		t.Fatalf("replacement row missing: %v", err)
	}
}
