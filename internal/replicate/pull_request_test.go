package replicate

import (
	"context"
	"errors"
	"testing"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/store/memstore"
)

// unojuPullJSON is the shape a pull_request webhook carries: author and
// both branch repos embedded, counters under their upstream names.
const unojuPullJSON = `{
	"id": 140900,
	"number": 1,
	"state": "closed",
	"locked": false,
	"title": "Edited README via GitHub",
	"body": "Please pull these awesome changes",
	"user": {"id": 777449, "login": "unoju"},
	"merged": false,
	"mergeable": null,
	"comments": 2,
	"review_comments": 0,
	"commits": 1,
	"additions": 4,
	"deletions": 2,
	"changed_files": 1,
	"base": {
		"ref": "master",
		"repo": {"id": 1724195, "name": "Hello-World", "owner": {"id": 777449, "login": "unoju"}}
	},
	"head": {
		"ref": "patch-1",
		"repo": {"id": 1724195, "name": "Hello-World", "owner": {"id": 777449, "login": "unoju"}}
	},
	"created_at": "2011-05-02T15:59:10Z",
	"updated_at": "2011-05-02T16:00:00Z"
}`

func TestPullRequestReplicatesGraph(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	tx := begin(t, s)
	fetched := ts(t, "2011-05-02T16:00:05Z")

	p, res, err := PullRequest(ctx, tx, decode(t, unojuPullJSON), Options{Via: model.ViaWebhook, FetchedAt: fetched})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !res.Wrote() {
		t.Fatalf("result = %+v", res)
	}
	commit(t, tx)

	if p.Number == nil || *p.Number != 1 {
		t.Errorf("number = %v", p.Number)
	}
	if p.Title == nil || *p.Title != "Edited README via GitHub" {
		t.Errorf("title = %v", p.Title)
	}
	if p.UserID == nil || *p.UserID != 777449 || p.UserLogin == nil || *p.UserLogin != "unoju" {
		t.Errorf("user = (%v, %v)", p.UserID, p.UserLogin)
	}
	if p.BaseRepoID == nil || *p.BaseRepoID != 1724195 || p.BaseRef == nil || *p.BaseRef != "master" {
		t.Errorf("base = (%v, %v)", p.BaseRepoID, p.BaseRef)
	}
	if p.HeadRef == nil || *p.HeadRef != "patch-1" {
		t.Errorf("head ref = %v", p.HeadRef)
	}
	// mergeable is an explicit null in the payload.
	if p.Mergeable != nil {
		t.Errorf("mergeable = %v, want nil", *p.Mergeable)
	}
	if p.CommentsCount == nil || *p.CommentsCount != 2 {
		t.Errorf("comments_count = %v", p.CommentsCount)
	}
	if p.ReviewCommentsCount == nil || *p.ReviewCommentsCount != 0 {
		t.Errorf("review_comments_count = %v", p.ReviewCommentsCount)
	}
	if p.CommitsCount == nil || *p.CommitsCount != 1 {
		t.Errorf("commits_count = %v", p.CommitsCount)
	}
	if p.ChangedFiles == nil || *p.ChangedFiles != 1 {
		t.Errorf("changed_files = %v", p.ChangedFiles)
	}

	counts := s.Counts()
	if counts["users"] != 1 {
		t.Errorf("users = %d, want 1 (author and owner are the same account)", counts["users"])
	}
	if counts["repos"] != 1 {
		t.Errorf("repos = %d, want 1 (base and head are the same fork)", counts["repos"])
	}
	if counts["pulls"] != 1 {
		t.Errorf("pulls = %d", counts["pulls"])
	}
}

func TestPullRequestNullHeadRepo(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	// Seed with a known head repo.
	tx := begin(t, s)
	if _, _, err := PullRequest(ctx, tx, decode(t, unojuPullJSON), Options{Via: model.ViaAPI, FetchedAt: ts(t, "2011-05-02T16:00:05Z")}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	commit(t, tx)

	// Fork deleted: head.repo arrives null, the ref survives.
	tx2 := begin(t, s)
	raw := `{"id": 140900, "head": {"ref": "patch-1", "repo": null}}`
	p, _, err := PullRequest(ctx, tx2, decode(t, raw), Options{Via: model.ViaAPI, FetchedAt: ts(t, "2011-05-03T00:00:00Z")})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	commit(t, tx2)

	if p.HeadRepoID != nil {
		t.Fatalf("head repo id = %v, want cleared", *p.HeadRepoID)
	}
	if p.HeadRef == nil || *p.HeadRef != "patch-1" {
		t.Fatalf("head ref = %v, want kept", p.HeadRef)
	}
	if p.BaseRepoID == nil || *p.BaseRepoID != 1724195 {
		t.Fatalf("base repo id = %v, want untouched", p.BaseRepoID)
	}
}

func TestPullRequestFileNoShaSkips(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	tx := begin(t, s)
	defer tx.Rollback(ctx)

	// Renamed files arrive without a sha and are not stored.
	raw := `{"filename": "README.md", "status": "renamed", "additions": 0, "deletions": 0, "changes": 0}`
	f, res, err := PullRequestFile(ctx, tx, decode(t, raw), Options{Via: model.ViaWebhook, PullRequestID: 140900})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if res.Wrote() || res.Reason != ReasonNothingToDo {
		t.Fatalf("result = %+v, want nothing-to-do skip", res)
	}
	if f != nil {
		t.Fatalf("entity = %+v, want nil", f)
	}
}

func TestPullRequestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	tx := begin(t, s)

	raw := `{
		"sha": "9a4b4de1f87a9a3b69e8f4a46cbbbbe81c2c1b80",
		"filename": "README",
		"status": "modified",
		"additions": 4,
		"deletions": 2,
		"changes": 6,
		"patch": "@@ -1 +1,4 @@"
	}`
	f, res, err := PullRequestFile(ctx, tx, decode(t, raw),
		Options{Via: model.ViaAPI, FetchedAt: ts(t, "2011-05-02T16:00:05Z"), PullRequestID: 140900})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !res.Wrote() {
		t.Fatalf("result = %+v", res)
	}
	commit(t, tx)

	if f.Filename == nil || *f.Filename != "README" {
		t.Errorf("filename = %v", f.Filename)
	}
	if f.Changes == nil || *f.Changes != 6 {
		t.Errorf("changes = %v", f.Changes)
	}

	tx2 := begin(t, s)
	defer tx2.Rollback(ctx)
	got, err := tx2.PullFileBySHA(ctx, 140900, "9a4b4de1f87a9a3b69e8f4a46cbbbbe81c2c1b80")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Patch == nil || *got.Patch != "@@ -1 +1,4 @@" {
		t.Errorf("patch = %v", got.Patch)
	}
}

func TestPullRequestFileNeedsHint(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	tx := begin(t, s)
	defer tx.Rollback(ctx)

	_, _, err := PullRequestFile(ctx, tx, decode(t, `{"sha": "abc123", "filename": "README"}`), Options{Via: model.ViaAPI})
	var md *MissingDataError
	if !errors.As(err, &md) {
		t.Fatalf("err = %v, want MissingDataError", err)
	}
}
