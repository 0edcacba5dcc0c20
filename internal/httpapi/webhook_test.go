package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"
)

// prOpenedEvent is a pull_request delivery whose every referenced entity
// is unknown to the mirror: two users, two repos and the pull request all
// have to be created lazily.
const prOpenedEvent = `{
	"action": "opened",
	"number": 1,
	"pull_request": {
		"id": 140900,
		"number": 1,
		"state": "open",
		"locked": false,
		"title": "Edited README via GitHub",
		"body": "Please pull these awesome changes",
		"user": {"id": 777449, "login": "unoju"},
		"base": {
			"ref": "master",
			"repo": {
				"id": 1296269,
				"name": "Hello-World",
				"full_name": "octocat/Hello-World",
				"owner": {"id": 1, "login": "octocat"}
			}
		},
		"head": {
			"ref": "master",
			"repo": {
				"id": 1724195,
				"name": "Hello-World",
				"full_name": "unoju/Hello-World",
				"owner": {"id": 777449, "login": "unoju"}
			}
		},
		"merged": false,
		"changed_files": 1,
		"created_at": "2011-01-26T19:01:12Z",
		"updated_at": "2011-01-26T19:01:12Z"
	},
	"repository": {
		"id": 1296269,
		"name": "Hello-World",
		"full_name": "octocat/Hello-World",
		"owner": {"id": 1, "login": "octocat"}
	}
}`

const prFilesOneEntry = `[
	{"sha": "bbcd538c8e72b8c175046e27cc8f907076331401", "filename": "README.md",
	 "status": "modified", "additions": 1, "deletions": 0, "changes": 1}
]`

func TestWebhookPing(t *testing.T) {
	f := newFixture(t, nil)
	w := f.webhook(t, "ping", `{"zen": "Keep it logically awesome."}`)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "pong") {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestWebhookNewPullRequest(t *testing.T) {
	f := newFixture(t, nil)
	f.serveJSON("GET /repos/octocat/Hello-World/pulls/1/files", prFilesOneEntry)

	w := f.webhook(t, "pull_request", prOpenedEvent)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "success") {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	counts := f.store.Counts()
	if counts["users"] != 2 {
		t.Errorf("users = %d, want 2", counts["users"])
	}
	if counts["repos"] != 2 {
		t.Errorf("repos = %d, want 2", counts["repos"])
	}
	if counts["pulls"] != 1 {
		t.Errorf("pulls = %d, want 1", counts["pulls"])
	}
	// changed_files below the inline limit: the file set was replaced
	// synchronously from the upstream listing.
	if counts["pull_files"] != 1 {
		t.Errorf("pull_files = %d, want 1", counts["pull_files"])
	}

	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)
	pr, err := tx.PullByID(ctx, 140900)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if pr.Title == nil || *pr.Title != "Edited README via GitHub" {
		t.Errorf("title = %v", pr.Title)
	}
	if pr.Body == nil || *pr.Body != "Please pull these awesome changes" {
		t.Errorf("body = %v", pr.Body)
	}
	if pr.LastReplicatedViaWebhookAt == nil {
		t.Error("webhook provenance not stamped")
	}
	if pr.LastReplicatedViaAPIAt != nil {
		t.Errorf("api provenance = %v, want nil", pr.LastReplicatedViaAPIAt)
	}
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	f := newFixture(t, nil)
	f.serveJSON("GET /repos/octocat/Hello-World/pulls/1/files", prFilesOneEntry)

	// Upstream redeliveries carry no fetch instant of their own, so two
	// deliveries inside the same clock reading hit the strict-greater
	// guard head on.
	instant := time.Date(2011, 1, 26, 19, 1, 13, 0, time.UTC)
	f.srv.now = func() time.Time { return instant }

	first := f.webhook(t, "pull_request", prOpenedEvent)
	if first.Code != 200 || !strings.Contains(first.Body.String(), "success") {
		t.Fatalf("first delivery: %d %s", first.Code, first.Body.String())
	}
	before := f.store.Counts()

	second := f.webhook(t, "pull_request", prOpenedEvent)
	if second.Code != 200 || !strings.Contains(second.Body.String(), "stale data") {
		t.Fatalf("second delivery: %d %s", second.Code, second.Body.String())
	}
	after := f.store.Counts()
	for table, n := range before {
		if after[table] != n {
			t.Errorf("%s = %d after redelivery, want %d", table, after[table], n)
		}
	}

	ctx := context.Background()
	tx, _ := f.store.Begin(ctx)
	defer tx.Rollback(ctx)
	pr, err := tx.PullByID(ctx, 140900)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if pr.LastReplicatedViaWebhookAt == nil || !pr.LastReplicatedViaWebhookAt.Equal(instant) {
		t.Errorf("webhook stamp = %v, want %v", pr.LastReplicatedViaWebhookAt, instant)
	}
}

func TestWebhookRenamedFileWithoutSHA(t *testing.T) {
	f := newFixture(t, nil)
	// Renamed entries arrive without a sha; the file set keeps only the
	// addressable ones.
	f.serveJSON("GET /repos/octocat/Hello-World/pulls/1/files", `[
		{"sha": "bbcd538c8e72b8c175046e27cc8f907076331401", "filename": "README.md",
		 "status": "modified", "additions": 1, "deletions": 0, "changes": 1},
		{"filename": "docs/NEW.md", "status": "renamed", "additions": 0, "deletions": 0, "changes": 0}
	]`)

	w := f.webhook(t, "pull_request", prOpenedEvent)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "success") {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if n := f.store.Counts()["pull_files"]; n != 1 {
		t.Errorf("pull_files = %d, want 1", n)
	}

	ctx := context.Background()
	tx, _ := f.store.Begin(ctx)
	defer tx.Rollback(ctx)
	if _, err := tx.PullFileBySHA(ctx, 140900, "bbcd538c8e72b8c175046e27cc8f907076331401"); err != nil {
		t.Errorf("kept file missing: %v", err)
	}
}

func TestWebhookLargePullRequestSpawnsFileScan(t *testing.T) {
	f := newFixture(t, nil)
	// changed_files at the limit: the intake must not fetch inline but
	// spawn a scan, which HEADs the listing and walks its pages.
	f.serveJSON("GET /repos/octocat/Hello-World/pulls/1/files", prFilesOneEntry)

	event := strings.Replace(prOpenedEvent, `"changed_files": 1`, `"changed_files": 120`, 1)
	w := f.webhook(t, "pull_request", event)
	if w.Code != 200 {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	// The fixture queue is eager, so the spawned scan has finished.
	if n := f.store.Counts()["pull_files"]; n != 1 {
		t.Errorf("pull_files = %d, want 1", n)
	}
	if f.store.MutexHeld("PullRequest|octocat/Hello-World#1|files") {
		t.Error("file scan mutex still held")
	}
}

func TestWebhookIssueUsesRepositoryEnvelope(t *testing.T) {
	f := newFixture(t, nil)
	w := f.webhook(t, "issues", `{
		"action": "opened",
		"issue": {
			"id": 73464126,
			"number": 1347,
			"state": "open",
			"title": "Found a bug",
			"user": {"id": 1, "login": "octocat"},
			"comments": 0
		},
		"repository": {
			"id": 1296269,
			"name": "Hello-World",
			"full_name": "octocat/Hello-World",
			"owner": {"id": 1, "login": "octocat"}
		}
	}`)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "success") {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	ctx := context.Background()
	tx, _ := f.store.Begin(ctx)
	defer tx.Rollback(ctx)
	issue, err := tx.IssueByID(ctx, 73464126)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issue.RepoID == nil || *issue.RepoID != 1296269 {
		t.Errorf("repo id = %v, want envelope repo", issue.RepoID)
	}
}

func TestWebhookBadDeliveries(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name  string
		event string
		body  string
	}{
		{"malformed json", "issues", `{"issue":`},
		{"missing subobject", "issues", `{"action": "opened"}`},
		{"unsupported event", "deployment", `{"deployment": {}}`},
		{"subobject missing id", "issues", `{"issue": {"number": 9}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.webhook(t, tt.event, tt.body)
			if w.Code != 400 {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestWebhookLegacyEventPath(t *testing.T) {
	f := newFixture(t, nil)
	req := strings.NewReader(`{"repository": {"id": 1296269, "name": "Hello-World",
		"full_name": "octocat/Hello-World", "owner": {"id": 1, "login": "octocat"}}}`)
	w := postRaw(t, f.router, "/replication/repository", req)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "success") {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if n := f.store.Counts()["repos"]; n != 1 {
		t.Errorf("repos = %d, want 1", n)
	}
}
