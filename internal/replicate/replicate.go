// Package replicate holds the per-entity processors that fold upstream
// payloads into the mirror.
//
// Every processor follows the same contract: identify the primary key
// (missing key is a MissingDataError), load or create the row inside the
// caller's unit of work, apply the freshness guard, project payload fields
// through a static field map, recurse into referenced subobjects so foreign
// keys resolve, stamp the provenance channel and upsert. The caller owns
// the transaction; processors never commit.
//
// A write proceeds only when the payload's fetch instant is strictly newer
// than the row's last replicated instant. Anything else is a Skipped
// result, not an error, so duplicate and reordered deliveries collapse to
// no-ops.
package replicate

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/store"
)

// Options carries the per-call context every processor needs.
type Options struct {
	// Via tags which channel produced this payload.
	Via model.Via

	// FetchedAt is the instant the payload was obtained. Zero means now.
	FetchedAt time.Time

	// RepoID is the identifying repo hint for entities whose payloads
	// reference their repository only by url (labels, milestones, hooks)
	// or not at all (webhook issue payloads with a top-level repository).
	RepoID int64

	// PullRequestID is the identifying hint for file payloads, which carry
	// no reference to their pull request.
	PullRequestID int64
}

func (o Options) withDefaults() Options {
	if o.FetchedAt.IsZero() {
		o.FetchedAt = time.Now().UTC()
	}
	return o
}

// fresh is the freshness guard: strictly newer wins, ties lose.
func fresh(stored model.Replication, fetchedAt time.Time) bool {
	return fetchedAt.After(stored.LastReplicatedAt())
}

// splitRepoURL extracts (owner, name) from an upstream reference url of
// the shape .../repos/{owner}/{name}/...
func splitRepoURL(raw string) (owner, name string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "repos" && i+2 < len(parts) {
			return parts[i+1], parts[i+2], true
		}
	}
	return "", "", false
}

// repoFromHintOrURL resolves the repository context for an entity. The
// explicit hint wins; otherwise the given url field is segmented as
// /repos/{owner}/{name}/... and looked up. An unparseable or absent url
// resolves to NotFound, the same as an unknown repo.
func repoFromHintOrURL(ctx context.Context, tx store.Tx, obj payload.Object, urlKey string, opt Options) (int64, error) {
	if opt.RepoID != 0 {
		return opt.RepoID, nil
	}
	raw, ok := obj.String(urlKey)
	if !ok {
		return 0, store.ErrNotFound
	}
	owner, name, ok := splitRepoURL(raw)
	if !ok {
		return 0, store.ErrNotFound
	}
	repo, err := tx.RepoByFullName(ctx, owner, name)
	if err != nil {
		return 0, err
	}
	return repo.ID, nil
}

// applyUserRef maintains an (id, login) column pair on a parent from an
// embedded account object. Present-but-null clears the pair; a stale
// account still supplies it, so the denormalized login always agrees with
// the linked row.
func applyUserRef(ctx context.Context, tx store.Tx, obj payload.Object, key string, opt Options, id **int64, login **string) error {
	if !obj.Has(key) {
		return nil
	}
	if obj.IsNull(key) {
		*id = nil
		*login = nil
		return nil
	}
	sub, ok := obj.Sub(key)
	if !ok {
		return nil
	}
	u, _, err := User(ctx, tx, sub, opt)
	if err != nil {
		return err
	}
	uid := u.ID
	ulogin := u.Login
	*id = &uid
	*login = &ulogin
	return nil
}
