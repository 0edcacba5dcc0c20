package replicate

import (
	"context"
	"errors"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/store"
)

// PullRequestFile replicates one changed-file payload. The upstream marks
// renamed files with an empty sha; those are a documented no-op, not an
// error. File payloads never reference their pull request, so the hint is
// required.
func PullRequestFile(ctx context.Context, tx store.Tx, obj payload.Object, opt Options) (*model.PullRequestFile, Result, error) {
	opt = opt.withDefaults()

	sha, ok := obj.String("sha")
	if !ok || sha == "" {
		return nil, skipNothing(), nil
	}
	if opt.PullRequestID == 0 {
		return nil, Result{}, missing("pull_request_file", "pull_request_id", obj)
	}

	f, err := tx.PullFileBySHA(ctx, opt.PullRequestID, sha)
	switch {
	case errors.Is(err, store.ErrNotFound):
		f = &model.PullRequestFile{PullRequestID: opt.PullRequestID, SHA: sha}
	case err != nil:
		return nil, Result{}, err
	}

	if !fresh(f.Replication, opt.FetchedAt) {
		return f, skipStale(), nil
	}

	setString(obj, "filename", &f.Filename)
	setString(obj, "status", &f.Status)
	setInt(obj, "additions", &f.Additions)
	setInt(obj, "deletions", &f.Deletions)
	setInt(obj, "changes", &f.Changes)
	setString(obj, "patch", &f.Patch)

	f.Stamp(opt.Via, opt.FetchedAt)
	if err := tx.UpsertPullFile(ctx, f); err != nil {
		return nil, Result{}, err
	}
	return f, wrote(), nil
}
