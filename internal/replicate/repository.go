package replicate

import (
	"context"
	"errors"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/store"
)

// Repository replicates one repository payload, recursing into the owner
// and organization accounts so their foreign keys resolve.
func Repository(ctx context.Context, tx store.Tx, obj payload.Object, opt Options) (*model.Repository, Result, error) {
	opt = opt.withDefaults()

	id, ok := obj.Int64("id")
	if !ok {
		return nil, Result{}, missing("repository", "id", obj)
	}

	r, err := tx.RepoByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r = &model.Repository{ID: id}
	case err != nil:
		return nil, Result{}, err
	}

	if !fresh(r.Replication, opt.FetchedAt) {
		return r, skipStale(), nil
	}

	if name, ok := obj.String("name"); ok {
		r.Name = name
	}
	if err := applyUserRef(ctx, tx, obj, "owner", opt, &r.OwnerID, &r.OwnerLogin); err != nil {
		return nil, Result{}, err
	}
	if err := applyUserRef(ctx, tx, obj, "organization", opt, &r.OrganizationID, &r.OrganizationLogin); err != nil {
		return nil, Result{}, err
	}

	setBool(obj, "private", &r.Private)
	setString(obj, "description", &r.Description)
	setBool(obj, "fork", &r.Fork)
	setString(obj, "homepage", &r.Homepage)
	setString(obj, "language", &r.Language)
	setString(obj, "default_branch", &r.DefaultBranch)
	setInt(obj, "size", &r.Size)
	setInt(obj, "stargazers_count", &r.StargazersCount)
	setInt(obj, "watchers_count", &r.WatchersCount)
	setInt(obj, "forks_count", &r.ForksCount)
	setInt(obj, "open_issues_count", &r.OpenIssuesCount)
	setBool(obj, "has_issues", &r.HasIssues)
	setBool(obj, "has_downloads", &r.HasDownloads)
	setBool(obj, "has_wiki", &r.HasWiki)
	setBool(obj, "has_pages", &r.HasPages)
	setTime(obj, "created_at", &r.CreatedAt)
	setTime(obj, "updated_at", &r.UpdatedAt)
	setTime(obj, "pushed_at", &r.PushedAt)

	r.Stamp(opt.Via, opt.FetchedAt)
	if err := tx.UpsertRepo(ctx, r); err != nil {
		return nil, Result{}, err
	}
	return r, wrote(), nil
}
