package replicate

import (
	"context"
	"errors"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/store"
)

// User replicates one account payload. Accounts appear both standalone and
// embedded (owner, assignee, merged_by, creator), so the payload may carry
// anything from two keys to the full profile.
func User(ctx context.Context, tx store.Tx, obj payload.Object, opt Options) (*model.User, Result, error) {
	opt = opt.withDefaults()

	id, ok := obj.Int64("id")
	if !ok {
		return nil, Result{}, missing("user", "id", obj)
	}
	login, ok := obj.String("login")
	if !ok {
		return nil, Result{}, missing("user", "login", obj)
	}

	u, err := tx.UserByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u = &model.User{ID: id}
	case err != nil:
		return nil, Result{}, err
	}

	if !fresh(u.Replication, opt.FetchedAt) {
		return u, skipStale(), nil
	}

	u.Login = login
	setBool(obj, "site_admin", &u.SiteAdmin)
	setString(obj, "name", &u.Name)
	setString(obj, "company", &u.Company)
	setString(obj, "blog", &u.Blog)
	setString(obj, "location", &u.Location)
	setString(obj, "email", &u.Email)
	setBool(obj, "hireable", &u.Hireable)
	setString(obj, "bio", &u.Bio)
	setInt(obj, "public_repos", &u.PublicReposCount)
	setInt(obj, "public_gists", &u.PublicGistsCount)
	setInt(obj, "followers", &u.FollowersCount)
	setInt(obj, "following", &u.FollowingCount)
	setTime(obj, "created_at", &u.CreatedAt)
	setTime(obj, "updated_at", &u.UpdatedAt)

	u.Stamp(opt.Via, opt.FetchedAt)
	if err := tx.UpsertUser(ctx, u); err != nil {
		return nil, Result{}, err
	}
	return u, wrote(), nil
}
