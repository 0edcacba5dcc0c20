package replicate

import (
	"context"
	"errors"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/store"
)

// Hook replicates one repository webhook payload. The stored url column is
// the delivery target from config["url"]; the payload's own "url" key is
// its API location and is only used to resolve the repository when no hint
// is given.
func Hook(ctx context.Context, tx store.Tx, obj payload.Object, opt Options) (*model.RepositoryHook, Result, error) {
	opt = opt.withDefaults()

	id, ok := obj.Int64("id")
	if !ok {
		return nil, Result{}, missing("hook", "id", obj)
	}

	h, err := tx.HookByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h = &model.RepositoryHook{ID: id}
	case err != nil:
		return nil, Result{}, err
	}

	if !fresh(h.Replication, opt.FetchedAt) {
		return h, skipStale(), nil
	}

	repoID, err := repoFromHintOrURL(ctx, tx, obj, "url", opt)
	if err != nil {
		return nil, Result{}, err
	}
	h.RepoID = &repoID

	setString(obj, "name", &h.Name)
	setBool(obj, "active", &h.Active)
	setTime(obj, "created_at", &h.CreatedAt)
	setTime(obj, "updated_at", &h.UpdatedAt)

	if obj.Has("config") {
		if obj.IsNull("config") {
			h.Config = nil
			h.URL = nil
		} else if cfg, ok := obj.Map("config"); ok {
			h.Config = cfg
			if target, ok := payload.Object(cfg).String("url"); ok {
				h.URL = &target
			} else {
				h.URL = nil
			}
		}
	}
	if obj.Has("events") {
		if obj.IsNull("events") {
			h.Events = nil
		} else if events, ok := obj.Strings("events"); ok {
			h.Events = events
		}
	}
	if obj.Has("last_response") {
		if obj.IsNull("last_response") {
			h.LastResponse = nil
		} else if lr, ok := obj.Map("last_response"); ok {
			h.LastResponse = lr
		}
	}

	h.Stamp(opt.Via, opt.FetchedAt)
	if err := tx.UpsertHook(ctx, h); err != nil {
		return nil, Result{}, err
	}
	return h, wrote(), nil
}
