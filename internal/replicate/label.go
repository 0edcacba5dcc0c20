package replicate

import (
	"context"
	"errors"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/store"
)

// Label replicates one label payload. Identity is (repo, name).
func Label(ctx context.Context, tx store.Tx, obj payload.Object, opt Options) (*model.IssueLabel, Result, error) {
	opt = opt.withDefaults()

	name, ok := obj.String("name")
	if !ok {
		return nil, Result{}, missing("label", "name", obj)
	}
	repoID, err := repoFromHintOrURL(ctx, tx, obj, "url", opt)
	if err != nil {
		return nil, Result{}, err
	}

	l, err := tx.LabelByName(ctx, repoID, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l = &model.IssueLabel{RepoID: repoID, Name: name}
	case err != nil:
		return nil, Result{}, err
	}

	if !fresh(l.Replication, opt.FetchedAt) {
		return l, skipStale(), nil
	}

	setString(obj, "color", &l.Color)

	l.Stamp(opt.Via, opt.FetchedAt)
	if err := tx.UpsertLabel(ctx, l); err != nil {
		return nil, Result{}, err
	}
	return l, wrote(), nil
}
