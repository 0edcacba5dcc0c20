package replicate

import (
	"context"
	"errors"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/store"
)

// Issue replicates one issue payload, recursing into the reporter,
// assignee, closer and milestone. When the payload carries a label list
// the issue's label set is replaced wholesale: an empty list clears it,
// an absent key leaves it alone.
func Issue(ctx context.Context, tx store.Tx, obj payload.Object, opt Options) (*model.Issue, Result, error) {
	opt = opt.withDefaults()

	id, ok := obj.Int64("id")
	if !ok {
		return nil, Result{}, missing("issue", "id", obj)
	}

	i, err := tx.IssueByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		i = &model.Issue{ID: id}
	case err != nil:
		return nil, Result{}, err
	}

	if !fresh(i.Replication, opt.FetchedAt) {
		return i, skipStale(), nil
	}

	// Issues tolerate an unresolvable repository: API issue listings are
	// always scanned with a hint, but a bare webhook payload may mention a
	// repo the mirror has never seen. The row lands with a null repo and
	// is adopted once the repo itself replicates.
	repoID, err := repoFromHintOrURL(ctx, tx, obj, "repository_url", opt)
	switch {
	case err == nil:
		i.RepoID = &repoID
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, Result{}, err
	}

	if err := applyUserRef(ctx, tx, obj, "user", opt, &i.UserID, &i.UserLogin); err != nil {
		return nil, Result{}, err
	}
	if err := applyUserRef(ctx, tx, obj, "assignee", opt, &i.AssigneeID, &i.AssigneeLogin); err != nil {
		return nil, Result{}, err
	}
	if err := applyUserRef(ctx, tx, obj, "closed_by", opt, &i.ClosedByID, &i.ClosedByLogin); err != nil {
		return nil, Result{}, err
	}

	if obj.Has("milestone") {
		if obj.IsNull("milestone") {
			i.MilestoneNumber = nil
		} else if sub, ok := obj.Sub("milestone"); ok {
			mopt := opt
			if i.RepoID != nil {
				mopt.RepoID = *i.RepoID
			}
			m, _, err := Milestone(ctx, tx, sub, mopt)
			if err != nil {
				return nil, Result{}, err
			}
			num := m.Number
			i.MilestoneNumber = &num
		}
	}

	setInt(obj, "number", &i.Number)
	setString(obj, "state", &i.State)
	setString(obj, "title", &i.Title)
	setString(obj, "body", &i.Body)
	setInt(obj, "comments", &i.CommentsCount)
	setTime(obj, "created_at", &i.CreatedAt)
	setTime(obj, "updated_at", &i.UpdatedAt)
	setTime(obj, "closed_at", &i.ClosedAt)

	i.Stamp(opt.Via, opt.FetchedAt)
	if err := tx.UpsertIssue(ctx, i); err != nil {
		return nil, Result{}, err
	}

	if labels, ok := obj.Objects("labels"); ok {
		lopt := opt
		if i.RepoID != nil {
			lopt.RepoID = *i.RepoID
		}
		names := make([]string, 0, len(labels))
		for _, lobj := range labels {
			l, _, err := Label(ctx, tx, lobj, lopt)
			if err != nil {
				return nil, Result{}, err
			}
			names = append(names, l.Name)
		}
		if err := tx.ReplaceIssueLabels(ctx, i.ID, names); err != nil {
			return nil, Result{}, err
		}
	}

	return i, wrote(), nil
}
