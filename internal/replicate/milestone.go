package replicate

import (
	"context"
	"errors"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/store"
)

// Milestone replicates one milestone payload. Identity is (repo, number);
// upstream milestone ids are not part of the key.
func Milestone(ctx context.Context, tx store.Tx, obj payload.Object, opt Options) (*model.Milestone, Result, error) {
	opt = opt.withDefaults()

	number, ok := obj.Int("number")
	if !ok {
		return nil, Result{}, missing("milestone", "number", obj)
	}
	repoID, err := repoFromHintOrURL(ctx, tx, obj, "url", opt)
	if err != nil {
		return nil, Result{}, err
	}

	m, err := tx.MilestoneByNumber(ctx, repoID, number)
	switch {
	case errors.Is(err, store.ErrNotFound):
		m = &model.Milestone{RepoID: repoID, Number: number}
	case err != nil:
		return nil, Result{}, err
	}

	if !fresh(m.Replication, opt.FetchedAt) {
		return m, skipStale(), nil
	}

	if err := applyUserRef(ctx, tx, obj, "creator", opt, &m.CreatorID, &m.CreatorLogin); err != nil {
		return nil, Result{}, err
	}

	setString(obj, "state", &m.State)
	setString(obj, "title", &m.Title)
	setString(obj, "description", &m.Description)
	setInt(obj, "open_issues", &m.OpenIssuesCount)
	setInt(obj, "closed_issues", &m.ClosedIssuesCount)
	setTime(obj, "created_at", &m.CreatedAt)
	setTime(obj, "updated_at", &m.UpdatedAt)
	setTime(obj, "closed_at", &m.ClosedAt)
	setTime(obj, "due_on", &m.DueAt)

	m.Stamp(opt.Via, opt.FetchedAt)
	if err := tx.UpsertMilestone(ctx, m); err != nil {
		return nil, Result{}, err
	}
	return m, wrote(), nil
}
