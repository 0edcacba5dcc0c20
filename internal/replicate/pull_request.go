package replicate

import (
	"context"
	"errors"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/store"
)

// PullRequest replicates one pull request payload, recursing into the
// author, assignee, merger, milestone and both branch repositories.
func PullRequest(ctx context.Context, tx store.Tx, obj payload.Object, opt Options) (*model.PullRequest, Result, error) {
	opt = opt.withDefaults()

	id, ok := obj.Int64("id")
	if !ok {
		return nil, Result{}, missing("pull_request", "id", obj)
	}

	p, err := tx.PullByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p = &model.PullRequest{ID: id}
	case err != nil:
		return nil, Result{}, err
	}

	if !fresh(p.Replication, opt.FetchedAt) {
		return p, skipStale(), nil
	}

	if err := applyUserRef(ctx, tx, obj, "user", opt, &p.UserID, &p.UserLogin); err != nil {
		return nil, Result{}, err
	}
	if err := applyUserRef(ctx, tx, obj, "assignee", opt, &p.AssigneeID, &p.AssigneeLogin); err != nil {
		return nil, Result{}, err
	}
	if err := applyUserRef(ctx, tx, obj, "merged_by", opt, &p.MergedByID, &p.MergedByLogin); err != nil {
		return nil, Result{}, err
	}
	if err := applyBranch(ctx, tx, obj, "base", opt, &p.BaseRepoID, &p.BaseRef); err != nil {
		return nil, Result{}, err
	}
	if err := applyBranch(ctx, tx, obj, "head", opt, &p.HeadRepoID, &p.HeadRef); err != nil {
		return nil, Result{}, err
	}

	if obj.Has("milestone") {
		if obj.IsNull("milestone") {
			p.MilestoneNumber = nil
		} else if sub, ok := obj.Sub("milestone"); ok {
			mopt := opt
			if p.BaseRepoID != nil {
				mopt.RepoID = *p.BaseRepoID
			}
			m, _, err := Milestone(ctx, tx, sub, mopt)
			if err != nil {
				return nil, Result{}, err
			}
			num := m.Number
			p.MilestoneNumber = &num
		}
	}

	setInt(obj, "number", &p.Number)
	setString(obj, "state", &p.State)
	setBool(obj, "locked", &p.Locked)
	setString(obj, "title", &p.Title)
	setString(obj, "body", &p.Body)
	setBool(obj, "merged", &p.Merged)
	setBool(obj, "mergeable", &p.Mergeable)
	setString(obj, "mergeable_state", &p.MergeableState)
	setInt(obj, "comments", &p.CommentsCount)
	setInt(obj, "review_comments", &p.ReviewCommentsCount)
	setInt(obj, "commits", &p.CommitsCount)
	setInt(obj, "additions", &p.Additions)
	setInt(obj, "deletions", &p.Deletions)
	setInt(obj, "changed_files", &p.ChangedFiles)
	setTime(obj, "created_at", &p.CreatedAt)
	setTime(obj, "updated_at", &p.UpdatedAt)
	setTime(obj, "closed_at", &p.ClosedAt)
	setTime(obj, "merged_at", &p.MergedAt)

	p.Stamp(opt.Via, opt.FetchedAt)
	if err := tx.UpsertPull(ctx, p); err != nil {
		return nil, Result{}, err
	}
	return p, wrote(), nil
}

// applyBranch maintains a (repo id, ref) pair on the pull request from a
// base/head subobject. The embedded repo is replicated first so the id
// resolves; a deleted fork arrives as a null repo and clears the id while
// keeping the ref.
func applyBranch(ctx context.Context, tx store.Tx, obj payload.Object, key string, opt Options, repoID **int64, ref **string) error {
	if !obj.Has(key) {
		return nil
	}
	if obj.IsNull(key) {
		*repoID = nil
		*ref = nil
		return nil
	}
	branch, ok := obj.Sub(key)
	if !ok {
		return nil
	}
	if branch.Has("repo") {
		if branch.IsNull("repo") {
			*repoID = nil
		} else if sub, ok := branch.Sub("repo"); ok {
			r, _, err := Repository(ctx, tx, sub, opt)
			if err != nil {
				return err
			}
			rid := r.ID
			*repoID = &rid
		}
	}
	setString(branch, "ref", ref)
	return nil
}
