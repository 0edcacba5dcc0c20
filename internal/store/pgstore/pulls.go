package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/store"
)

const pullCols = `id, number, state, locked, title, body,
	user_id, user_login, assignee_id, assignee_login, merged_by_id, merged_by_login,
	base_repository_id, base_ref, head_repository_id, head_ref,
	milestone_number, merged, mergeable, mergeable_state,
	comments_count, review_comments_count, commits_count, additions, deletions, changed_files,
	created_at, updated_at, closed_at, merged_at, files_last_scanned_at,
	last_replicated_via_webhook_at, last_replicated_via_api_at`

func scanPull(row pgx.Row) (*model.PullRequest, error) {
	var p model.PullRequest
	err := row.Scan(
		&p.ID, &p.Number, &p.State, &p.Locked, &p.Title, &p.Body,
		&p.UserID, &p.UserLogin, &p.AssigneeID, &p.AssigneeLogin, &p.MergedByID, &p.MergedByLogin,
		&p.BaseRepoID, &p.BaseRef, &p.HeadRepoID, &p.HeadRef,
		&p.MilestoneNumber, &p.Merged, &p.Mergeable, &p.MergeableState,
		&p.CommentsCount, &p.ReviewCommentsCount, &p.CommitsCount, &p.Additions, &p.Deletions, &p.ChangedFiles,
		&p.CreatedAt, &p.UpdatedAt, &p.ClosedAt, &p.MergedAt, &p.FilesLastScannedAt,
		&p.LastReplicatedViaWebhookAt, &p.LastReplicatedViaAPIAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (t *tx) PullByID(ctx context.Context, id int64) (*model.PullRequest, error) {
	return scanPull(t.tx.QueryRow(ctx,
		`SELECT `+pullCols+` FROM pull_requests WHERE id = $1`, id))
}

// PullByNumber resolves owner/name#number through the repositories table.
// Like RepoByFullName, more than one hit is a fault rather than a pick.
func (t *tx) PullByNumber(ctx context.Context, owner, name string, number int) (*model.PullRequest, error) {
	repo, err := t.RepoByFullName(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx,
		`SELECT `+pullCols+` FROM pull_requests WHERE base_repository_id = $1 AND number = $2 LIMIT 2`,
		repo.ID, number)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var found []*model.PullRequest
	for rows.Next() {
		p, err := scanPull(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	switch len(found) {
	case 0:
		return nil, store.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("pull requests numbered %s/%s#%d: %w", owner, name, number, store.ErrAmbiguous)
	}
}

func (t *tx) UpsertPull(ctx context.Context, p *model.PullRequest) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO pull_requests (`+pullCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33)
		ON CONFLICT (id) DO UPDATE SET
			number = EXCLUDED.number,
			state = EXCLUDED.state,
			locked = EXCLUDED.locked,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			user_id = EXCLUDED.user_id,
			user_login = EXCLUDED.user_login,
			assignee_id = EXCLUDED.assignee_id,
			assignee_login = EXCLUDED.assignee_login,
			merged_by_id = EXCLUDED.merged_by_id,
			merged_by_login = EXCLUDED.merged_by_login,
			base_repository_id = EXCLUDED.base_repository_id,
			base_ref = EXCLUDED.base_ref,
			head_repository_id = EXCLUDED.head_repository_id,
			head_ref = EXCLUDED.head_ref,
			milestone_number = EXCLUDED.milestone_number,
			merged = EXCLUDED.merged,
			mergeable = EXCLUDED.mergeable,
			mergeable_state = EXCLUDED.mergeable_state,
			comments_count = EXCLUDED.comments_count,
			review_comments_count = EXCLUDED.review_comments_count,
			commits_count = EXCLUDED.commits_count,
			additions = EXCLUDED.additions,
			deletions = EXCLUDED.deletions,
			changed_files = EXCLUDED.changed_files,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			closed_at = EXCLUDED.closed_at,
			merged_at = EXCLUDED.merged_at,
			files_last_scanned_at = EXCLUDED.files_last_scanned_at,
			last_replicated_via_webhook_at = EXCLUDED.last_replicated_via_webhook_at,
			last_replicated_via_api_at = EXCLUDED.last_replicated_via_api_at
	`,
		p.ID, p.Number, p.State, p.Locked, p.Title, p.Body,
		p.UserID, p.UserLogin, p.AssigneeID, p.AssigneeLogin, p.MergedByID, p.MergedByLogin,
		p.BaseRepoID, p.BaseRef, p.HeadRepoID, p.HeadRef,
		p.MilestoneNumber, p.Merged, p.Mergeable, p.MergeableState,
		p.CommentsCount, p.ReviewCommentsCount, p.CommitsCount, p.Additions, p.Deletions, p.ChangedFiles,
		p.CreatedAt, p.UpdatedAt, p.ClosedAt, p.MergedAt, p.FilesLastScannedAt,
		p.LastReplicatedViaWebhookAt, p.LastReplicatedViaAPIAt,
	)
	return mapErr(err)
}

func (t *tx) DeletePullsNotSeen(ctx context.Context, baseRepoID int64, cutoff time.Time) (int64, error) {
	ct, err := t.tx.Exec(ctx,
		`DELETE FROM pull_requests WHERE base_repository_id = $1 AND `+lastReplicated+` < $2`,
		baseRepoID, cutoff)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}
