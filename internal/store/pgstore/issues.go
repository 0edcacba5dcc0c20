package pgstore

import (
	"context"
	"time"

	"github.com/erauner12/hubmirror/internal/model"
)

const issueCols = `id, repository_id, number, state, title, body,
	user_id, user_login, assignee_id, assignee_login, closed_by_id, closed_by_login,
	milestone_number, comments_count, created_at, updated_at, closed_at,
	last_replicated_via_webhook_at, last_replicated_via_api_at`

func (t *tx) IssueByID(ctx context.Context, id int64) (*model.Issue, error) {
	var i model.Issue
	err := t.tx.QueryRow(ctx,
		`SELECT `+issueCols+` FROM issues WHERE id = $1`, id,
	).Scan(
		&i.ID, &i.RepoID, &i.Number, &i.State, &i.Title, &i.Body,
		&i.UserID, &i.UserLogin, &i.AssigneeID, &i.AssigneeLogin, &i.ClosedByID, &i.ClosedByLogin,
		&i.MilestoneNumber, &i.CommentsCount, &i.CreatedAt, &i.UpdatedAt, &i.ClosedAt,
		&i.LastReplicatedViaWebhookAt, &i.LastReplicatedViaAPIAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &i, nil
}

func (t *tx) UpsertIssue(ctx context.Context, i *model.Issue) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO issues (`+issueCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			repository_id = EXCLUDED.repository_id,
			number = EXCLUDED.number,
			state = EXCLUDED.state,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			user_id = EXCLUDED.user_id,
			user_login = EXCLUDED.user_login,
			assignee_id = EXCLUDED.assignee_id,
			assignee_login = EXCLUDED.assignee_login,
			closed_by_id = EXCLUDED.closed_by_id,
			closed_by_login = EXCLUDED.closed_by_login,
			milestone_number = EXCLUDED.milestone_number,
			comments_count = EXCLUDED.comments_count,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			closed_at = EXCLUDED.closed_at,
			last_replicated_via_webhook_at = EXCLUDED.last_replicated_via_webhook_at,
			last_replicated_via_api_at = EXCLUDED.last_replicated_via_api_at
	`,
		i.ID, i.RepoID, i.Number, i.State, i.Title, i.Body,
		i.UserID, i.UserLogin, i.AssigneeID, i.AssigneeLogin, i.ClosedByID, i.ClosedByLogin,
		i.MilestoneNumber, i.CommentsCount, i.CreatedAt, i.UpdatedAt, i.ClosedAt,
		i.LastReplicatedViaWebhookAt, i.LastReplicatedViaAPIAt,
	)
	return mapErr(err)
}

func (t *tx) IssueLabels(ctx context.Context, issueID int64) ([]string, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT label_name FROM issue_labels WHERE issue_id = $1 ORDER BY label_name`,
		issueID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapErr(err)
		}
		names = append(names, name)
	}
	return names, mapErr(rows.Err())
}

// ReplaceIssueLabels swaps the whole assignment set. Membership is not
// channel-stamped; whoever writes the issue last owns its label set.
func (t *tx) ReplaceIssueLabels(ctx context.Context, issueID int64, names []string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM issue_labels WHERE issue_id = $1`, issueID); err != nil {
		return mapErr(err)
	}
	for _, name := range names {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO issue_labels (issue_id, label_name)
			VALUES ($1, $2)
			ON CONFLICT (issue_id, label_name) DO NOTHING
		`, issueID, name)
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (t *tx) DeleteIssuesNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error) {
	ct, err := t.tx.Exec(ctx,
		`DELETE FROM issues WHERE repository_id = $1 AND `+lastReplicated+` < $2`,
		repoID, cutoff)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}
