package pgstore

import (
	"context"
	"time"

	"github.com/erauner12/hubmirror/internal/model"
)

const milestoneCols = `repository_id, number, state, title, description,
	creator_id, creator_login, open_issues_count, closed_issues_count,
	created_at, updated_at, closed_at, due_at,
	last_replicated_via_webhook_at, last_replicated_via_api_at`

func (t *tx) MilestoneByNumber(ctx context.Context, repoID int64, number int) (*model.Milestone, error) {
	var m model.Milestone
	err := t.tx.QueryRow(ctx,
		`SELECT `+milestoneCols+` FROM milestones WHERE repository_id = $1 AND number = $2`,
		repoID, number,
	).Scan(
		&m.RepoID, &m.Number, &m.State, &m.Title, &m.Description,
		&m.CreatorID, &m.CreatorLogin, &m.OpenIssuesCount, &m.ClosedIssuesCount,
		&m.CreatedAt, &m.UpdatedAt, &m.ClosedAt, &m.DueAt,
		&m.LastReplicatedViaWebhookAt, &m.LastReplicatedViaAPIAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (t *tx) UpsertMilestone(ctx context.Context, m *model.Milestone) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO milestones (`+milestoneCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (repository_id, number) DO UPDATE SET
			state = EXCLUDED.state,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			creator_id = EXCLUDED.creator_id,
			creator_login = EXCLUDED.creator_login,
			open_issues_count = EXCLUDED.open_issues_count,
			closed_issues_count = EXCLUDED.closed_issues_count,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			closed_at = EXCLUDED.closed_at,
			due_at = EXCLUDED.due_at,
			last_replicated_via_webhook_at = EXCLUDED.last_replicated_via_webhook_at,
			last_replicated_via_api_at = EXCLUDED.last_replicated_via_api_at
	`,
		m.RepoID, m.Number, m.State, m.Title, m.Description,
		m.CreatorID, m.CreatorLogin, m.OpenIssuesCount, m.ClosedIssuesCount,
		m.CreatedAt, m.UpdatedAt, m.ClosedAt, m.DueAt,
		m.LastReplicatedViaWebhookAt, m.LastReplicatedViaAPIAt,
	)
	return mapErr(err)
}

func (t *tx) DeleteMilestonesNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error) {
	ct, err := t.tx.Exec(ctx,
		`DELETE FROM milestones WHERE repository_id = $1 AND `+lastReplicated+` < $2`,
		repoID, cutoff)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}
