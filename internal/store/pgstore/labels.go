package pgstore

import (
	"context"
	"time"

	"github.com/erauner12/hubmirror/internal/model"
)

const labelCols = `repository_id, name, color,
	last_replicated_via_webhook_at, last_replicated_via_api_at`

func (t *tx) LabelByName(ctx context.Context, repoID int64, name string) (*model.IssueLabel, error) {
	var l model.IssueLabel
	err := t.tx.QueryRow(ctx,
		`SELECT `+labelCols+` FROM labels WHERE repository_id = $1 AND name = $2`,
		repoID, name,
	).Scan(&l.RepoID, &l.Name, &l.Color, &l.LastReplicatedViaWebhookAt, &l.LastReplicatedViaAPIAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

func (t *tx) UpsertLabel(ctx context.Context, l *model.IssueLabel) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO labels (`+labelCols+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (repository_id, name) DO UPDATE SET
			color = EXCLUDED.color,
			last_replicated_via_webhook_at = EXCLUDED.last_replicated_via_webhook_at,
			last_replicated_via_api_at = EXCLUDED.last_replicated_via_api_at
	`, l.RepoID, l.Name, l.Color, l.LastReplicatedViaWebhookAt, l.LastReplicatedViaAPIAt)
	return mapErr(err)
}

func (t *tx) DeleteLabelsNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error) {
	ct, err := t.tx.Exec(ctx,
		`DELETE FROM labels WHERE repository_id = $1 AND `+lastReplicated+` < $2`,
		repoID, cutoff)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}
