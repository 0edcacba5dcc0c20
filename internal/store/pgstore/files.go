package pgstore

import (
	"context"
	"time"

	"github.com/erauner12/hubmirror/internal/model"
)

const fileCols = `pull_request_id, sha, filename, status, additions, deletions, changes, patch,
	last_replicated_via_webhook_at, last_replicated_via_api_at`

func (t *tx) PullFileBySHA(ctx context.Context, pullID int64, sha string) (*model.PullRequestFile, error) {
	var f model.PullRequestFile
	err := t.tx.QueryRow(ctx,
		`SELECT `+fileCols+` FROM pull_request_files WHERE pull_request_id = $1 AND sha = $2`,
		pullID, sha,
	).Scan(
		&f.PullRequestID, &f.SHA, &f.Filename, &f.Status, &f.Additions, &f.Deletions, &f.Changes, &f.Patch,
		&f.LastReplicatedViaWebhookAt, &f.LastReplicatedViaAPIAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &f, nil
}

func (t *tx) UpsertPullFile(ctx context.Context, f *model.PullRequestFile) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO pull_request_files (`+fileCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (pull_request_id, sha) DO UPDATE SET
			filename = EXCLUDED.filename,
			status = EXCLUDED.status,
			additions = EXCLUDED.additions,
			deletions = EXCLUDED.deletions,
			changes = EXCLUDED.changes,
			patch = EXCLUDED.patch,
			last_replicated_via_webhook_at = EXCLUDED.last_replicated_via_webhook_at,
			last_replicated_via_api_at = EXCLUDED.last_replicated_via_api_at
	`,
		f.PullRequestID, f.SHA, f.Filename, f.Status, f.Additions, f.Deletions, f.Changes, f.Patch,
		f.LastReplicatedViaWebhookAt, f.LastReplicatedViaAPIAt,
	)
	return mapErr(err)
}

// DeletePullFiles clears the whole file set for one pull request. Used by
// the synchronous replacement path before reinserting the current listing.
func (t *tx) DeletePullFiles(ctx context.Context, pullID int64) (int64, error) {
	ct, err := t.tx.Exec(ctx,
		`DELETE FROM pull_request_files WHERE pull_request_id = $1`, pullID)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}

func (t *tx) DeletePullFilesNotSeen(ctx context.Context, pullID int64, cutoff time.Time) (int64, error) {
	ct, err := t.tx.Exec(ctx,
		`DELETE FROM pull_request_files WHERE pull_request_id = $1 AND `+lastReplicated+` < $2`,
		pullID, cutoff)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}
