package pgstore

import (
	"context"
	"time"

	"github.com/erauner12/hubmirror/internal/model"
)

const hookCols = `id, repository_id, name, url, config, events, active, last_response,
	created_at, updated_at, last_replicated_via_webhook_at, last_replicated_via_api_at`

func (t *tx) HookByID(ctx context.Context, id int64) (*model.RepositoryHook, error) {
	var h model.RepositoryHook
	err := t.tx.QueryRow(ctx,
		`SELECT `+hookCols+` FROM repository_hooks WHERE id = $1`, id,
	).Scan(
		&h.ID, &h.RepoID, &h.Name, &h.URL, &h.Config, &h.Events, &h.Active, &h.LastResponse,
		&h.CreatedAt, &h.UpdatedAt, &h.LastReplicatedViaWebhookAt, &h.LastReplicatedViaAPIAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &h, nil
}

func (t *tx) UpsertHook(ctx context.Context, h *model.RepositoryHook) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO repository_hooks (`+hookCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			repository_id = EXCLUDED.repository_id,
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			config = EXCLUDED.config,
			events = EXCLUDED.events,
			active = EXCLUDED.active,
			last_response = EXCLUDED.last_response,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			last_replicated_via_webhook_at = EXCLUDED.last_replicated_via_webhook_at,
			last_replicated_via_api_at = EXCLUDED.last_replicated_via_api_at
	`,
		h.ID, h.RepoID, h.Name, h.URL, h.Config, h.Events, h.Active, h.LastResponse,
		h.CreatedAt, h.UpdatedAt, h.LastReplicatedViaWebhookAt, h.LastReplicatedViaAPIAt,
	)
	return mapErr(err)
}

func (t *tx) DeleteHooksNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error) {
	ct, err := t.tx.Exec(ctx,
		`DELETE FROM repository_hooks WHERE repository_id = $1 AND `+lastReplicated+` < $2`,
		repoID, cutoff)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}
