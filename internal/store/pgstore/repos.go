package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/store"
)

const repoCols = `id, name, owner_id, owner_login, organization_id, organization_login,
	private, description, fork, homepage, language, default_branch,
	size, stargazers_count, watchers_count, forks_count, open_issues_count,
	has_issues, has_downloads, has_wiki, has_pages,
	created_at, updated_at, pushed_at,
	issues_last_scanned_at, labels_last_scanned_at, milestones_last_scanned_at,
	hooks_last_scanned_at, pull_requests_last_scanned_at,
	last_replicated_via_webhook_at, last_replicated_via_api_at`

func scanRepo(row pgx.Row) (*model.Repository, error) {
	var r model.Repository
	err := row.Scan(
		&r.ID, &r.Name, &r.OwnerID, &r.OwnerLogin, &r.OrganizationID, &r.OrganizationLogin,
		&r.Private, &r.Description, &r.Fork, &r.Homepage, &r.Language, &r.DefaultBranch,
		&r.Size, &r.StargazersCount, &r.WatchersCount, &r.ForksCount, &r.OpenIssuesCount,
		&r.HasIssues, &r.HasDownloads, &r.HasWiki, &r.HasPages,
		&r.CreatedAt, &r.UpdatedAt, &r.PushedAt,
		&r.IssuesLastScannedAt, &r.LabelsLastScannedAt, &r.MilestonesLastScannedAt,
		&r.HooksLastScannedAt, &r.PullRequestsLastScannedAt,
		&r.LastReplicatedViaWebhookAt, &r.LastReplicatedViaAPIAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (t *tx) RepoByID(ctx context.Context, id int64) (*model.Repository, error) {
	return scanRepo(t.tx.QueryRow(ctx,
		`SELECT `+repoCols+` FROM repositories WHERE id = $1`, id))
}

// RepoByFullName resolves owner/name to a single repository. More than one
// match means the mirror briefly holds both sides of a rename+recreate;
// callers treat that as a database-level fault, not as either row.
func (t *tx) RepoByFullName(ctx context.Context, owner, name string) (*model.Repository, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+repoCols+` FROM repositories WHERE owner_login = $1 AND name = $2 LIMIT 2`,
		owner, name)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var found []*model.Repository
	for rows.Next() {
		r, err := scanRepo(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
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
		return nil, fmt.Errorf("repositories named %s/%s: %w", owner, name, store.ErrAmbiguous)
	}
}

func (t *tx) UpsertRepo(ctx context.Context, r *model.Repository) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO repositories (`+repoCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			owner_id = EXCLUDED.owner_id,
			owner_login = EXCLUDED.owner_login,
			organization_id = EXCLUDED.organization_id,
			organization_login = EXCLUDED.organization_login,
			private = EXCLUDED.private,
			description = EXCLUDED.description,
			fork = EXCLUDED.fork,
			homepage = EXCLUDED.homepage,
			language = EXCLUDED.language,
			default_branch = EXCLUDED.default_branch,
			size = EXCLUDED.size,
			stargazers_count = EXCLUDED.stargazers_count,
			watchers_count = EXCLUDED.watchers_count,
			forks_count = EXCLUDED.forks_count,
			open_issues_count = EXCLUDED.open_issues_count,
			has_issues = EXCLUDED.has_issues,
			has_downloads = EXCLUDED.has_downloads,
			has_wiki = EXCLUDED.has_wiki,
			has_pages = EXCLUDED.has_pages,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			pushed_at = EXCLUDED.pushed_at,
			issues_last_scanned_at = EXCLUDED.issues_last_scanned_at,
			labels_last_scanned_at = EXCLUDED.labels_last_scanned_at,
			milestones_last_scanned_at = EXCLUDED.milestones_last_scanned_at,
			hooks_last_scanned_at = EXCLUDED.hooks_last_scanned_at,
			pull_requests_last_scanned_at = EXCLUDED.pull_requests_last_scanned_at,
			last_replicated_via_webhook_at = EXCLUDED.last_replicated_via_webhook_at,
			last_replicated_via_api_at = EXCLUDED.last_replicated_via_api_at
	`,
		r.ID, r.Name, r.OwnerID, r.OwnerLogin, r.OrganizationID, r.OrganizationLogin,
		r.Private, r.Description, r.Fork, r.Homepage, r.Language, r.DefaultBranch,
		r.Size, r.StargazersCount, r.WatchersCount, r.ForksCount, r.OpenIssuesCount,
		r.HasIssues, r.HasDownloads, r.HasWiki, r.HasPages,
		r.CreatedAt, r.UpdatedAt, r.PushedAt,
		r.IssuesLastScannedAt, r.LabelsLastScannedAt, r.MilestonesLastScannedAt,
		r.HooksLastScannedAt, r.PullRequestsLastScannedAt,
		r.LastReplicatedViaWebhookAt, r.LastReplicatedViaAPIAt,
	)
	return mapErr(err)
}

// DeleteReposNotSeen reaps repos under one owner whose freshness predates
// the cutoff. Repo-scoped children go with them via ON DELETE CASCADE.
func (t *tx) DeleteReposNotSeen(ctx context.Context, ownerID int64, cutoff time.Time) (int64, error) {
	ct, err := t.tx.Exec(ctx,
		`DELETE FROM repositories WHERE owner_id = $1 AND `+lastReplicated+` < $2`,
		ownerID, cutoff)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}

func (t *tx) UpsertUserRepoAssociation(ctx context.Context, a *model.UserRepoAssociation) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_repositories (user_id, repository_id, can_pull, can_push, can_admin,
			last_replicated_via_webhook_at, last_replicated_via_api_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, repository_id) DO UPDATE SET
			can_pull = EXCLUDED.can_pull,
			can_push = EXCLUDED.can_push,
			can_admin = EXCLUDED.can_admin,
			last_replicated_via_webhook_at = EXCLUDED.last_replicated_via_webhook_at,
			last_replicated_via_api_at = EXCLUDED.last_replicated_via_api_at
	`,
		a.UserID, a.RepoID, a.CanPull, a.CanPush, a.CanAdmin,
		a.LastReplicatedViaWebhookAt, a.LastReplicatedViaAPIAt,
	)
	return mapErr(err)
}
