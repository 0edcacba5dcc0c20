package pgstore

import (
	"context"

	"github.com/erauner12/hubmirror/internal/model"
)

const userCols = `id, login, site_admin, name, company, blog, location, email,
	hireable, bio, public_repos_count, public_gists_count, followers_count,
	following_count, created_at, updated_at, repos_last_scanned_at,
	last_replicated_via_webhook_at, last_replicated_via_api_at`

func (t *tx) UserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := t.tx.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id,
	).Scan(
		&u.ID, &u.Login, &u.SiteAdmin, &u.Name, &u.Company, &u.Blog, &u.Location, &u.Email,
		&u.Hireable, &u.Bio, &u.PublicReposCount, &u.PublicGistsCount, &u.FollowersCount,
		&u.FollowingCount, &u.CreatedAt, &u.UpdatedAt, &u.ReposLastScannedAt,
		&u.LastReplicatedViaWebhookAt, &u.LastReplicatedViaAPIAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (t *tx) UpsertUser(ctx context.Context, u *model.User) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO users (`+userCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			login = EXCLUDED.login,
			site_admin = EXCLUDED.site_admin,
			name = EXCLUDED.name,
			company = EXCLUDED.company,
			blog = EXCLUDED.blog,
			location = EXCLUDED.location,
			email = EXCLUDED.email,
			hireable = EXCLUDED.hireable,
			bio = EXCLUDED.bio,
			public_repos_count = EXCLUDED.public_repos_count,
			public_gists_count = EXCLUDED.public_gists_count,
			followers_count = EXCLUDED.followers_count,
			following_count = EXCLUDED.following_count,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			repos_last_scanned_at = EXCLUDED.repos_last_scanned_at,
			last_replicated_via_webhook_at = EXCLUDED.last_replicated_via_webhook_at,
			last_replicated_via_api_at = EXCLUDED.last_replicated_via_api_at
	`,
		u.ID, u.Login, u.SiteAdmin, u.Name, u.Company, u.Blog, u.Location, u.Email,
		u.Hireable, u.Bio, u.PublicReposCount, u.PublicGistsCount, u.FollowersCount,
		u.FollowingCount, u.CreatedAt, u.UpdatedAt, u.ReposLastScannedAt,
		u.LastReplicatedViaWebhookAt, u.LastReplicatedViaAPIAt,
	)
	return mapErr(err)
}
