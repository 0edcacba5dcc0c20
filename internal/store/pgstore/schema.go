package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. Foreign keys cascade only
// where the child is unambiguously owned by the parent: repo-scoped rows
// follow their repository, file rows follow their pull request, label
// assignments follow their issue. User references and head_repository_id
// stay plain indexed columns because those rows outlive each other.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                            BIGINT PRIMARY KEY,
	login                         TEXT NOT NULL,
	site_admin                    BOOLEAN,
	name                          TEXT,
	company                       TEXT,
	blog                          TEXT,
	location                      TEXT,
	email                         TEXT,
	hireable                      BOOLEAN,
	bio                           TEXT,
	public_repos_count            INTEGER,
	public_gists_count            INTEGER,
	followers_count               INTEGER,
	following_count               INTEGER,
	created_at                    TIMESTAMPTZ,
	updated_at                    TIMESTAMPTZ,
	repos_last_scanned_at         TIMESTAMPTZ,
	last_replicated_via_webhook_at TIMESTAMPTZ,
	last_replicated_via_api_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS users_login_idx ON users (login);

CREATE TABLE IF NOT EXISTS repositories (
	id                            BIGINT PRIMARY KEY,
	name                          TEXT NOT NULL,
	owner_id                      BIGINT,
	owner_login                   TEXT,
	organization_id               BIGINT,
	organization_login            TEXT,
	private                       BOOLEAN,
	description                   TEXT,
	fork                          BOOLEAN,
	homepage                      TEXT,
	language                      TEXT,
	default_branch                TEXT,
	size                          INTEGER,
	stargazers_count              INTEGER,
	watchers_count                INTEGER,
	forks_count                   INTEGER,
	open_issues_count             INTEGER,
	has_issues                    BOOLEAN,
	has_downloads                 BOOLEAN,
	has_wiki                      BOOLEAN,
	has_pages                     BOOLEAN,
	created_at                    TIMESTAMPTZ,
	updated_at                    TIMESTAMPTZ,
	pushed_at                     TIMESTAMPTZ,
	issues_last_scanned_at        TIMESTAMPTZ,
	labels_last_scanned_at        TIMESTAMPTZ,
	milestones_last_scanned_at    TIMESTAMPTZ,
	hooks_last_scanned_at         TIMESTAMPTZ,
	pull_requests_last_scanned_at TIMESTAMPTZ,
	last_replicated_via_webhook_at TIMESTAMPTZ,
	last_replicated_via_api_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS repositories_owner_login_name_idx ON repositories (owner_login, name);
CREATE INDEX IF NOT EXISTS repositories_owner_id_idx ON repositories (owner_id);

CREATE TABLE IF NOT EXISTS user_repositories (
	user_id                       BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	repository_id                 BIGINT NOT NULL REFERENCES repositories (id) ON DELETE CASCADE,
	can_pull                      BOOLEAN NOT NULL DEFAULT FALSE,
	can_push                      BOOLEAN NOT NULL DEFAULT FALSE,
	can_admin                     BOOLEAN NOT NULL DEFAULT FALSE,
	last_replicated_via_webhook_at TIMESTAMPTZ,
	last_replicated_via_api_at     TIMESTAMPTZ,
	PRIMARY KEY (user_id, repository_id)
);

CREATE TABLE IF NOT EXISTS repository_hooks (
	id                            BIGINT PRIMARY KEY,
	repository_id                 BIGINT REFERENCES repositories (id) ON DELETE CASCADE,
	name                          TEXT,
	url                           TEXT,
	config                        JSONB,
	events                        TEXT[],
	active                        BOOLEAN,
	last_response                 JSONB,
	created_at                    TIMESTAMPTZ,
	updated_at                    TIMESTAMPTZ,
	last_replicated_via_webhook_at TIMESTAMPTZ,
	last_replicated_via_api_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS repository_hooks_repository_id_idx ON repository_hooks (repository_id);

CREATE TABLE IF NOT EXISTS milestones (
	repository_id                 BIGINT NOT NULL REFERENCES repositories (id) ON DELETE CASCADE,
	number                        INTEGER NOT NULL,
	state                         TEXT,
	title                         TEXT,
	description                   TEXT,
	creator_id                    BIGINT,
	creator_login                 TEXT,
	open_issues_count             INTEGER,
	closed_issues_count           INTEGER,
	created_at                    TIMESTAMPTZ,
	updated_at                    TIMESTAMPTZ,
	closed_at                     TIMESTAMPTZ,
	due_at                        TIMESTAMPTZ,
	last_replicated_via_webhook_at TIMESTAMPTZ,
	last_replicated_via_api_at     TIMESTAMPTZ,
	PRIMARY KEY (repository_id, number)
);

CREATE TABLE IF NOT EXISTS labels (
	repository_id                 BIGINT NOT NULL REFERENCES repositories (id) ON DELETE CASCADE,
	name                          TEXT NOT NULL,
	color                         TEXT,
	last_replicated_via_webhook_at TIMESTAMPTZ,
	last_replicated_via_api_at     TIMESTAMPTZ,
	PRIMARY KEY (repository_id, name)
);

CREATE TABLE IF NOT EXISTS issues (
	id                            BIGINT PRIMARY KEY,
	repository_id                 BIGINT REFERENCES repositories (id) ON DELETE CASCADE,
	number                        INTEGER,
	state                         TEXT,
	title                         TEXT,
	body                          TEXT,
	user_id                       BIGINT,
	user_login                    TEXT,
	assignee_id                   BIGINT,
	assignee_login                TEXT,
	closed_by_id                  BIGINT,
	closed_by_login               TEXT,
	milestone_number              INTEGER,
	comments_count                INTEGER,
	created_at                    TIMESTAMPTZ,
	updated_at                    TIMESTAMPTZ,
	closed_at                     TIMESTAMPTZ,
	last_replicated_via_webhook_at TIMESTAMPTZ,
	last_replicated_via_api_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS issues_repository_id_idx ON issues (repository_id);

CREATE TABLE IF NOT EXISTS issue_labels (
	issue_id                      BIGINT NOT NULL REFERENCES issues (id) ON DELETE CASCADE,
	label_name                    TEXT NOT NULL,
	PRIMARY KEY (issue_id, label_name)
);

CREATE TABLE IF NOT EXISTS pull_requests (
	id                            BIGINT PRIMARY KEY,
	number                        INTEGER,
	state                         TEXT,
	locked                        BOOLEAN,
	title                         TEXT,
	body                          TEXT,
	user_id                       BIGINT,
	user_login                    TEXT,
	assignee_id                   BIGINT,
	assignee_login                TEXT,
	merged_by_id                  BIGINT,
	merged_by_login               TEXT,
	base_repository_id            BIGINT REFERENCES repositories (id) ON DELETE CASCADE,
	base_ref                      TEXT,
	head_repository_id            BIGINT,
	head_ref                      TEXT,
	milestone_number              INTEGER,
	merged                        BOOLEAN,
	mergeable                     BOOLEAN,
	mergeable_state               TEXT,
	comments_count                INTEGER,
	review_comments_count         INTEGER,
	commits_count                 INTEGER,
	additions                     INTEGER,
	deletions                     INTEGER,
	changed_files                 INTEGER,
	created_at                    TIMESTAMPTZ,
	updated_at                    TIMESTAMPTZ,
	closed_at                     TIMESTAMPTZ,
	merged_at                     TIMESTAMPTZ,
	files_last_scanned_at         TIMESTAMPTZ,
	last_replicated_via_webhook_at TIMESTAMPTZ,
	last_replicated_via_api_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS pull_requests_base_repo_number_idx ON pull_requests (base_repository_id, number);

CREATE TABLE IF NOT EXISTS pull_request_files (
	pull_request_id               BIGINT NOT NULL REFERENCES pull_requests (id) ON DELETE CASCADE,
	sha                           TEXT NOT NULL,
	filename                      TEXT,
	status                        TEXT,
	additions                     INTEGER,
	deletions                     INTEGER,
	changes                       INTEGER,
	patch                         TEXT,
	last_replicated_via_webhook_at TIMESTAMPTZ,
	last_replicated_via_api_at     TIMESTAMPTZ,
	PRIMARY KEY (pull_request_id, sha)
);

CREATE TABLE IF NOT EXISTS mutexes (
	name                          TEXT PRIMARY KEY,
	holder                        TEXT,
	created_at                    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
