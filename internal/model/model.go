package model

import "time"

// Via tags which channel produced a replicated write.
type Via string

const (
	ViaWebhook Via = "webhook"
	ViaAPI     Via = "api"
)

// Replication carries the per-entity freshness clock. Every mirrored row
// records when it was last written from each channel; the effective
// last-replicated instant is the greater of the two, with absence treated
// as minimum time so the first write always lands.
type Replication struct {
	LastReplicatedViaWebhookAt *time.Time
	LastReplicatedViaAPIAt     *time.Time
}

// LastReplicatedAt returns the effective freshness instant. The zero
// time stands in for "never replicated".
func (r Replication) LastReplicatedAt() time.Time {
	var t time.Time
	if r.LastReplicatedViaWebhookAt != nil {
		t = *r.LastReplicatedViaWebhookAt
	}
	if r.LastReplicatedViaAPIAt != nil && r.LastReplicatedViaAPIAt.After(t) {
		t = *r.LastReplicatedViaAPIAt
	}
	return t
}

// Stamp records a successful write from the given channel.
func (r *Replication) Stamp(via Via, at time.Time) {
	switch via {
	case ViaWebhook:
		r.LastReplicatedViaWebhookAt = &at
	case ViaAPI:
		r.LastReplicatedViaAPIAt = &at
	}
}

// User mirrors an upstream account. Only id and login are guaranteed;
// everything else arrives piecemeal across payloads.
type User struct {
	ID    int64
	Login string

	SiteAdmin *bool
	Name      *string
	Company   *string
	Blog      *string
	Location  *string
	Email     *string
	Hireable  *bool
	Bio       *string

	PublicReposCount *int
	PublicGistsCount *int
	FollowersCount   *int
	FollowingCount   *int

	CreatedAt *time.Time
	UpdatedAt *time.Time

	ReposLastScannedAt *time.Time

	Replication
}

// Repository mirrors an upstream repository, including the scan-provenance
// columns its child scans maintain.
type Repository struct {
	ID   int64
	Name string

	OwnerID           *int64
	OwnerLogin        *string
	OrganizationID    *int64
	OrganizationLogin *string

	Private       *bool
	Description   *string
	Fork          *bool
	Homepage      *string
	Language      *string
	DefaultBranch *string

	Size            *int
	StargazersCount *int
	WatchersCount   *int
	ForksCount      *int
	OpenIssuesCount *int

	HasIssues    *bool
	HasDownloads *bool
	HasWiki      *bool
	HasPages     *bool

	CreatedAt *time.Time
	UpdatedAt *time.Time
	PushedAt  *time.Time

	IssuesLastScannedAt       *time.Time
	LabelsLastScannedAt       *time.Time
	MilestonesLastScannedAt   *time.Time
	HooksLastScannedAt        *time.Time
	PullRequestsLastScannedAt *time.Time

	Replication
}

// FullName renders owner/name for logs and lock scopes. Falls back to the
// bare name when the owner login has not been replicated yet.
func (r *Repository) FullName() string {
	if r.OwnerLogin == nil {
		return r.Name
	}
	return *r.OwnerLogin + "/" + r.Name
}

// UserRepoAssociation records the permissions a user holds on a repo, as
// reported by the user-repos listing.
type UserRepoAssociation struct {
	UserID int64
	RepoID int64

	CanPull  bool
	CanPush  bool
	CanAdmin bool

	Replication
}

// RepositoryHook mirrors a repository webhook. The url column is the
// delivery target from config["url"], not the hook's API url.
type RepositoryHook struct {
	ID     int64
	RepoID *int64

	Name         *string
	URL          *string
	Config       map[string]any
	Events       []string
	Active       *bool
	LastResponse map[string]any

	CreatedAt *time.Time
	UpdatedAt *time.Time

	Replication
}

// Milestone is keyed by (repo_id, number); upstream milestone ids are not
// stable across repo transfers, numbers are.
type Milestone struct {
	RepoID int64
	Number int

	State       *string
	Title       *string
	Description *string

	CreatorID    *int64
	CreatorLogin *string

	OpenIssuesCount   *int
	ClosedIssuesCount *int

	CreatedAt *time.Time
	UpdatedAt *time.Time
	ClosedAt  *time.Time
	DueAt     *time.Time

	Replication
}

// IssueLabel is keyed by (repo_id, name).
type IssueLabel struct {
	RepoID int64
	Name   string

	Color *string

	Replication
}

// Issue mirrors an upstream issue. Label membership lives in a separate
// association set replaced atomically by the processor.
type Issue struct {
	ID     int64
	RepoID *int64

	Number *int
	State  *string
	Title  *string
	Body   *string

	UserID        *int64
	UserLogin     *string
	AssigneeID    *int64
	AssigneeLogin *string
	ClosedByID    *int64
	ClosedByLogin *string

	MilestoneNumber *int
	CommentsCount   *int

	CreatedAt *time.Time
	UpdatedAt *time.Time
	ClosedAt  *time.Time

	Replication
}

// PullRequest mirrors an upstream pull request, with base/head recorded as
// (repo id, ref) pairs and a scan column for its file listing.
type PullRequest struct {
	ID int64

	Number *int
	State  *string
	Locked *bool
	Title  *string
	Body   *string

	UserID        *int64
	UserLogin     *string
	AssigneeID    *int64
	AssigneeLogin *string
	MergedByID    *int64
	MergedByLogin *string

	BaseRepoID *int64
	BaseRef    *string
	HeadRepoID *int64
	HeadRef    *string

	MilestoneNumber *int

	Merged         *bool
	Mergeable      *bool
	MergeableState *string

	CommentsCount       *int
	ReviewCommentsCount *int
	CommitsCount        *int
	Additions           *int
	Deletions           *int
	ChangedFiles        *int

	CreatedAt *time.Time
	UpdatedAt *time.Time
	ClosedAt  *time.Time
	MergedAt  *time.Time

	FilesLastScannedAt *time.Time

	Replication
}

// PullRequestFile is keyed by (pull_request_id, sha). Renamed files arrive
// without a sha and are skipped rather than stored.
type PullRequestFile struct {
	PullRequestID int64
	SHA           string

	Filename *string
	Status   *string

	Additions *int
	Deletions *int
	Changes   *int

	Patch *string

	Replication
}

// Mutex is a named single-row lock guarding one scan scope.
type Mutex struct {
	Name      string
	Holder    *string
	CreatedAt time.Time
}
