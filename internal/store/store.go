// Package store defines the persistence contract for the mirror.
//
// Writers operate on an explicit unit of work (Tx): a processor stages all
// of its row writes on one Tx and the caller decides whether to commit.
// Mutex acquisition deliberately lives outside the unit of work because a
// lock must be visible to other workers immediately, not at commit time.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/erauner12/hubmirror/internal/model"
)

var (
	// ErrNotFound means no row matched the lookup.
	ErrNotFound = errors.New("store: not found")

	// ErrIntegrity means a unique or primary-key constraint rejected a
	// write; the caller lost an insertion race and may retry.
	ErrIntegrity = errors.New("store: integrity violation")

	// ErrAmbiguous means a supposedly-unique lookup matched multiple
	// rows. This indicates corrupted mirror state and is fatal for the
	// running job.
	ErrAmbiguous = errors.New("store: ambiguous lookup")
)

// Store opens units of work and owns the scan mutex registry.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	// AcquireMutex inserts the named lock row. It returns false when the
	// row already exists (scan already running) and true when this caller
	// now holds the lock.
	AcquireMutex(ctx context.Context, name, holder string) (bool, error)

	// ReleaseMutex deletes the named lock row. Releasing an absent lock
	// is not an error.
	ReleaseMutex(ctx context.Context, name string) error
}

// Tx is one unit of work. All reads observe the transaction's own staged
// writes. Delete*NotSeen methods implement scan reaping: they remove rows
// under the given parent whose effective last-replicated instant is
// strictly before the cutoff.
type Tx interface {
	UserByID(ctx context.Context, id int64) (*model.User, error)
	UpsertUser(ctx context.Context, u *model.User) error

	RepoByID(ctx context.Context, id int64) (*model.Repository, error)
	RepoByFullName(ctx context.Context, owner, name string) (*model.Repository, error)
	UpsertRepo(ctx context.Context, r *model.Repository) error
	DeleteReposNotSeen(ctx context.Context, ownerID int64, cutoff time.Time) (int64, error)

	UpsertUserRepoAssociation(ctx context.Context, a *model.UserRepoAssociation) error

	HookByID(ctx context.Context, id int64) (*model.RepositoryHook, error)
	UpsertHook(ctx context.Context, h *model.RepositoryHook) error
	DeleteHooksNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error)

	MilestoneByNumber(ctx context.Context, repoID int64, number int) (*model.Milestone, error)
	UpsertMilestone(ctx context.Context, m *model.Milestone) error
	DeleteMilestonesNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error)

	LabelByName(ctx context.Context, repoID int64, name string) (*model.IssueLabel, error)
	UpsertLabel(ctx context.Context, l *model.IssueLabel) error
	DeleteLabelsNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error)

	IssueByID(ctx context.Context, id int64) (*model.Issue, error)
	UpsertIssue(ctx context.Context, i *model.Issue) error
	IssueLabels(ctx context.Context, issueID int64) ([]string, error)
	ReplaceIssueLabels(ctx context.Context, issueID int64, names []string) error
	DeleteIssuesNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error)

	PullByID(ctx context.Context, id int64) (*model.PullRequest, error)
	PullByNumber(ctx context.Context, owner, name string, number int) (*model.PullRequest, error)
	UpsertPull(ctx context.Context, p *model.PullRequest) error
	DeletePullsNotSeen(ctx context.Context, baseRepoID int64, cutoff time.Time) (int64, error)

	PullFileBySHA(ctx context.Context, pullID int64, sha string) (*model.PullRequestFile, error)
	UpsertPullFile(ctx context.Context, f *model.PullRequestFile) error
	DeletePullFiles(ctx context.Context, pullID int64) (int64, error)
	DeletePullFilesNotSeen(ctx context.Context, pullID int64, cutoff time.Time) (int64, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
