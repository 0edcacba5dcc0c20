package scan

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/erauner12/hubmirror/internal/jobs"
	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/replicate"
	"github.com/erauner12/hubmirror/internal/store"
)

// IssuesScan walks a repository's issue listing. State follows the GitHub
// list parameter and defaults to all so closed issues stay mirrored.
func (s *Syncer) IssuesScan(requestor, owner, name, state string) jobs.Job {
	if state == "" {
		state = "all"
	}
	full := owner + "/" + name
	var repoID int64
	sc := &scanScope{
		name:  "scan-issues",
		args:  []string{full, "state=" + state},
		mutex: repoMutex(owner, name, "issues"),
		path:  fmt.Sprintf("/repos/%s/%s/issues", owner, name),
		query: url.Values{"state": {state}},
		prepare: func(ctx context.Context) error {
			repoID = s.lookupRepoID(ctx, owner, name)
			return nil
		},
		item: func(ctx context.Context, tx store.Tx, obj payload.Object, fetchedAt time.Time) (replicate.Result, error) {
			_, res, err := replicate.Issue(ctx, tx, obj, replicate.Options{
				Via: model.ViaAPI, FetchedAt: fetchedAt, RepoID: repoID,
			})
			return res, err
		},
		finalize: func(ctx context.Context, tx store.Tx, startedAt time.Time) (int64, error) {
			r, err := tx.RepoByFullName(ctx, owner, name)
			if err != nil {
				return 0, err
			}
			prev := r.IssuesLastScannedAt
			st := startedAt
			r.IssuesLastScannedAt = &st
			if err := tx.UpsertRepo(ctx, r); err != nil {
				return 0, err
			}
			if prev == nil {
				return 0, nil
			}
			return tx.DeleteIssuesNotSeen(ctx, r.ID, *prev)
		},
	}
	return &scanJob{s: s, requestor: requestor, scope: sc}
}

// LabelsScan walks a repository's label listing.
func (s *Syncer) LabelsScan(requestor, owner, name string) jobs.Job {
	full := owner + "/" + name
	var repoID int64
	sc := &scanScope{
		name:  "scan-labels",
		args:  []string{full},
		mutex: repoMutex(owner, name, "labels"),
		path:  fmt.Sprintf("/repos/%s/%s/labels", owner, name),
		prepare: func(ctx context.Context) error {
			repoID = s.lookupRepoID(ctx, owner, name)
			return nil
		},
		item: func(ctx context.Context, tx store.Tx, obj payload.Object, fetchedAt time.Time) (replicate.Result, error) {
			_, res, err := replicate.Label(ctx, tx, obj, replicate.Options{
				Via: model.ViaAPI, FetchedAt: fetchedAt, RepoID: repoID,
			})
			return res, err
		},
		finalize: func(ctx context.Context, tx store.Tx, startedAt time.Time) (int64, error) {
			r, err := tx.RepoByFullName(ctx, owner, name)
			if err != nil {
				return 0, err
			}
			prev := r.LabelsLastScannedAt
			st := startedAt
			r.LabelsLastScannedAt = &st
			if err := tx.UpsertRepo(ctx, r); err != nil {
				return 0, err
			}
			if prev == nil {
				return 0, nil
			}
			return tx.DeleteLabelsNotSeen(ctx, r.ID, *prev)
		},
	}
	return &scanJob{s: s, requestor: requestor, scope: sc}
}

// MilestonesScan walks a repository's milestone listing.
func (s *Syncer) MilestonesScan(requestor, owner, name, state string) jobs.Job {
	if state == "" {
		state = "all"
	}
	full := owner + "/" + name
	var repoID int64
	sc := &scanScope{
		name:  "scan-milestones",
		args:  []string{full, "state=" + state},
		mutex: repoMutex(owner, name, "milestones"),
		path:  fmt.Sprintf("/repos/%s/%s/milestones", owner, name),
		query: url.Values{"state": {state}},
		prepare: func(ctx context.Context) error {
			repoID = s.lookupRepoID(ctx, owner, name)
			return nil
		},
		item: func(ctx context.Context, tx store.Tx, obj payload.Object, fetchedAt time.Time) (replicate.Result, error) {
			_, res, err := replicate.Milestone(ctx, tx, obj, replicate.Options{
				Via: model.ViaAPI, FetchedAt: fetchedAt, RepoID: repoID,
			})
			return res, err
		},
		finalize: func(ctx context.Context, tx store.Tx, startedAt time.Time) (int64, error) {
			r, err := tx.RepoByFullName(ctx, owner, name)
			if err != nil {
				return 0, err
			}
			prev := r.MilestonesLastScannedAt
			st := startedAt
			r.MilestonesLastScannedAt = &st
			if err := tx.UpsertRepo(ctx, r); err != nil {
				return 0, err
			}
			if prev == nil {
				return 0, nil
			}
			return tx.DeleteMilestonesNotSeen(ctx, r.ID, *prev)
		},
	}
	return &scanJob{s: s, requestor: requestor, scope: sc}
}

// HooksScan walks a repository's webhook listing. Hook listings are only
// visible to users with admin access, so the scan fails upstream when the
// requestor's token lacks it.
func (s *Syncer) HooksScan(requestor, owner, name string) jobs.Job {
	full := owner + "/" + name
	var repoID int64
	sc := &scanScope{
		name:  "scan-hooks",
		args:  []string{full},
		mutex: repoMutex(owner, name, "hooks"),
		path:  fmt.Sprintf("/repos/%s/%s/hooks", owner, name),
		prepare: func(ctx context.Context) error {
			repoID = s.lookupRepoID(ctx, owner, name)
			return nil
		},
		item: func(ctx context.Context, tx store.Tx, obj payload.Object, fetchedAt time.Time) (replicate.Result, error) {
			_, res, err := replicate.Hook(ctx, tx, obj, replicate.Options{
				Via: model.ViaAPI, FetchedAt: fetchedAt, RepoID: repoID,
			})
			return res, err
		},
		finalize: func(ctx context.Context, tx store.Tx, startedAt time.Time) (int64, error) {
			r, err := tx.RepoByFullName(ctx, owner, name)
			if err != nil {
				return 0, err
			}
			prev := r.HooksLastScannedAt
			st := startedAt
			r.HooksLastScannedAt = &st
			if err := tx.UpsertRepo(ctx, r); err != nil {
				return 0, err
			}
			if prev == nil {
				return 0, nil
			}
			return tx.DeleteHooksNotSeen(ctx, r.ID, *prev)
		},
	}
	return &scanJob{s: s, requestor: requestor, scope: sc}
}

// PullsScan walks a repository's pull request listing. With children, a
// file scan is enqueued for every pull request the scan actually writes.
func (s *Syncer) PullsScan(requestor, owner, name, state string, children bool) jobs.Job {
	if state == "" {
		state = "all"
	}
	full := owner + "/" + name
	var repoID int64
	sc := &scanScope{
		name:  "scan-pull-requests",
		args:  []string{full, "state=" + state},
		mutex: repoMutex(owner, name, "pulls"),
		path:  fmt.Sprintf("/repos/%s/%s/pulls", owner, name),
		query: url.Values{"state": {state}},
		prepare: func(ctx context.Context) error {
			repoID = s.lookupRepoID(ctx, owner, name)
			return nil
		},
		item: func(ctx context.Context, tx store.Tx, obj payload.Object, fetchedAt time.Time) (replicate.Result, error) {
			_, res, err := replicate.PullRequest(ctx, tx, obj, replicate.Options{
				Via: model.ViaAPI, FetchedAt: fetchedAt, RepoID: repoID,
			})
			return res, err
		},
		finalize: func(ctx context.Context, tx store.Tx, startedAt time.Time) (int64, error) {
			r, err := tx.RepoByFullName(ctx, owner, name)
			if err != nil {
				return 0, err
			}
			prev := r.PullRequestsLastScannedAt
			st := startedAt
			r.PullRequestsLastScannedAt = &st
			if err := tx.UpsertRepo(ctx, r); err != nil {
				return 0, err
			}
			if prev == nil {
				return 0, nil
			}
			return tx.DeletePullsNotSeen(ctx, r.ID, *prev)
		},
	}
	if children {
		sc.followUp = func(obj payload.Object) jobs.Job {
			number, ok := obj.Int("number")
			if !ok {
				return nil
			}
			return s.PullFilesScan(requestor, owner, name, number)
		}
	}
	return &scanJob{s: s, requestor: requestor, scope: sc}
}

// PullFilesScan walks one pull request's changed-file listing. The pull
// request row must already exist.
func (s *Syncer) PullFilesScan(requestor, owner, name string, number int) jobs.Job {
	full := owner + "/" + name
	var pullID int64
	sc := &scanScope{
		name:  "scan-pull-request-files",
		args:  []string{fmt.Sprintf("%s#%d", full, number)},
		mutex: pullFilesMutex(owner, name, number),
		path:  fmt.Sprintf("/repos/%s/%s/pulls/%d/files", owner, name, number),
		prepare: func(ctx context.Context) error {
			id, err := s.pullIDByNumber(ctx, owner, name, number)
			if err != nil {
				return err
			}
			pullID = id
			return nil
		},
		item: func(ctx context.Context, tx store.Tx, obj payload.Object, fetchedAt time.Time) (replicate.Result, error) {
			_, res, err := replicate.PullRequestFile(ctx, tx, obj, replicate.Options{
				Via: model.ViaAPI, FetchedAt: fetchedAt, PullRequestID: pullID,
			})
			return res, err
		},
		finalize: func(ctx context.Context, tx store.Tx, startedAt time.Time) (int64, error) {
			p, err := tx.PullByID(ctx, pullID)
			if err != nil {
				return 0, err
			}
			prev := p.FilesLastScannedAt
			st := startedAt
			p.FilesLastScannedAt = &st
			if err := tx.UpsertPull(ctx, p); err != nil {
				return 0, err
			}
			if prev == nil {
				return 0, nil
			}
			return tx.DeletePullFilesNotSeen(ctx, pullID, *prev)
		},
	}
	return &scanJob{s: s, requestor: requestor, scope: sc}
}

// UserReposScan walks a user's repository listing. The user profile is
// synced first so the parent row exists; requests about the requestor
// themselves use the authenticated endpoints. When the requestor is the
// scanned user, each page element's permissions block is mirrored into the
// user-repo association table.
func (s *Syncer) UserReposScan(requestor, username, typ string) jobs.Job {
	if typ == "" {
		typ = "all"
	}
	self := requestor != "" && requestor == username
	path := "/users/" + url.PathEscape(username) + "/repos"
	if self {
		path = "/user/repos"
	}
	var userID int64
	sc := &scanScope{
		name:  "scan-user-repositories",
		args:  []string{username, "type=" + typ},
		mutex: userMutex(username),
		path:  path,
		query: url.Values{"type": {typ}},
		prepare: func(ctx context.Context) error {
			id, err := s.syncUserNow(ctx, requestor, username)
			if err != nil {
				return err
			}
			userID = id
			return nil
		},
		item: func(ctx context.Context, tx store.Tx, obj payload.Object, fetchedAt time.Time) (replicate.Result, error) {
			_, res, err := replicate.Repository(ctx, tx, obj, replicate.Options{
				Via: model.ViaAPI, FetchedAt: fetchedAt,
			})
			if err != nil {
				return res, err
			}
			if self {
				if err := upsertPermissions(ctx, tx, userID, obj, fetchedAt); err != nil {
					return res, err
				}
			}
			return res, nil
		},
		finalize: func(ctx context.Context, tx store.Tx, startedAt time.Time) (int64, error) {
			u, err := tx.UserByID(ctx, userID)
			if err != nil {
				return 0, err
			}
			prev := u.ReposLastScannedAt
			st := startedAt
			u.ReposLastScannedAt = &st
			if err := tx.UpsertUser(ctx, u); err != nil {
				return 0, err
			}
			if prev == nil {
				return 0, nil
			}
			return tx.DeleteReposNotSeen(ctx, userID, *prev)
		},
	}
	return &scanJob{s: s, requestor: requestor, scope: sc}
}

// upsertPermissions records the requestor's access level to a repo from
// the permissions block GitHub attaches to authenticated repo listings.
func upsertPermissions(ctx context.Context, tx store.Tx, userID int64, obj payload.Object, fetchedAt time.Time) error {
	repoID, ok := obj.Int64("id")
	if !ok {
		return nil
	}
	perms, ok := obj.Map("permissions")
	if !ok {
		return nil
	}
	p := payload.Object(perms)
	a := &model.UserRepoAssociation{UserID: userID, RepoID: repoID}
	a.CanAdmin, _ = p.Bool("admin")
	a.CanPush, _ = p.Bool("push")
	a.CanPull, _ = p.Bool("pull")
	a.Stamp(model.ViaAPI, fetchedAt)
	return tx.UpsertUserRepoAssociation(ctx, a)
}
