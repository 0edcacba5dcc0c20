package scan

import (
	"context"
	"fmt"
	"net/url"

	"github.com/erauner12/hubmirror/internal/jobs"
	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/replicate"
	"github.com/erauner12/hubmirror/internal/store"
)

// syncJob fetches one upstream object and replicates it. Unlike scans,
// single syncs take no mutex: the freshness guard already serializes
// concurrent writes to one row.
type syncJob struct {
	s         *Syncer
	requestor string
	name      string
	args      []string
	path      string
	run       func(ctx context.Context, tx store.Tx, obj payload.Object, opt replicate.Options) (replicate.Result, error)

	// after runs once the object is written, outside the unit of work.
	// Used for child cascades.
	after func(ctx context.Context, obj payload.Object) error
}

func (j *syncJob) Describe() (string, []string) { return j.name, j.args }

func (j *syncJob) Run(ctx context.Context) error {
	obj, fetchedAt, err := j.s.gh.Item(ctx, j.requestor, j.path)
	if err != nil {
		return err
	}
	opt := replicate.Options{Via: model.ViaAPI, FetchedAt: fetchedAt}
	var res replicate.Result
	err = j.s.inTx(ctx, func(tx store.Tx) error {
		var ierr error
		res, ierr = j.run(ctx, tx, obj, opt)
		return ierr
	})
	if err != nil {
		return err
	}
	j.s.log.Info().
		Str("sync", j.name).
		Strs("args", j.args).
		Str("outcome", string(res.Outcome)).
		Msg("sync finished")
	if res.Wrote() && j.after != nil {
		return j.after(ctx, obj)
	}
	return nil
}

// RepoSync fetches one repository. With children, the five repo-child
// scans are enqueued after the repo row lands; each holds its own mutex,
// so repeated cascades collapse.
func (s *Syncer) RepoSync(requestor, owner, name string, children bool) jobs.Job {
	full := owner + "/" + name
	j := &syncJob{
		s:         s,
		requestor: requestor,
		name:      "sync-repository",
		args:      []string{full},
		path:      fmt.Sprintf("/repos/%s/%s", owner, name),
		run: func(ctx context.Context, tx store.Tx, obj payload.Object, opt replicate.Options) (replicate.Result, error) {
			_, res, err := replicate.Repository(ctx, tx, obj, opt)
			return res, err
		},
	}
	if children {
		j.after = func(ctx context.Context, _ payload.Object) error {
			kids := []jobs.Job{
				s.IssuesScan(requestor, owner, name, ""),
				s.LabelsScan(requestor, owner, name),
				s.MilestonesScan(requestor, owner, name, ""),
				s.PullsScan(requestor, owner, name, "", false),
				s.HooksScan(requestor, owner, name),
			}
			for _, kid := range kids {
				if _, err := s.sched.Enqueue(ctx, kid); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return j
}

// IssueSync fetches one issue by number.
func (s *Syncer) IssueSync(requestor, owner, name string, number int) jobs.Job {
	repoHint := func(ctx context.Context) int64 { return s.lookupRepoID(ctx, owner, name) }
	return &syncJob{
		s:         s,
		requestor: requestor,
		name:      "sync-issue",
		args:      []string{fmt.Sprintf("%s/%s#%d", owner, name, number)},
		path:      fmt.Sprintf("/repos/%s/%s/issues/%d", owner, name, number),
		run: func(ctx context.Context, tx store.Tx, obj payload.Object, opt replicate.Options) (replicate.Result, error) {
			opt.RepoID = repoHint(ctx)
			_, res, err := replicate.Issue(ctx, tx, obj, opt)
			return res, err
		},
	}
}

// LabelSync fetches one label by name. The label payload carries only its
// own url, so the repo context rides the hint.
func (s *Syncer) LabelSync(requestor, owner, name, label string) jobs.Job {
	repoHint := func(ctx context.Context) int64 { return s.lookupRepoID(ctx, owner, name) }
	return &syncJob{
		s:         s,
		requestor: requestor,
		name:      "sync-label",
		args:      []string{fmt.Sprintf("%s/%s:%s", owner, name, label)},
		path:      fmt.Sprintf("/repos/%s/%s/labels/%s", owner, name, url.PathEscape(label)),
		run: func(ctx context.Context, tx store.Tx, obj payload.Object, opt replicate.Options) (replicate.Result, error) {
			opt.RepoID = repoHint(ctx)
			_, res, err := replicate.Label(ctx, tx, obj, opt)
			return res, err
		},
	}
}

// MilestoneSync fetches one milestone by number.
func (s *Syncer) MilestoneSync(requestor, owner, name string, number int) jobs.Job {
	repoHint := func(ctx context.Context) int64 { return s.lookupRepoID(ctx, owner, name) }
	return &syncJob{
		s:         s,
		requestor: requestor,
		name:      "sync-milestone",
		args:      []string{fmt.Sprintf("%s/%s milestone %d", owner, name, number)},
		path:      fmt.Sprintf("/repos/%s/%s/milestones/%d", owner, name, number),
		run: func(ctx context.Context, tx store.Tx, obj payload.Object, opt replicate.Options) (replicate.Result, error) {
			opt.RepoID = repoHint(ctx)
			_, res, err := replicate.Milestone(ctx, tx, obj, opt)
			return res, err
		},
	}
}

// HookSync fetches one repository webhook by id.
func (s *Syncer) HookSync(requestor, owner, name string, hookID int64) jobs.Job {
	repoHint := func(ctx context.Context) int64 { return s.lookupRepoID(ctx, owner, name) }
	return &syncJob{
		s:         s,
		requestor: requestor,
		name:      "sync-hook",
		args:      []string{fmt.Sprintf("%s/%s hook %d", owner, name, hookID)},
		path:      fmt.Sprintf("/repos/%s/%s/hooks/%d", owner, name, hookID),
		run: func(ctx context.Context, tx store.Tx, obj payload.Object, opt replicate.Options) (replicate.Result, error) {
			opt.RepoID = repoHint(ctx)
			_, res, err := replicate.Hook(ctx, tx, obj, opt)
			return res, err
		},
	}
}

// PullSync fetches one pull request by number. With children, a file scan
// is enqueued after the row lands.
func (s *Syncer) PullSync(requestor, owner, name string, number int, children bool) jobs.Job {
	repoHint := func(ctx context.Context) int64 { return s.lookupRepoID(ctx, owner, name) }
	j := &syncJob{
		s:         s,
		requestor: requestor,
		name:      "sync-pull-request",
		args:      []string{fmt.Sprintf("%s/%s#%d", owner, name, number)},
		path:      fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, name, number),
		run: func(ctx context.Context, tx store.Tx, obj payload.Object, opt replicate.Options) (replicate.Result, error) {
			opt.RepoID = repoHint(ctx)
			_, res, err := replicate.PullRequest(ctx, tx, obj, opt)
			return res, err
		},
	}
	if children {
		j.after = func(ctx context.Context, _ payload.Object) error {
			_, err := s.sched.Enqueue(ctx, s.PullFilesScan(requestor, owner, name, number))
			return err
		}
	}
	return j
}

// ReplacePullFiles synchronously rebuilds one pull request's file set from
// the first listing page. The fetch happens before the unit of work opens;
// the delete and the reinserts then commit together, so readers never see
// a half-replaced set. Webhook intake uses this for pull requests small
// enough to fit one page.
func (s *Syncer) ReplacePullFiles(ctx context.Context, requestor string, pullID int64, owner, name string, number int) error {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files", owner, name, number)
	items, fetchedAt, err := s.gh.Page(ctx, requestor, path, nil, 1, 0)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx store.Tx) error {
		if _, err := tx.DeletePullFiles(ctx, pullID); err != nil {
			return err
		}
		for _, obj := range items {
			_, _, err := replicate.PullRequestFile(ctx, tx, obj, replicate.Options{
				Via: model.ViaWebhook, FetchedAt: fetchedAt, PullRequestID: pullID,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
