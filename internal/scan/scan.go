// Package scan walks paginated GitHub listings and mirrors their elements
// into the store. Every scan runs in three phases: spawn takes the scope's
// mutex and sizes the listing, page workers upsert one page each inside
// per-item units of work, and a finalizer stamps the parent's scan column,
// reaps rows not seen since the previous scan, and releases the mutex.
package scan

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/erauner12/hubmirror/internal/github"
	"github.com/erauner12/hubmirror/internal/jobs"
	"github.com/erauner12/hubmirror/internal/metrics"
	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/replicate"
	"github.com/erauner12/hubmirror/internal/store"
)

// ErrAlreadyRunning reports that a scan for the same scope holds the mutex.
var ErrAlreadyRunning = errors.New("scan already running")

// Syncer builds scan and sync jobs over a store and an upstream client.
// Fan-out goes through sched, so a pool runs pages concurrently while an
// inline scheduler runs the whole scan on the caller's goroutine.
type Syncer struct {
	store store.Store
	gh    *github.Client
	sched jobs.Scheduler
	log   zerolog.Logger
	now   func() time.Time
}

func New(st store.Store, gh *github.Client, sched jobs.Scheduler, log zerolog.Logger) *Syncer {
	return &Syncer{store: st, gh: gh, sched: sched, log: log, now: time.Now}
}

func repoMutex(owner, name, aspect string) string {
	return fmt.Sprintf("Repository|%s/%s|%s", owner, name, aspect)
}

func userMutex(username string) string {
	return fmt.Sprintf("User|%s|repos", username)
}

func pullFilesMutex(owner, name string, number int) string {
	return fmt.Sprintf("PullRequest|%s/%s#%d|files", owner, name, number)
}

// scanScope binds one scan's endpoints and callbacks. item runs inside a
// unit of work committed per element; finalize runs inside its own unit of
// work and returns the number of reaped rows.
type scanScope struct {
	name  string
	args  []string
	mutex string
	path  string
	query url.Values

	// prepare runs before the mutex is taken, resolving whatever the
	// scope needs (parent rows, upstream identities).
	prepare func(ctx context.Context) error

	item     func(ctx context.Context, tx store.Tx, obj payload.Object, fetchedAt time.Time) (replicate.Result, error)
	finalize func(ctx context.Context, tx store.Tx, startedAt time.Time) (int64, error)

	// followUp, when set, builds a job to enqueue after an element is
	// written (not merely skipped). Used for child cascades.
	followUp func(obj payload.Object) jobs.Job
}

type scanJob struct {
	s         *Syncer
	requestor string
	scope     *scanScope
}

func (j *scanJob) Describe() (string, []string) { return j.scope.name, j.scope.args }

func (j *scanJob) Run(ctx context.Context) error {
	return j.s.runScan(ctx, j.requestor, j.scope)
}

// runScan is the spawn phase. The mutex is released on every failure path
// that cannot reach the finalizer; once the group is scheduled the
// finalizer owns the release.
func (s *Syncer) runScan(ctx context.Context, requestor string, sc *scanScope) error {
	if sc.prepare != nil {
		if err := sc.prepare(ctx); err != nil {
			return err
		}
	}

	ok, err := s.store.AcquireMutex(ctx, sc.mutex, requestor)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Info().Str("mutex", sc.mutex).Msg("scan already running")
		return ErrAlreadyRunning
	}

	last, err := s.gh.LastPage(ctx, requestor, sc.path, sc.query, 0)
	if err != nil {
		s.releaseMutex(ctx, sc.mutex)
		return err
	}

	startedAt := s.now().UTC()
	members := make([]jobs.Job, last)
	for page := 1; page <= last; page++ {
		members[page-1] = &pageJob{s: s, scope: sc, requestor: requestor, page: page}
	}
	fin := &finalizeJob{s: s, scope: sc, startedAt: startedAt}

	s.log.Info().
		Str("scan", sc.name).
		Strs("args", sc.args).
		Int("pages", last).
		Time("startedAt", startedAt).
		Msg("scan spawned")

	// An eager scheduler has already run the finalizer by the time Group
	// returns, so the mutex must not be touched here.
	_, err = s.sched.Group(ctx, members, fin)
	return err
}

type pageJob struct {
	s         *Syncer
	scope     *scanScope
	requestor string
	page      int
}

func (j *pageJob) Describe() (string, []string) {
	args := append(append([]string(nil), j.scope.args...), fmt.Sprintf("page=%d", j.page))
	return j.scope.name + ".page", args
}

func (j *pageJob) Run(ctx context.Context) error {
	items, fetchedAt, err := j.s.gh.Page(ctx, j.requestor, j.scope.path, j.scope.query, j.page, 0)
	if err != nil {
		return err
	}

	var firstErr error
	for _, obj := range items {
		var res replicate.Result
		err := j.s.inTx(ctx, func(tx store.Tx) error {
			var ierr error
			res, ierr = j.scope.item(ctx, tx, obj, fetchedAt)
			return ierr
		})
		if err != nil {
			// Integrity conflicts retry the whole page; anything else
			// fails the single element and the scan moves on.
			if errors.Is(err, store.ErrIntegrity) {
				return err
			}
			j.s.log.Error().
				Err(err).
				Str("scan", j.scope.name).
				Int("page", j.page).
				Msg("scan element failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if res.Wrote() {
			metrics.ReplicationWrites.WithLabelValues(string(model.ViaAPI)).Inc()
		} else {
			metrics.ReplicationSkips.WithLabelValues(string(model.ViaAPI)).Inc()
		}
		if res.Wrote() && j.scope.followUp != nil {
			if fu := j.scope.followUp(obj); fu != nil {
				if _, err := j.s.sched.Enqueue(ctx, fu); err != nil {
					j.s.log.Error().Err(err).Str("scan", j.scope.name).Msg("child scan failed")
				}
			}
		}
	}
	return firstErr
}

type finalizeJob struct {
	s         *Syncer
	scope     *scanScope
	startedAt time.Time
}

func (j *finalizeJob) Describe() (string, []string) {
	return j.scope.name + ".finalize", j.scope.args
}

// Run stamps the parent and reaps, then releases the mutex. The release
// happens even when finalization fails so a broken scan cannot wedge the
// scope.
func (j *finalizeJob) Run(ctx context.Context) error {
	var reaped int64
	err := j.s.inTx(ctx, func(tx store.Tx) error {
		var ferr error
		reaped, ferr = j.scope.finalize(ctx, tx, j.startedAt)
		return ferr
	})
	if err == nil && reaped > 0 {
		metrics.ReapedRows.WithLabelValues(j.scope.name).Add(float64(reaped))
		j.s.log.Info().
			Str("scan", j.scope.name).
			Strs("args", j.scope.args).
			Int64("reaped", reaped).
			Msg("scan reaped stale rows")
	}
	if rerr := j.s.store.ReleaseMutex(ctx, j.scope.mutex); rerr != nil {
		j.s.log.Error().Err(rerr).Str("mutex", j.scope.mutex).Msg("release mutex")
		if err == nil {
			err = rerr
		}
	}
	return err
}

func (s *Syncer) releaseMutex(ctx context.Context, name string) {
	if err := s.store.ReleaseMutex(ctx, name); err != nil {
		s.log.Error().Err(err).Str("mutex", name).Msg("release mutex")
	}
}

// inTx runs fn in a unit of work and commits when it succeeds.
func (s *Syncer) inTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lookupRepoID resolves a repo hint for page items. A missing row is fine:
// items fall back to the URLs embedded in their payloads.
func (s *Syncer) lookupRepoID(ctx context.Context, owner, name string) int64 {
	var id int64
	err := s.inTx(ctx, func(tx store.Tx) error {
		r, err := tx.RepoByFullName(ctx, owner, name)
		if err != nil {
			return err
		}
		id = r.ID
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Debug().Err(err).Str("repo", owner+"/"+name).Msg("repo hint lookup failed")
	}
	return id
}

// syncUserNow fetches and replicates a user profile synchronously. The
// authenticated endpoint is used when the requestor asks about themselves.
func (s *Syncer) syncUserNow(ctx context.Context, requestor, username string) (int64, error) {
	path := "/users/" + url.PathEscape(username)
	if requestor != "" && requestor == username {
		path = "/user"
	}
	obj, fetchedAt, err := s.gh.Item(ctx, requestor, path)
	if err != nil {
		return 0, fmt.Errorf("user @%s: %w", username, err)
	}
	var id int64
	err = s.inTx(ctx, func(tx store.Tx) error {
		u, _, err := replicate.User(ctx, tx, obj, replicate.Options{Via: model.ViaAPI, FetchedAt: fetchedAt})
		if err != nil {
			return err
		}
		id = u.ID
		return nil
	})
	return id, err
}

func (s *Syncer) pullIDByNumber(ctx context.Context, owner, name string, number int) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx store.Tx) error {
		p, err := tx.PullByNumber(ctx, owner, name, number)
		if err != nil {
			return fmt.Errorf("pull request %s/%s#%d: %w", owner, name, number, err)
		}
		id = p.ID
		return nil
	})
	return id, err
}
