// Package memstore is an in-memory store.Store used by tests. It honors
// the same unit-of-work contract as the PostgreSQL backend: writes stage on
// the Tx and become visible to other readers only at Commit, and repo
// deletion cascades to repo-scoped children the way the schema does.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/store"
)

type assocKey struct {
	userID int64
	repoID int64
}

type milestoneKey struct {
	repoID int64
	number int
}

type labelKey struct {
	repoID int64
	name   string
}

type fileKey struct {
	pullID int64
	sha    string
}

// Store holds every table as a map of value copies.
type Store struct {
	mu sync.Mutex

	users       map[int64]model.User
	repos       map[int64]model.Repository
	assocs      map[assocKey]model.UserRepoAssociation
	hooks       map[int64]model.RepositoryHook
	milestones  map[milestoneKey]model.Milestone
	labels      map[labelKey]model.IssueLabel
	issues      map[int64]model.Issue
	issueLabels map[int64][]string
	pulls       map[int64]model.PullRequest
	pullFiles   map[fileKey]model.PullRequestFile
	mutexes     map[string]model.Mutex
}

// New returns an empty mirror.
func New() *Store {
	return &Store{
		users:       make(map[int64]model.User),
		repos:       make(map[int64]model.Repository),
		assocs:      make(map[assocKey]model.UserRepoAssociation),
		hooks:       make(map[int64]model.RepositoryHook),
		milestones:  make(map[milestoneKey]model.Milestone),
		labels:      make(map[labelKey]model.IssueLabel),
		issues:      make(map[int64]model.Issue),
		issueLabels: make(map[int64][]string),
		pulls:       make(map[int64]model.PullRequest),
		pullFiles:   make(map[fileKey]model.PullRequestFile),
		mutexes:     make(map[string]model.Mutex),
	}
}

var _ store.Store = (*Store)(nil)

// Begin opens a unit of work with empty staging.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	return &tx{
		s:           s,
		users:       newTable[int64, model.User](),
		repos:       newTable[int64, model.Repository](),
		assocs:      newTable[assocKey, model.UserRepoAssociation](),
		hooks:       newTable[int64, model.RepositoryHook](),
		milestones:  newTable[milestoneKey, model.Milestone](),
		labels:      newTable[labelKey, model.IssueLabel](),
		issues:      newTable[int64, model.Issue](),
		pulls:       newTable[int64, model.PullRequest](),
		pullFiles:   newTable[fileKey, model.PullRequestFile](),
		issueLabels: make(map[int64][]string),
	}, nil
}

// AcquireMutex inserts the named lock row unless it already exists.
func (s *Store) AcquireMutex(ctx context.Context, name, holder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.mutexes[name]; held {
		return false, nil
	}
	m := model.Mutex{Name: name, CreatedAt: time.Now().UTC()}
	if holder != "" {
		h := holder
		m.Holder = &h
	}
	s.mutexes[name] = m
	return true, nil
}

// ReleaseMutex deletes the named lock row.
func (s *Store) ReleaseMutex(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mutexes, name)
	return nil
}

// MutexHeld reports whether the named lock row exists. Test helper.
func (s *Store) MutexHeld(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, held := s.mutexes[name]
	return held
}

// Counts returns per-table row counts. Test helper.
func (s *Store) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	assoc := 0
	for _, names := range s.issueLabels {
		assoc += len(names)
	}
	return map[string]int{
		"users":        len(s.users),
		"repos":        len(s.repos),
		"user_repos":   len(s.assocs),
		"hooks":        len(s.hooks),
		"milestones":   len(s.milestones),
		"labels":       len(s.labels),
		"issues":       len(s.issues),
		"issue_labels": assoc,
		"pulls":        len(s.pulls),
		"pull_files":   len(s.pullFiles),
		"mutexes":      len(s.mutexes),
	}
}

// table is per-Tx staging for one map-backed table.
type table[K comparable, V any] struct {
	upserts map[K]V
	deletes map[K]struct{}
}

func newTable[K comparable, V any]() *table[K, V] {
	return &table[K, V]{upserts: make(map[K]V), deletes: make(map[K]struct{})}
}

func (t *table[K, V]) stageUpsert(k K, v V) {
	delete(t.deletes, k)
	t.upserts[k] = v
}

func (t *table[K, V]) stageDelete(k K) {
	delete(t.upserts, k)
	t.deletes[k] = struct{}{}
}

// get resolves a key against staging first, then the base table.
func (t *table[K, V]) get(base map[K]V, k K) (V, bool) {
	var zero V
	if _, gone := t.deletes[k]; gone {
		return zero, false
	}
	if v, ok := t.upserts[k]; ok {
		return v, true
	}
	v, ok := base[k]
	return v, ok
}

// each visits the merged view (base minus staged deletes, plus staged
// upserts).
func (t *table[K, V]) each(base map[K]V, fn func(K, V)) {
	for k, v := range base {
		if _, gone := t.deletes[k]; gone {
			continue
		}
		if staged, ok := t.upserts[k]; ok {
			fn(k, staged)
			continue
		}
		fn(k, v)
	}
	for k, v := range t.upserts {
		if _, inBase := base[k]; !inBase {
			fn(k, v)
		}
	}
}

func (t *table[K, V]) apply(base map[K]V) {
	for k := range t.deletes {
		delete(base, k)
	}
	for k, v := range t.upserts {
		base[k] = v
	}
}

var _ store.Tx = (*tx)(nil)

type tx struct {
	s      *Store
	closed bool

	users      *table[int64, model.User]
	repos      *table[int64, model.Repository]
	assocs     *table[assocKey, model.UserRepoAssociation]
	hooks      *table[int64, model.RepositoryHook]
	milestones *table[milestoneKey, model.Milestone]
	labels     *table[labelKey, model.IssueLabel]
	issues     *table[int64, model.Issue]
	pulls      *table[int64, model.PullRequest]
	pullFiles  *table[fileKey, model.PullRequestFile]

	// issueLabels stages whole-set replacements keyed by issue id.
	issueLabels map[int64][]string
}

var errTxClosed = errors.New("memstore: transaction closed")

func (t *tx) check() error {
	if t.closed {
		return errTxClosed
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	t.closed = true
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	t.users.apply(t.s.users)
	t.repos.apply(t.s.repos)
	t.assocs.apply(t.s.assocs)
	t.hooks.apply(t.s.hooks)
	t.milestones.apply(t.s.milestones)
	t.labels.apply(t.s.labels)
	t.issues.apply(t.s.issues)
	t.pulls.apply(t.s.pulls)
	t.pullFiles.apply(t.s.pullFiles)

	for id := range t.issues.deletes {
		delete(t.s.issueLabels, id)
	}
	for id, names := range t.issueLabels {
		t.s.issueLabels[id] = append([]string(nil), names...)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	return nil
}

func (t *tx) UserByID(ctx context.Context, id int64) (*model.User, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	u, ok := t.users.get(t.s.users, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	u = cloneUser(u)
	return &u, nil
}

func (t *tx) UpsertUser(ctx context.Context, u *model.User) error {
	if err := t.check(); err != nil {
		return err
	}
	t.users.stageUpsert(u.ID, cloneUser(*u))
	return nil
}

func (t *tx) RepoByID(ctx context.Context, id int64) (*model.Repository, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.repos.get(t.s.repos, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	r = cloneRepo(r)
	return &r, nil
}

func (t *tx) RepoByFullName(ctx context.Context, owner, name string) (*model.Repository, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var found []model.Repository
	t.repos.each(t.s.repos, func(_ int64, r model.Repository) {
		if r.Name == name && r.OwnerLogin != nil && *r.OwnerLogin == owner {
			found = append(found, r)
		}
	})
	switch len(found) {
	case 0:
		return nil, store.ErrNotFound
	case 1:
		r := cloneRepo(found[0])
		return &r, nil
	default:
		return nil, fmt.Errorf("%d repositories named %s/%s: %w", len(found), owner, name, store.ErrAmbiguous)
	}
}

func (t *tx) UpsertRepo(ctx context.Context, r *model.Repository) error {
	if err := t.check(); err != nil {
		return err
	}
	t.repos.stageUpsert(r.ID, cloneRepo(*r))
	return nil
}

// stageDeleteRepo removes one repo and everything scoped under it,
// mirroring the schema's ON DELETE CASCADE.
func (t *tx) stageDeleteRepo(id int64) {
	t.repos.stageDelete(id)
	t.hooks.each(t.s.hooks, func(k int64, h model.RepositoryHook) {
		if h.RepoID != nil && *h.RepoID == id {
			t.hooks.stageDelete(k)
		}
	})
	t.milestones.each(t.s.milestones, func(k milestoneKey, _ model.Milestone) {
		if k.repoID == id {
			t.milestones.stageDelete(k)
		}
	})
	t.labels.each(t.s.labels, func(k labelKey, _ model.IssueLabel) {
		if k.repoID == id {
			t.labels.stageDelete(k)
		}
	})
	t.issues.each(t.s.issues, func(k int64, i model.Issue) {
		if i.RepoID != nil && *i.RepoID == id {
			t.issues.stageDelete(k)
		}
	})
	t.pulls.each(t.s.pulls, func(k int64, p model.PullRequest) {
		if p.BaseRepoID != nil && *p.BaseRepoID == id {
			t.stageDeletePull(k)
		}
	})
}

func (t *tx) stageDeletePull(id int64) {
	t.pulls.stageDelete(id)
	t.pullFiles.each(t.s.pullFiles, func(k fileKey, _ model.PullRequestFile) {
		if k.pullID == id {
			t.pullFiles.stageDelete(k)
		}
	})
}

func (t *tx) DeleteReposNotSeen(ctx context.Context, ownerID int64, cutoff time.Time) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var victims []int64
	t.repos.each(t.s.repos, func(k int64, r model.Repository) {
		if r.OwnerID != nil && *r.OwnerID == ownerID && r.LastReplicatedAt().Before(cutoff) {
			victims = append(victims, k)
		}
	})
	for _, id := range victims {
		t.stageDeleteRepo(id)
	}
	return int64(len(victims)), nil
}

func (t *tx) UpsertUserRepoAssociation(ctx context.Context, a *model.UserRepoAssociation) error {
	if err := t.check(); err != nil {
		return err
	}
	t.assocs.stageUpsert(assocKey{a.UserID, a.RepoID}, cloneAssoc(*a))
	return nil
}

func (t *tx) HookByID(ctx context.Context, id int64) (*model.RepositoryHook, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	h, ok := t.hooks.get(t.s.hooks, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	h = cloneHook(h)
	return &h, nil
}

func (t *tx) UpsertHook(ctx context.Context, h *model.RepositoryHook) error {
	if err := t.check(); err != nil {
		return err
	}
	t.hooks.stageUpsert(h.ID, cloneHook(*h))
	return nil
}

func (t *tx) DeleteHooksNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var n int64
	t.hooks.each(t.s.hooks, func(k int64, h model.RepositoryHook) {
		if h.RepoID != nil && *h.RepoID == repoID && h.LastReplicatedAt().Before(cutoff) {
			t.hooks.stageDelete(k)
			n++
		}
	})
	return n, nil
}

func (t *tx) MilestoneByNumber(ctx context.Context, repoID int64, number int) (*model.Milestone, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	m, ok := t.milestones.get(t.s.milestones, milestoneKey{repoID, number})
	if !ok {
		return nil, store.ErrNotFound
	}
	m = cloneMilestone(m)
	return &m, nil
}

func (t *tx) UpsertMilestone(ctx context.Context, m *model.Milestone) error {
	if err := t.check(); err != nil {
		return err
	}
	t.milestones.stageUpsert(milestoneKey{m.RepoID, m.Number}, cloneMilestone(*m))
	return nil
}

func (t *tx) DeleteMilestonesNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var n int64
	t.milestones.each(t.s.milestones, func(k milestoneKey, m model.Milestone) {
		if k.repoID == repoID && m.LastReplicatedAt().Before(cutoff) {
			t.milestones.stageDelete(k)
			n++
		}
	})
	return n, nil
}

func (t *tx) LabelByName(ctx context.Context, repoID int64, name string) (*model.IssueLabel, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l, ok := t.labels.get(t.s.labels, labelKey{repoID, name})
	if !ok {
		return nil, store.ErrNotFound
	}
	l = cloneLabel(l)
	return &l, nil
}

func (t *tx) UpsertLabel(ctx context.Context, l *model.IssueLabel) error {
	if err := t.check(); err != nil {
		return err
	}
	t.labels.stageUpsert(labelKey{l.RepoID, l.Name}, cloneLabel(*l))
	return nil
}

func (t *tx) DeleteLabelsNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var n int64
	t.labels.each(t.s.labels, func(k labelKey, l model.IssueLabel) {
		if k.repoID == repoID && l.LastReplicatedAt().Before(cutoff) {
			t.labels.stageDelete(k)
			n++
		}
	})
	return n, nil
}

func (t *tx) IssueByID(ctx context.Context, id int64) (*model.Issue, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i, ok := t.issues.get(t.s.issues, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	i = cloneIssue(i)
	return &i, nil
}

func (t *tx) UpsertIssue(ctx context.Context, i *model.Issue) error {
	if err := t.check(); err != nil {
		return err
	}
	t.issues.stageUpsert(i.ID, cloneIssue(*i))
	return nil
}

func (t *tx) IssueLabels(ctx context.Context, issueID int64) ([]string, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if names, ok := t.issueLabels[issueID]; ok {
		return append([]string(nil), names...), nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return append([]string(nil), t.s.issueLabels[issueID]...), nil
}

func (t *tx) ReplaceIssueLabels(ctx context.Context, issueID int64, names []string) error {
	if err := t.check(); err != nil {
		return err
	}
	t.issueLabels[issueID] = append([]string(nil), names...)
	return nil
}

func (t *tx) DeleteIssuesNotSeen(ctx context.Context, repoID int64, cutoff time.Time) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var n int64
	t.issues.each(t.s.issues, func(k int64, i model.Issue) {
		if i.RepoID != nil && *i.RepoID == repoID && i.LastReplicatedAt().Before(cutoff) {
			t.issues.stageDelete(k)
			n++
		}
	})
	return n, nil
}

func (t *tx) PullByID(ctx context.Context, id int64) (*model.PullRequest, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.pulls.get(t.s.pulls, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	p = clonePull(p)
	return &p, nil
}

func (t *tx) PullByNumber(ctx context.Context, owner, name string, number int) (*model.PullRequest, error) {
	repo, err := t.RepoByFullName(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var found []model.PullRequest
	t.pulls.each(t.s.pulls, func(_ int64, p model.PullRequest) {
		if p.BaseRepoID != nil && *p.BaseRepoID == repo.ID && p.Number != nil && *p.Number == number {
			found = append(found, p)
		}
	})
	switch len(found) {
	case 0:
		return nil, store.ErrNotFound
	case 1:
		p := clonePull(found[0])
		return &p, nil
	default:
		return nil, fmt.Errorf("%d pull requests numbered %s/%s#%d: %w", len(found), owner, name, number, store.ErrAmbiguous)
	}
}

func (t *tx) UpsertPull(ctx context.Context, p *model.PullRequest) error {
	if err := t.check(); err != nil {
		return err
	}
	t.pulls.stageUpsert(p.ID, clonePull(*p))
	return nil
}

func (t *tx) DeletePullsNotSeen(ctx context.Context, baseRepoID int64, cutoff time.Time) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var victims []int64
	t.pulls.each(t.s.pulls, func(k int64, p model.PullRequest) {
		if p.BaseRepoID != nil && *p.BaseRepoID == baseRepoID && p.LastReplicatedAt().Before(cutoff) {
			victims = append(victims, k)
		}
	})
	for _, id := range victims {
		t.stageDeletePull(id)
	}
	return int64(len(victims)), nil
}

func (t *tx) PullFileBySHA(ctx context.Context, pullID int64, sha string) (*model.PullRequestFile, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	f, ok := t.pullFiles.get(t.s.pullFiles, fileKey{pullID, sha})
	if !ok {
		return nil, store.ErrNotFound
	}
	f = cloneFile(f)
	return &f, nil
}

func (t *tx) UpsertPullFile(ctx context.Context, f *model.PullRequestFile) error {
	if err := t.check(); err != nil {
		return err
	}
	t.pullFiles.stageUpsert(fileKey{f.PullRequestID, f.SHA}, cloneFile(*f))
	return nil
}

func (t *tx) DeletePullFiles(ctx context.Context, pullID int64) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var n int64
	t.pullFiles.each(t.s.pullFiles, func(k fileKey, _ model.PullRequestFile) {
		if k.pullID == pullID {
			t.pullFiles.stageDelete(k)
			n++
		}
	})
	return n, nil
}

func (t *tx) DeletePullFilesNotSeen(ctx context.Context, pullID int64, cutoff time.Time) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var n int64
	t.pullFiles.each(t.s.pullFiles, func(k fileKey, f model.PullRequestFile) {
		if k.pullID == pullID && f.LastReplicatedAt().Before(cutoff) {
			t.pullFiles.stageDelete(k)
			n++
		}
	})
	return n, nil
}
