package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// registry tracks the status of every job a scheduler has accepted.
// Statuses are kept in memory for the lifetime of the process.
type registry struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Status
}

func newRegistry() *registry {
	return &registry{tasks: make(map[uuid.UUID]*Status)}
}

func (r *registry) add(job Job, notBefore time.Time) uuid.UUID {
	name, args := job.Describe()
	st := &Status{
		ID:         uuid.New(),
		Name:       name,
		Args:       args,
		State:      StatePending,
		EnqueuedAt: time.Now().UTC(),
	}
	if !notBefore.IsZero() {
		nb := notBefore
		st.NotBefore = &nb
	}
	r.mu.Lock()
	r.tasks[st.ID] = st
	r.mu.Unlock()
	return st.ID
}

func (r *registry) update(id uuid.UUID, fn func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.tasks[id]; ok {
		fn(st)
	}
}

// get returns a copy so callers never see concurrent mutations.
func (r *registry) get(id uuid.UUID) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.tasks[id]
	if !ok {
		return Status{}, false
	}
	out := *st
	if st.NotBefore != nil {
		nb := *st.NotBefore
		out.NotBefore = &nb
	}
	if st.FinishedAt != nil {
		fin := *st.FinishedAt
		out.FinishedAt = &fin
	}
	out.Args = append([]string(nil), st.Args...)
	return out, true
}

func (r *registry) finish(id uuid.UUID, err error) {
	now := time.Now().UTC()
	r.update(id, func(st *Status) {
		st.FinishedAt = &now
		if err != nil {
			st.State = StateFailed
			st.Error = err.Error()
			return
		}
		st.State = StateSucceeded
	})
}
