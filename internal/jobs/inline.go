package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Inline runs every job immediately on the caller's goroutine and returns
// the job's error to the caller. Retry classification is left to the
// caller: a handler that receives a rate-limit error can surface it as a
// Retry-After response instead of blocking until the reset.
type Inline struct {
	reg *registry
	log zerolog.Logger
}

func NewInline(log zerolog.Logger) *Inline {
	return &Inline{reg: newRegistry(), log: log}
}

func (s *Inline) Eager() bool { return true }

func (s *Inline) Enqueue(ctx context.Context, job Job) (uuid.UUID, error) {
	id := s.reg.add(job, time.Time{})
	return id, s.execute(ctx, id, job)
}

// EnqueueAt runs the job immediately. Honoring the delay would block the
// caller, so inline mode treats it as advisory.
func (s *Inline) EnqueueAt(ctx context.Context, job Job, at time.Time) (uuid.UUID, error) {
	return s.Enqueue(ctx, job)
}

// Group runs the members in order, then the finalizer. The finalizer runs
// even when a member fails. The first member error wins over a finalizer
// error so callers see the root cause.
func (s *Inline) Group(ctx context.Context, members []Job, finalizer Job) (uuid.UUID, error) {
	var firstErr error
	for _, m := range members {
		id := s.reg.add(m, time.Time{})
		if err := s.execute(ctx, id, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	id := s.reg.add(finalizer, time.Time{})
	err := s.execute(ctx, id, finalizer)
	if firstErr != nil {
		return id, firstErr
	}
	return id, err
}

func (s *Inline) Status(id uuid.UUID) (Status, bool) {
	return s.reg.get(id)
}

func (s *Inline) execute(ctx context.Context, id uuid.UUID, job Job) error {
	name, args := job.Describe()
	s.reg.update(id, func(st *Status) {
		st.State = StateRunning
		st.Attempts++
	})
	err := job.Run(ctx)
	s.reg.finish(id, err)
	if err != nil {
		s.log.Error().Err(err).Str("job", name).Strs("args", args).Msg("inline job failed")
		return err
	}
	s.log.Debug().Str("job", name).Strs("args", args).Msg("inline job finished")
	return nil
}
