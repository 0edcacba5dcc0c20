package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/erauner12/hubmirror/internal/github"
	"github.com/erauner12/hubmirror/internal/store"
)

// DefaultWorkers bounds concurrent job execution when no worker count is
// configured.
const DefaultWorkers = 8

// Pool runs jobs on a bounded set of workers. Jobs that fail with a
// rate-limit error are rescheduled for the reset instant; jobs that fail
// with an integrity conflict are retried with exponential backoff. A job
// waiting out a delay does not hold a worker slot.
type Pool struct {
	reg    *registry
	log    zerolog.Logger
	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPool(workers int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		reg:    newRegistry(),
		log:    log,
		sem:    make(chan struct{}, workers),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (p *Pool) Eager() bool { return false }

func (p *Pool) Enqueue(ctx context.Context, job Job) (uuid.UUID, error) {
	return p.EnqueueAt(ctx, job, time.Time{})
}

func (p *Pool) EnqueueAt(ctx context.Context, job Job, at time.Time) (uuid.UUID, error) {
	id := p.reg.add(job, at)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.execute(id, job, at)
	}()
	return id, nil
}

func (p *Pool) Group(ctx context.Context, members []Job, finalizer Job) (uuid.UUID, error) {
	memberIDs := make([]uuid.UUID, len(members))
	for i, m := range members {
		memberIDs[i] = p.reg.add(m, time.Time{})
	}
	groupID := p.reg.add(finalizer, time.Time{})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		var mwg sync.WaitGroup
		for i, m := range members {
			mwg.Add(1)
			go func(id uuid.UUID, job Job) {
				defer mwg.Done()
				p.execute(id, job, time.Time{})
			}(memberIDs[i], m)
		}
		mwg.Wait()
		p.execute(groupID, finalizer, time.Time{})
	}()
	return groupID, nil
}

func (p *Pool) Status(id uuid.UUID) (Status, bool) {
	return p.reg.get(id)
}

// Shutdown waits for in-flight and queued jobs to drain. When ctx expires
// first, the pool's context is canceled so waiting jobs abort.
func (p *Pool) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

// execute runs the job until it succeeds, fails permanently, or the pool
// shuts down. The worker slot is held only while the job runs.
func (p *Pool) execute(id uuid.UUID, job Job, notBefore time.Time) {
	name, args := job.Describe()
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	for {
		if wait := time.Until(notBefore); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-p.ctx.Done():
				t.Stop()
				p.reg.finish(id, p.ctx.Err())
				return
			case <-t.C:
			}
		}
		select {
		case p.sem <- struct{}{}:
		case <-p.ctx.Done():
			p.reg.finish(id, p.ctx.Err())
			return
		}
		p.reg.update(id, func(st *Status) {
			st.State = StateRunning
			st.Attempts++
		})
		err := job.Run(p.ctx)
		<-p.sem

		if err == nil {
			p.reg.finish(id, nil)
			p.log.Debug().Str("job", name).Strs("args", args).Msg("job finished")
			return
		}

		var rle *github.RateLimitedError
		switch {
		case errors.As(err, &rle):
			notBefore = rle.Reset
			p.log.Warn().
				Str("job", name).
				Strs("args", args).
				Time("resumeAt", rle.Reset).
				Msg("rate limited, rescheduling for reset")
		case errors.Is(err, store.ErrIntegrity):
			d := bo.NextBackOff()
			if d == backoff.Stop {
				p.reg.finish(id, err)
				p.log.Error().Err(err).Str("job", name).Msg("giving up on integrity conflict")
				return
			}
			notBefore = time.Now().Add(d)
			p.log.Warn().
				Err(err).
				Str("job", name).
				Dur("backoff", d).
				Msg("integrity conflict, retrying")
		default:
			p.reg.finish(id, err)
			p.log.Error().Err(err).Str("job", name).Strs("args", args).Msg("job failed")
			return
		}
		nb := notBefore
		p.reg.update(id, func(st *Status) {
			st.State = StatePending
			st.NotBefore = &nb
		})
	}
}
