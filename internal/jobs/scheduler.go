// Package jobs runs the periodic maintenance tasks: vote-count recounts and
// eviction of idle per-user state.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Recounter rewrites denormalized vote counts from the votes table.
type Recounter interface {
	RecountVotes(ctx context.Context) (int64, error)
}

type Scheduler struct {
	c       *cron.Cron
	timeout time.Duration
}

// NewScheduler uses six-field specs (seconds first).
func NewScheduler(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		c:       cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
	}
}

func (s *Scheduler) AddRecount(spec string, r Recounter) error {
	if _, err := s.c.AddFunc(spec, s.recountJob(r)); err != nil {
		return fmt.Errorf("schedule recount %q: %w", spec, err)
	}
	return nil
}

// AddSweep runs fn on spec and logs how many entries it evicted.
func (s *Scheduler) AddSweep(spec, name string, fn func() int) error {
	if _, err := s.c.AddFunc(spec, sweepJob(name, fn)); err != nil {
		return fmt.Errorf("schedule %s sweep %q: %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) Len() int { return len(s.c.Entries()) }

func (s *Scheduler) Start() {
	log.Info().Int("jobs", s.Len()).Msg("cron scheduler started")
	s.c.Start()
}

// Stop prevents new runs and returns a context that is done once running
// jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.c.Stop()
}

func (s *Scheduler) recountJob(r Recounter) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := RecountOnce(ctx, r); err != nil {
			log.Warn().Err(err).Msg("vote recount failed")
		}
	}
}

// RecountOnce runs a single recount and logs the number of drifted rows.
func RecountOnce(ctx context.Context, r Recounter) (int64, error) {
	start := time.Now()
	n, err := r.RecountVotes(ctx)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("fixed", n).Dur("took", time.Since(start)).Msg("vote recount done")
	return n, nil
}

func sweepJob(name string, fn func() int) func() {
	return func() {
		if n := fn(); n > 0 {
			log.Debug().Str("target", name).Int("evicted", n).Msg("sweep done")
		}
	}
}
