// Package scheduler runs the periodic grade jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/escola/core"
)

// Recomputer re-derives final averages and statuses of every school.
type Recomputer interface {
	RecomputeAll(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	svc     Recomputer
	logger  core.Logger
	timeout time.Duration
}

// New schedules RecomputeAll on spec (standard 5-field cron or a descriptor like "@daily").
// An empty spec returns a nil Scheduler; Start and Stop are no-ops on it.
func New(spec string, svc Recomputer, logger core.Logger, timeout time.Duration) (*Scheduler, error) {
	if spec == "" {
		return nil, nil
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		svc:     svc,
		logger:  logger,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.recompute); err != nil {
		return nil, errors.Wrapf(err, "scheduling recompute %q", spec)
	}
	return s, nil
}

func (s *Scheduler) recompute() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	n, err := s.svc.RecomputeAll(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("scheduled recompute: %v", err), err)
		return
	}
	s.logger.Info(fmt.Sprintf("scheduled recompute: %d records updated in %s", n, time.Since(started)))
}

func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job, at most until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
