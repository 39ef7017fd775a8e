package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Scheduler runs jobs on six-field cron specs (seconds first). A job that is
// still running when its next tick fires is skipped for that tick.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	onError func(error)
}

// New returns a scheduler whose jobs receive ctx. onError may be nil.
func New(ctx context.Context, onError func(error)) *Scheduler {
	if onError == nil {
		onError = func(error) {}
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:     ctx,
		onError: onError,
	}
}

func (s *Scheduler) AddJob(spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if s.ctx.Err() != nil {
			return
		}
		if err := job(s.ctx); err != nil {
			s.onError(err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for the running ones to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
