package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/semmidev/stowage/internal/domain"
)

// Task uploads one file and returns the key it targeted. A non-nil error
// marks the file as failed; *domain.UploadError keeps its kind.
type Task interface {
	Run(ctx context.Context, file string) (string, error)
}

type TaskFunc func(ctx context.Context, file string) (string, error)

func (f TaskFunc) Run(ctx context.Context, file string) (string, error) {
	return f(ctx, file)
}

// pendingQueue hands out each path exactly once.
type pendingQueue struct {
	mu    sync.Mutex
	items []string
}

func newPendingQueue(paths []string) *pendingQueue {
	items := make([]string, len(paths))
	copy(items, paths)
	return &pendingQueue{items: items}
}

func (q *pendingQueue) Claim() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// run holds the counters and ledger shared by the workers of one Run.
type run struct {
	mu     sync.Mutex
	stats  domain.RunStats
	ledger *domain.Ledger
}

func (r *run) started() domain.RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Uploading++
	return r.stats
}

func (r *run) finished(file, key string, err error) domain.RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Uploading--
	if err == nil {
		r.stats.Success++
		r.ledger.AddSuccess(domain.SuccessRecord{File: file, Key: key})
		return r.stats
	}

	r.stats.Fail++
	r.ledger.AddFailure(failureRecord(file, key, err))
	return r.stats
}

func (r *run) snapshot() domain.RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func failureRecord(file, key string, err error) domain.FailureRecord {
	var uerr *domain.UploadError
	if !errors.As(err, &uerr) {
		uerr = domain.TransportError(err)
	}
	return domain.FailureRecord{File: file, Key: key, Msg: uerr.Message, Kind: uerr.Kind}
}

// Scheduler drains a queue of files with a fixed number of workers.
type Scheduler struct {
	task     Task
	parallel int
	progress Progress
	logger   Logger
}

func NewScheduler(task Task, parallel int, progress Progress, logger Logger) *Scheduler {
	return &Scheduler{
		task:     task,
		parallel: parallel,
		progress: progress,
		logger:   logger,
	}
}

// Run uploads every file once and returns the ledger and final counters.
// Failed files are recorded, never retried. The only error is an invalid
// worker count, reported before any task starts.
func (s *Scheduler) Run(ctx context.Context, files []string) (domain.Report, domain.RunStats, error) {
	if s.parallel < 1 {
		return domain.Report{}, domain.RunStats{}, domain.ErrInvalidParallelism
	}

	queue := newPendingQueue(files)
	state := &run{
		stats:  domain.RunStats{Total: len(files)},
		ledger: domain.NewLedger(),
	}

	s.progress.Start(len(files))

	var wg sync.WaitGroup
	for i := 0; i < s.parallel; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.work(ctx, worker, queue, state)
		}(i)
	}
	wg.Wait()

	stats := state.snapshot()
	s.progress.Done(stats)

	return state.ledger.Report(), stats, nil
}

func (s *Scheduler) work(ctx context.Context, worker int, queue *pendingQueue, state *run) {
	for {
		file, ok := queue.Claim()
		if !ok {
			return
		}

		s.progress.Update(state.started())

		key, err := s.task.Run(ctx, file)
		if err != nil {
			s.logger.Debugf("[worker %d] %s -> %s failed: %v", worker, file, key, err)
		} else {
			s.logger.Debugf("[worker %d] %s -> %s", worker, file, key)
		}

		s.progress.Update(state.finished(file, key, err))
	}
}
