package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrStopped = errors.New("worker pool stopped")

// Job is one unit of asynchronous work, typically a mutation followed by its
// settle step. Run must not panic; the pool recovers and logs if it does.
type Job struct {
	Name string
	Run  func(ctx context.Context)
}

// Pool runs submitted jobs on a fixed number of goroutines. Every accepted job
// runs exactly once, including jobs still queued when Stop is called. Jobs
// finish in no particular order.
//
// Once the context given to Start is done the pool refuses new jobs. Jobs
// already queued still run and see the cancelled context; workers exit on
// Stop.
type Pool struct {
	logger *zap.Logger
	count  int
	jobs   chan Job
	wg     sync.WaitGroup
	stop   chan struct{}

	// submitting counts Submit calls that passed the stopped check and may
	// still put a job on the queue.
	submitting sync.WaitGroup

	mu      sync.RWMutex
	done    <-chan struct{}
	started bool
	stopped bool
}

func NewPool(logger *zap.Logger, count, queue int) *Pool {
	if count < 1 {
		count = 1
	}
	if queue < 0 {
		queue = 0
	}
	return &Pool{
		logger: logger,
		count:  count,
		jobs:   make(chan Job, queue),
		stop:   make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	p.done = ctx.Done()

	p.logger.Debug("Starting worker pool", zap.Int("workers", p.count))
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit enqueues a job. It blocks while the queue is full and returns
// ErrStopped if the pool is stopped or its context ends first.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	if p.stopped || isDone(p.done) {
		p.mu.RUnlock()
		return ErrStopped
	}
	p.submitting.Add(1)
	done := p.done
	p.mu.RUnlock()
	defer p.submitting.Done()

	select {
	case p.jobs <- job:
		return nil
	case <-p.stop:
		return ErrStopped
	case <-done:
		return ErrStopped
	}
}

// Stop refuses new jobs, lets the workers finish everything already queued
// and waits for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stop)
	p.mu.Unlock()

	p.logger.Debug("Stopping worker pool...")
	p.submitting.Wait()
	p.wg.Wait()
	// Covers a pool that was never started and jobs that raced Stop.
	p.drain(context.Background(), -1)
	p.logger.Debug("Worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			p.run(ctx, id, job)
		case <-p.stop:
			p.drain(ctx, id)
			return
		}
	}
}

func isDone(done <-chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func (p *Pool) drain(ctx context.Context, id int) {
	for {
		select {
		case job := <-p.jobs:
			p.run(ctx, id, job)
		default:
			return
		}
	}
}

func (p *Pool) run(ctx context.Context, workerID int, job Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				zap.Int("worker", workerID),
				zap.String("job", job.Name),
				zap.Any("panic", r),
			)
		}
	}()

	job.Run(ctx)

	p.logger.Debug("job finished",
		zap.Int("worker", workerID),
		zap.String("job", job.Name),
		zap.Duration("took", time.Since(start)),
	)
}
