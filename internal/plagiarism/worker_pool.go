package plagiarism

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
)

type Job interface {
	Execute(ctx context.Context) error
}

// SegmentJob runs the segment matcher for one candidate document
type SegmentJob struct {
	ctx        context.Context // request context of the owning check
	Index      int
	Query      string
	Source     string
	MinLength  int
	ResultChan chan<- segmentResult
}

type segmentResult struct {
	index   int
	matches []Match
	err     error
}

// Execute executes the matching job
func (j *SegmentJob) Execute(ctx context.Context) error {
	result := segmentResult{index: j.Index}

	result.matches, result.err = findMatchesContext(j.ctx, j.Query, j.Source, j.MinLength)

	// ResultChan is buffered for every job of the check
	select {
	case <-ctx.Done():
		return ctx.Err()
	case j.ResultChan <- result:
		return result.err
	}
}

type WorkerPool struct {
	workers  int
	jobQueue chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

// creates a new worker pool with CPU-based sizing
func NewWorkerPool(ctx context.Context) *WorkerPool {
	totalCPU := runtime.NumCPU()
	systemReserve := max(1, totalCPU/4) // Reserve 1/4 of the CPU for system processes
	return NewWorkerPoolSize(ctx, max(1, totalCPU-systemReserve))
}

// creates a worker pool with a fixed number of workers
func NewWorkerPoolSize(ctx context.Context, size int) *WorkerPool {
	size = max(1, size)
	log.Info().
		Int("totalCPU", runtime.NumCPU()).
		Int("workers", size).
		Msg("Worker pool initialized")
	poolCtx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  size,
		jobQueue: make(chan Job, size*2), // Buffer 2x the worker count
		ctx:      poolCtx,
		cancel:   cancel,
	}

	// Start workers
	pool.start()

	return pool
}

// starts all worker goroutines
func (p *WorkerPool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// worker goroutine that processes jobs
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return // Channel closed
			}
			if err := job.Execute(p.ctx); err != nil {
				log.Debug().Err(err).Int("worker", id).Msg("Worker job ended with error")
			}
		}
	}
}

// submits a job to the pool
func (p *WorkerPool) Submit(job Job) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.jobQueue <- job:
		return nil
	}
}

// stops the workers and waits for them to finish. Jobs still queued are dropped.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
	})
}

// closed when the pool shuts down
func (p *WorkerPool) Done() <-chan struct{} {
	return p.ctx.Done()
}

// returns the number of workers
func (p *WorkerPool) Size() int {
	return p.workers
}
