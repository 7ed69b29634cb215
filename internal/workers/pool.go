// Package workers provides the bounded goroutine pool that runs webhook event
// processing off the HTTP request path.
package workers

import (
	"fmt"
	"sync"

	"github.com/tinybirdco/birdwatcher/internal/common/logging"
	"github.com/tinybirdco/birdwatcher/internal/monitoring"
)

// ErrQueueFull is returned by Submit when the pending queue is at capacity.
var ErrQueueFull = fmt.Errorf("worker queue full")

// Task is a unit of asynchronous work.
type Task func()

// Pool runs tasks on a fixed set of worker goroutines with a bounded queue.
type Pool struct {
	queue     chan Task
	logger    *logging.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts size workers consuming from a queue of queueSize pending tasks.
func NewPool(size, queueSize int, logger *logging.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	p := &Pool{
		queue:  make(chan Task, queueSize),
		logger: logger,
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

// Submit enqueues a task, returning ErrQueueFull if no queue slot is free.
func (p *Pool) Submit(task Task) error {
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dispatch enqueues a task, falling back to a detached goroutine when the pool
// rejects it. Slack redelivers unacked events, so dropping work is worse than
// briefly exceeding the concurrency bound.
func (p *Pool) Dispatch(task Task) {
	if err := p.Submit(task); err != nil {
		p.logger.WarnKV("Worker queue full, running task on detached goroutine", "error", err)
		monitoring.WorkerFallbackSpawns.Inc()
		go p.run(task)
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
	p.logger.DebugKV("Worker exiting", "worker", id)
}

func (p *Pool) run(task Task) {
	monitoring.WorkerTasksInFlight.Inc()
	defer monitoring.WorkerTasksInFlight.Dec()
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorKV("Recovered from panic in worker task", "panic", r)
		}
	}()
	task()
}
