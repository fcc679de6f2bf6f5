package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

const DefaultPoolSize = 2

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("extraction pool closed")

type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Pool runs extraction work on a fixed set of goroutines. It is created once
// at startup and shared by every batch.
type Pool struct {
	logger *slog.Logger
	size   int
	tasks  chan task
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(size int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = DefaultPoolSize
	}
	p := &Pool{logger: logger, size: size, tasks: make(chan task)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i + 1)
	}
	logger.Info("extraction pool started", "workers", size)
	return p
}

func (p *Pool) Size() int { return p.size }

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for t := range p.tasks {
		t.done <- p.run(id, t)
	}
}

func (p *Pool) run(workerID int, t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("extraction panic", "worker_id", workerID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("extraction panic: %v", r)
		}
	}()
	if err := t.ctx.Err(); err != nil {
		return err
	}
	return t.fn(t.ctx)
}

// Submit runs fn on a pool worker and waits for it. Waiting for a free
// worker honours ctx; once fn has started, cancellation is up to fn.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context) error) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case p.tasks <- t:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}
	return <-t.done
}

// Close stops accepting work and waits for running tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("extraction pool stopped")
}
