package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrOverloaded is returned when the waiting queue is saturated.
	// Callers must treat it as backpressure, not retry in a tight loop.
	ErrOverloaded = errors.New("worker pool queue is full")
)

// Config defines worker pool sizing
type Config struct {
	Workers    int `mapstructure:"workers"`    // number of long-lived workers, 0 means NumCPU
	QueueDepth int `mapstructure:"queuedepth"` // max submitters allowed to wait for a free worker
}

// DefaultConfig returns a pool sized to the available CPU cores
func DefaultConfig() *Config {
	return &Config{
		Workers:    runtime.NumCPU(),
		QueueDepth: 64,
	}
}

// Statistics tracks pool activity counters
type Statistics struct {
	mu sync.Mutex

	Submitted int64
	Completed int64
	Failed    int64
	Rejected  int64
}

func (s *Statistics) record(field *int64) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

// Get returns a copy of the counters
func (s *Statistics) Get() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Statistics{
		Submitted: s.Submitted,
		Completed: s.Completed,
		Failed:    s.Failed,
		Rejected:  s.Rejected,
	}
}

// Result carries the outcome of an offloaded task
type Result struct {
	Data  interface{}
	Error error
}

// Pool is a long-lived, CPU-sized worker pool for offloading CPU-bound
// work from request goroutines. The waiting queue is bounded: once
// QueueDepth submitters are already waiting, Submit rejects immediately
// instead of growing without limit.
type Pool struct {
	pool   *ants.Pool
	config *Config
	stats  *Statistics
	logger *zap.Logger
}

// New creates a worker pool
func New(cfg *Config, logger *zap.Logger) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	// ants treats WithMaxBlockingTasks(0) as an unlimited waiting queue;
	// a missing or zero depth must still mean bounded.
	queueDepth := cfg.QueueDepth
	if queueDepth <= 0 {
		queueDepth = DefaultConfig().QueueDepth
	}

	antsPool, err := ants.NewPool(workers,
		ants.WithMaxBlockingTasks(queueDepth),
		ants.WithPanicHandler(func(v interface{}) {
			logger.Error("worker panic", zap.Any("panic", v))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	return &Pool{
		pool:   antsPool,
		config: cfg,
		stats:  &Statistics{},
		logger: logger,
	}, nil
}

// Submit enqueues a task, blocking until a worker is free as long as the
// waiting queue has room. Returns ErrOverloaded when it does not.
func (p *Pool) Submit(task func()) error {
	err := p.pool.Submit(func() {
		task()
		p.stats.record(&p.stats.Completed)
	})
	switch {
	case err == nil:
		p.stats.record(&p.stats.Submitted)
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		p.stats.record(&p.stats.Rejected)
		return ErrOverloaded
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		p.stats.record(&p.stats.Failed)
		return err
	}
}

// Do offloads a task and waits for its result. The wait is cancellable
// through ctx; the task itself is not interrupted once running, its
// result is simply discarded.
func (p *Pool) Do(ctx context.Context, task func() (interface{}, error)) (interface{}, error) {
	resultCh := make(chan Result, 1)

	err := p.Submit(func() {
		data, taskErr := task()
		resultCh <- Result{Data: data, Error: taskErr}
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.Data, res.Error
	}
}

// Running returns the number of busy workers
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Free returns the number of idle workers
func (p *Pool) Free() int {
	return p.pool.Free()
}

// Stats returns activity counters
func (p *Pool) Stats() Statistics {
	return p.stats.Get()
}

// Shutdown releases the pool. Pending tasks are abandoned.
func (p *Pool) Shutdown() {
	p.pool.Release()
}
