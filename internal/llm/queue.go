package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asisten-gizi/server/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Generator is anything that turns a prompt into a continuation.
// Engine and Queue both satisfy it.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg SamplingConfig) (string, error)
}

// Observer receives queue telemetry. A nil Observer is allowed.
type Observer interface {
	GenerationFinished(d time.Duration, err error)
	QueueDepth(n int)
}

type QueueConfig struct {
	Workers    int
	Size       int
	Timeout    time.Duration
	Retries    int // 0 or 1
	RetryDelay time.Duration
	Observer   Observer
}

// Queue serializes access to a Generator. One worker per compute device is
// the normal setting.
type Queue struct {
	gen    Generator
	cfg    QueueConfig
	logger *zap.Logger

	jobs   chan *job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	id     string
	ctx    context.Context
	prompt string
	cfg    SamplingConfig
	done   chan jobResult
}

type jobResult struct {
	text string
	err  error
}

func NewQueue(gen Generator, cfg QueueConfig, logger *zap.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}

	q := &Queue{
		gen:    gen,
		cfg:    cfg,
		logger: logger.Named("queue"),
		jobs:   make(chan *job, cfg.Size),
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Generate enqueues the prompt and waits for its result. It blocks while the
// queue is full, until ctx is done.
func (q *Queue) Generate(ctx context.Context, prompt string, cfg SamplingConfig) (string, error) {
	j := &job{
		id:     uuid.NewString(),
		ctx:    ctx,
		prompt: prompt,
		cfg:    cfg,
		done:   make(chan jobResult, 1),
	}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return "", ErrQueueClosed
	}
	select {
	case q.jobs <- j:
		q.observeDepth()
	case <-ctx.Done():
		q.mu.RUnlock()
		return "", ctx.Err()
	}
	q.mu.RUnlock()

	select {
	case r := <-j.done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) Depth() int {
	return len(q.jobs)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.observeDepth()
		if err := j.ctx.Err(); err != nil {
			j.done <- jobResult{err: err}
			continue
		}
		start := time.Now()
		text, err := q.run(j)
		if q.cfg.Observer != nil {
			q.cfg.Observer.GenerationFinished(time.Since(start), err)
		}
		j.done <- jobResult{text: text, err: err}
	}
}

func (q *Queue) run(j *job) (string, error) {
	for attempt := 0; ; attempt++ {
		text, timedOut, err := q.attempt(j)
		if err == nil {
			return text, nil
		}
		if timedOut {
			q.logger.Warn("generation timed out", zap.String("job", j.id), zap.Duration("timeout", q.cfg.Timeout))
			return "", fmt.Errorf("%w after %s", ErrGenerationTimeout, q.cfg.Timeout)
		}
		if j.ctx.Err() != nil {
			return "", j.ctx.Err()
		}

		var genErr *GenerationError
		if !errors.As(err, &genErr) || attempt >= q.cfg.Retries {
			return "", err
		}

		delay := utils.CalculateBackoff(q.cfg.RetryDelay, attempt+1)
		q.logger.Warn("generation failed, retrying",
			zap.String("job", j.id), zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-time.After(delay):
		case <-j.ctx.Done():
			return "", j.ctx.Err()
		}
	}
}

func (q *Queue) attempt(j *job) (string, bool, error) {
	ctx := j.ctx
	cancel := func() {}
	if q.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(j.ctx, q.cfg.Timeout)
	}
	defer cancel()

	text, err := q.gen.Generate(ctx, j.prompt, j.cfg)
	timedOut := err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && j.ctx.Err() == nil
	return text, timedOut, err
}

func (q *Queue) observeDepth() {
	if q.cfg.Observer != nil {
		q.cfg.Observer.QueueDepth(len(q.jobs))
	}
}
