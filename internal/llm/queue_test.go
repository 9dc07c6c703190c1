package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type generatorFunc func(context.Context, string, SamplingConfig) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string, cfg SamplingConfig) (string, error) {
	return f(ctx, prompt, cfg)
}

func TestQueue_SerializesWithOneWorker(t *testing.T) {
	var running, maxRunning int32
	gen := generatorFunc(func(context.Context, string, SamplingConfig) (string, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return "ok", nil
	})

	q := NewQueue(gen, QueueConfig{Workers: 1, Size: 8}, zap.NewNop())
	defer q.Close()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := q.Generate(context.Background(), "p", ProgramSampling)
			assert.NoError(t, err)
			assert.Equal(t, "ok", got)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
}

func TestQueue_RetriesGenerationErrorOnce(t *testing.T) {
	var calls int32
	var configs []SamplingConfig
	var mu sync.Mutex
	gen := generatorFunc(func(_ context.Context, _ string, cfg SamplingConfig) (string, error) {
		mu.Lock()
		configs = append(configs, cfg)
		mu.Unlock()
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", &GenerationError{Err: errors.New("device busy")}
		}
		return "second time", nil
	})

	q := NewQueue(gen, QueueConfig{Retries: 1, RetryDelay: time.Millisecond}, zap.NewNop())
	defer q.Close()

	got, err := q.Generate(context.Background(), "p", AnswerSampling)
	require.NoError(t, err)
	assert.Equal(t, "second time", got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []SamplingConfig{AnswerSampling, AnswerSampling}, configs)
}

func TestQueue_GivesUpAfterOneRetry(t *testing.T) {
	var calls int32
	gen := generatorFunc(func(context.Context, string, SamplingConfig) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", &GenerationError{Err: errors.New("oom")}
	})

	q := NewQueue(gen, QueueConfig{Retries: 1, RetryDelay: time.Millisecond}, zap.NewNop())
	defer q.Close()

	_, err := q.Generate(context.Background(), "p", AnswerSampling)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueue_DoesNotRetryOtherErrors(t *testing.T) {
	var calls int32
	gen := generatorFunc(func(context.Context, string, SamplingConfig) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("bad request")
	})

	q := NewQueue(gen, QueueConfig{Retries: 1, RetryDelay: time.Millisecond}, zap.NewNop())
	defer q.Close()

	_, err := q.Generate(context.Background(), "p", AnswerSampling)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueue_Timeout(t *testing.T) {
	var calls int32
	gen := generatorFunc(func(ctx context.Context, _ string, _ SamplingConfig) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return "", ctx.Err()
	})

	q := NewQueue(gen, QueueConfig{Timeout: 20 * time.Millisecond, Retries: 1}, zap.NewNop())
	defer q.Close()

	_, err := q.Generate(context.Background(), "p", ProgramSampling)
	assert.ErrorIs(t, err, ErrGenerationTimeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "timeouts are not retried")
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(generatorFunc(func(context.Context, string, SamplingConfig) (string, error) {
		return "ok", nil
	}), QueueConfig{}, zap.NewNop())
	q.Close()
	q.Close()

	_, err := q.Generate(context.Background(), "p", ProgramSampling)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

type recordingObserver struct {
	mu       sync.Mutex
	finished []error
}

func (o *recordingObserver) GenerationFinished(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, err)
}

func (o *recordingObserver) QueueDepth(int) {}

func TestQueue_ReportsToObserver(t *testing.T) {
	obs := &recordingObserver{}
	q := NewQueue(generatorFunc(func(context.Context, string, SamplingConfig) (string, error) {
		return "ok", nil
	}), QueueConfig{Observer: obs}, zap.NewNop())

	_, err := q.Generate(context.Background(), "p", ProgramSampling)
	require.NoError(t, err)
	q.Close()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []error{nil}, obs.finished)
}
