package llm

import "errors"

var (
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrQueueClosed       = errors.New("generation queue is closed")
)

// GenerationError is a failed model call. It is the only error the queue
// retries.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
