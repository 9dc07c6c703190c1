package core

import (
	"errors"
	"fmt"
)

// ErrValidation matches every input error the caller can fix by changing the
// request.
var ErrValidation = errors.New("invalid input")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FormatError reports a duration string that could not be parsed.
type FormatError struct {
	Text string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("Format durasi tidak dikenali: %s. Gunakan format seperti 'X minggu' atau 'Y bulan'.", e.Text)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrValidation
}
