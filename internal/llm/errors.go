package llm

import (
	"errors"
	"fmt"
)

// ErrExhausted wraps the last failure once every retry attempt is spent.
var ErrExhausted = errors.New("all retry attempts exhausted")

// UpstreamError is a non-2xx response from the LLM provider. Retryable
// mirrors the retryable status set; everything else aborts immediately.
type UpstreamError struct {
	Status    int
	Retryable bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d", e.Status)
}

// retryableStatuses are transient provider failures worth a backoff retry.
var retryableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}
