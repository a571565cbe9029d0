package llm

import "sync"

// breaker counts consecutive upstream failures across every call made by one
// client. It only ever grows on failure and snaps back to zero on any
// success; there is no half-open probing, the counter simply gates whether
// the network is attempted at all.
type breaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
}

func newBreaker(threshold int) *breaker {
	return &breaker{threshold: threshold}
}

// open reports whether the circuit has tripped.
func (b *breaker) open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	b.failures++
	b.mu.Unlock()
}

func (b *breaker) reset() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

// count returns the current consecutive-failure count.
func (b *breaker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
