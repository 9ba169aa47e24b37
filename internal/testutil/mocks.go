package testutil

import (
	"sync"
)

// ErrorCollector records errors delivered to an error handler callback.
// It is safe for concurrent use.
type ErrorCollector struct {
	mu   sync.Mutex
	errs []error
}

// NewErrorCollector creates an empty ErrorCollector.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{}
}

// Handle records err. Its signature matches the OnError hooks of the scope and scheduler.
func (c *ErrorCollector) Handle(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

// Errors returns a copy of the recorded errors.
func (c *ErrorCollector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

// Len returns the number of recorded errors.
func (c *ErrorCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// Reset drops all recorded errors.
func (c *ErrorCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = nil
}
