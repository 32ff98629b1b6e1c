package queue

import (
	"errors"
	"math/rand"
	"time"
)

// PermanentError marks a task failure that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// RetryManager decides whether and when a failed task runs again
type RetryManager struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

func NewRetryManager(baseDelay time.Duration) *RetryManager {
	return &RetryManager{
		baseDelay: baseDelay,
		maxDelay:  baseDelay * 16,
	}
}

// ShouldRetry reports whether task should run again after err and the delay before it does
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	if err == nil || task.Attempts >= task.MaxRetries {
		return false, 0
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return false, 0
	}
	return true, r.backoff(task.Attempts)
}

// backoff is base * 2^(attempt-1) with +-25% jitter, capped at maxDelay
func (r *RetryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 || r.baseDelay <= 0 {
		return r.baseDelay
	}
	if attempt > 16 {
		attempt = 16
	}

	delay := r.baseDelay * time.Duration(1<<(attempt-1))
	if quarter := int64(delay / 4); quarter > 0 {
		delay += time.Duration(rand.Int63n(2*quarter+1) - quarter)
	}
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}
