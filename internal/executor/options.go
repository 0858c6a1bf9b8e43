package executor

import (
	"context"
	"io"
	"time"
)

// EventWriter receives execution lifecycle events. *events.EventProducer implements it.
type EventWriter interface {
	WriteWithSubject(ctx context.Context, kind, subject string, body io.Reader) error
}

type Option func(e *Executor)

func WithPollInterval(interval time.Duration) Option {
	return func(e *Executor) {
		if interval > 0 {
			e.interval = interval
		}
	}
}

// WithJitter draws every poll delay uniformly from [interval-jitter, interval). A jitter
// that is not below the interval is cut to half of it.
func WithJitter(jitter time.Duration) Option {
	return func(e *Executor) {
		e.jitter = jitter
	}
}

func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithMaxWait bounds the poll loop by wall clock in addition to the attempt count.
func WithMaxWait(d time.Duration) Option {
	return func(e *Executor) {
		e.maxWait = d
	}
}

func WithEventWriter(w EventWriter) Option {
	return func(e *Executor) {
		e.events = w
	}
}
