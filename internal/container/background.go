// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package container

import (
	"context"
	"sync"
)

// Background is a one-shot signal for a long-running background process.
// Closing it cancels every context derived through With using the configured
// cause.
type Background struct {
	err   error
	done  chan struct{}
	close func()
}

// NewBackground creates an open signal that reports err as its cause once
// closed.
func NewBackground(err error) *Background {
	done := make(chan struct{})
	return &Background{err, done, sync.OnceFunc(func() { close(done) })}
}

// With derives a context that is cancelled when either ctx is done or the
// background is closed.
func (b *Background) With(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	c, cancel := context.WithCancelCause(ctx)
	go func() {
		select {
		case <-b.done:
			cancel(b.err)
		case <-c.Done():
		}
	}()
	return c, func() { cancel(context.Canceled) }
}

// Close closes the signal. Safe to call more than once.
func (b *Background) Close() {
	b.close()
}

// Done is closed once Close has been called.
func (b *Background) Done() <-chan struct{} {
	return b.done
}

// Closed reports whether Close has been called.
func (b *Background) Closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
