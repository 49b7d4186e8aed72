// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package retry

import (
	"context"
	"fmt"
)

type (
	// Task represents a function to retry. It should return a boolean
	// indicating whether a retry should occur on the given error.
	Task = func(context.Context) (shouldRetry bool, err error)

	// Policy is the retry policy for task execution.
	Policy interface {
		Start(ctx context.Context, name string, task Task) error
	}
)

// AbortedError is returned when the context ends while waiting between
// attempts. It carries the error of the last attempt.
type AbortedError struct {
	Attempts uint64
	Last     error
	Cause    error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf(
		"retry aborted after %d attempts: %v (last error: %v)",
		e.Attempts,
		e.Cause,
		e.Last,
	)
}

func (e *AbortedError) Unwrap() []error {
	return []error{e.Cause, e.Last}
}
