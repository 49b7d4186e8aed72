// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package options resolves the typed option lists used by the constructors in
// this module.
package options

import "iter"

// Apply yields every non-nil option that implements T, first from opts and
// then from rest. Options of other types are skipped, which lets a single
// option value serve several constructors.
func Apply[T, O any](opts []O, rest ...O) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, list := range [][]O{opts, rest} {
			for _, opt := range list {
				if op, ok := any(opt).(T); ok && any(op) != nil && !yield(op) {
					return
				}
			}
		}
	}
}
