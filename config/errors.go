// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package config

import (
	"fmt"
	"log/slog"
	"strings"
)

type (
	// InvalidArgumentError is returned for a setting that fails validation.
	InvalidArgumentError struct {
		Field   string
		wrapped error
		message string
	}

	// FileError is returned when the configuration file cannot be read or
	// decoded.
	FileError struct {
		Path    string
		wrapped error
	}
)

func (e *InvalidArgumentError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.message)
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.wrapped
}

// Attrs returns additional error attributes for slog.
func (e *InvalidArgumentError) Attrs() []slog.Attr {
	return []slog.Attr{slog.String("field", e.Field)}
}

func (e *FileError) Error() string {
	return fmt.Sprintf("config file %s: %v", e.Path, e.wrapped)
}

func (e *FileError) Unwrap() error {
	return e.wrapped
}

// Attrs returns additional error attributes for slog.
func (e *FileError) Attrs() []slog.Attr {
	return []slog.Attr{slog.String("path", e.Path)}
}

// ParseLevel maps a level name onto an slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, &InvalidArgumentError{
			Field:   "log.level",
			message: "unknown level " + s,
		}
	}
	return level, nil
}
