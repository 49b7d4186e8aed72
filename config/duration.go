// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package config

import (
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// Duration is a duration read from configuration. It accepts ISO 8601
// ("PT30S") as well as Go syntax ("30s").
type Duration time.Duration

// String returns the duration in ISO 8601 format.
func (d Duration) String() string {
	return duration.Format(time.Duration(d))
}

// MarshalText marshals the duration to an ISO 8601 string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText unmarshals the duration from an ISO 8601 or Go string.
func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(strings.ToUpper(s), "P") {
		parsed, err := duration.Parse(strings.ToUpper(s))
		if err != nil {
			return &InvalidArgumentError{
				Field:   "duration",
				message: "invalid ISO 8601 duration " + s,
				wrapped: err,
			}
		}
		*d = Duration(parsed.ToTimeDuration())
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return &InvalidArgumentError{
			Field:   "duration",
			message: "invalid duration " + s,
			wrapped: err,
		}
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
