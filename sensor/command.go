// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package sensor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Action is the state change requested by a remote command.
type Action byte

const (
	// NoAction leaves the active flag alone.
	NoAction Action = iota
	// ActionActivate turns the unit on ("ATIVAR" or "ACTIVATE").
	ActionActivate
	// ActionDeactivate turns the unit off ("DESATIVAR" or "DEACTIVATE").
	ActionDeactivate
)

func (a Action) String() string {
	switch a {
	case ActionActivate:
		return "ATIVAR"
	case ActionDeactivate:
		return "DESATIVAR"
	default:
		return ""
	}
}

// Command is a parsed remote command.
type Command struct {
	Action Action

	// Interval is zero when the payload carries none or one shorter than
	// MinInterval.
	Interval time.Duration
}

// CommandError is returned when a command payload cannot be parsed.
type CommandError struct {
	Payload string
	wrapped error
	message string
}

func (e *CommandError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *CommandError) Unwrap() error {
	return e.wrapped
}

type rawCommand struct {
	Acao      *string      `json:"acao"`
	Action    *string      `json:"action"`
	Intervalo *json.Number `json:"intervalo"`
	Interval  *json.Number `json:"interval"`
}

// ParseCommand parses a command payload such as
// {"acao":"ATIVAR","intervalo":5000}. The Portuguese and English key names
// are both accepted, with the Portuguese one taking precedence. Unknown
// actions yield NoAction and are not an error. A payload without an action
// key is ignored entirely, interval included.
func ParseCommand(data []byte) (Command, error) {
	var raw rawCommand
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return Command{}, &CommandError{
			Payload: string(data),
			message: "malformed command payload",
			wrapped: err,
		}
	}

	a := first(raw.Acao, raw.Action)
	if a == nil {
		return Command{}, nil
	}
	cmd := Command{Action: parseAction(*a)}

	if n := first(raw.Intervalo, raw.Interval); n != nil {
		ms, err := millis(*n)
		if err != nil {
			return Command{}, &CommandError{
				Payload: string(data),
				message: "invalid command interval",
				wrapped: err,
			}
		}
		// Shorter intervals are ignored rather than clamped.
		if d := time.Duration(ms) * time.Millisecond; d >= MinInterval {
			cmd.Interval = d
		}
	}

	return cmd, nil
}

// Apply applies the command to u.
func (c Command) Apply(u *Unit) {
	switch c.Action {
	case ActionActivate:
		u.Activate()
	case ActionDeactivate:
		u.Deactivate()
	}
	if c.Interval > 0 {
		u.SetInterval(c.Interval)
	}
}

func parseAction(s string) Action {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ATIVAR", "ACTIVATE":
		return ActionActivate
	case "DESATIVAR", "DEACTIVATE":
		return ActionDeactivate
	default:
		return NoAction
	}
}

// Integral milliseconds; fractions are truncated.
func millis(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func first[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
