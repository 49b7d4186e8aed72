// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package reading defines sensor measurements and the generators that
// simulate them for each sensor kind.
package reading

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/monitorizapt/sensorfleet/internal/wallclock"
)

type (
	// Reading is one timestamped measurement.
	Reading struct {
		Value     float64
		Unit      string
		Alert     bool
		Timestamp int64 // epoch milliseconds
	}

	// Generator produces readings for a single sensor kind. Implementations
	// must be safe for concurrent use.
	Generator interface {
		Kind() Kind
		Generate() Reading
	}

	// Source is the randomness used by the generators.
	Source interface {
		Float64() float64
	}
)

// Kind identifies what a sensor measures.
type Kind byte

const (
	Temperature Kind = iota
	Humidity
	AirQuality
)

// UnknownKindError is returned when a kind name cannot be parsed.
type UnknownKindError struct {
	Name string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown sensor kind %q", e.Name)
}

// ParseKind parses the tag produced by Kind.Tag.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{Temperature, Humidity, AirQuality} {
		if k.Tag() == s {
			return k, nil
		}
	}
	return 0, &UnknownKindError{Name: s}
}

// Tag is the wire name of the kind.
func (k Kind) Tag() string {
	switch k {
	case Temperature:
		return "temperatura"
	case Humidity:
		return "humidade"
	case AirQuality:
		return "qualidade_ar"
	default:
		return ""
	}
}

// Unit is the default unit readings of this kind carry.
func (k Kind) Unit() string {
	switch k {
	case Temperature:
		return "Celsius"
	case Humidity:
		return "%"
	case AirQuality:
		return "AQI"
	default:
		return ""
	}
}

// Threshold is the value above which a reading raises an alert.
func (k Kind) Threshold() float64 {
	switch k {
	case Temperature:
		return 30
	case Humidity:
		return 80
	case AirQuality:
		return 50
	default:
		return 0
	}
}

// Format renders v for display, e.g. "23.46°C".
func (k Kind) Format(v float64) string {
	switch k {
	case Temperature:
		return fmt.Sprintf("%.2f°C", v)
	case Humidity:
		return fmt.Sprintf("%.2f%%", v)
	case AirQuality:
		return fmt.Sprintf("%.2f AQI", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func (k Kind) String() string {
	return k.Tag()
}

// MarshalText encodes the kind as its tag.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.Tag()), nil
}

// UnmarshalText decodes a tag.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// New returns the generator for kind drawing from src. A nil src uses the
// process-wide generator from math/rand/v2. Generators built from the same
// unlocked src do not share a lock; wrap it once with Locked and pass the
// result to each New call instead.
func New(kind Kind, src Source) Generator {
	b := base{kind: kind, src: Locked(src)}
	switch kind {
	case Humidity:
		return &humidity{b}
	case AirQuality:
		return &airQuality{b}
	default:
		return &temperature{b}
	}
}

type base struct {
	kind Kind
	src  Source
}

func (b *base) Kind() Kind { return b.kind }

func (b *base) reading(v float64) Reading {
	return Reading{
		Value:     v,
		Unit:      b.kind.Unit(),
		Alert:     v > b.kind.Threshold(),
		Timestamp: wallclock.UnixMilli(),
	}
}

// between returns a value in [lo, hi).
func (b *base) between(lo, hi float64) float64 {
	return lo + b.src.Float64()*(hi-lo)
}

type temperature struct{ base }

// Generate draws 16–31.5 °C, with 8 % extreme cold and 12 % extreme heat.
func (g *temperature) Generate() Reading {
	v := g.between(16, 31.5)
	if g.src.Float64() < 0.08 {
		v = g.between(-45, -5)
	} else if g.src.Float64() < 0.12 {
		v = g.between(31.5, 48)
	}
	return g.reading(v)
}

type humidity struct{ base }

// Generate draws 45–78 %, with 10 % very dry and 10 % saturated readings.
func (g *humidity) Generate() Reading {
	v := g.between(45, 78)
	if g.src.Float64() < 0.10 {
		v = g.between(0, 15)
	} else if g.src.Float64() < 0.10 {
		v = g.between(81, 95)
	}
	return g.reading(v)
}

type airQuality struct{ base }

// Generate draws 5–45 AQI, with 15 % pollution spikes and 5 % sensor faults
// reporting negative values.
func (g *airQuality) Generate() Reading {
	v := g.between(5, 45)
	if g.src.Float64() < 0.15 {
		v = g.between(51, 120)
	} else if g.src.Float64() < 0.05 {
		v = g.between(-10, 0)
	}
	return g.reading(v)
}

// Locked returns a Source that serializes every draw from src behind a
// single mutex, so it can be shared by generators running on different
// goroutines. Locking an already locked source returns it unchanged. A nil
// src yields the process-wide generator, which is already safe.
func Locked(src Source) Source {
	switch s := src.(type) {
	case nil:
		return globalSource{}
	case *lockedSource, globalSource:
		return s
	default:
		return &lockedSource{src: src}
	}
}

type lockedSource struct {
	mu  sync.Mutex
	src Source
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Float64()
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
