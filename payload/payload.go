// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package payload serializes readings into the JSON document published on
// the data topics, including its integrity digest.
package payload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/monitorizapt/sensorfleet/location"
	"github.com/monitorizapt/sensorfleet/reading"
	"github.com/shopspring/decimal"
)

// DefaultOwner is stamped on payloads when no owner is configured.
const DefaultOwner = "Rodrigo_Martins_a22508678"

type (
	// Sensor is the identity a payload is built for.
	Sensor interface {
		ID() string
		Kind() reading.Kind
		Location() location.Location
	}

	// Builder serializes readings. The zero value uses DefaultOwner.
	Builder struct {
		Owner string
	}

	// Document is the published record. Field order is the wire order.
	Document struct {
		Campus    string  `json:"campus"`
		Sensor    string  `json:"sensor"`
		UniqueID  string  `json:"ID Unico"`
		Owner     string  `json:"Owner"`
		Kind      string  `json:"tipo"`
		Value     float64 `json:"valor"`
		Unit      string  `json:"unidade"`
		Alert     bool    `json:"alerta"`
		Timestamp int64   `json:"timestamp"`
	}

	// wire is Document as serialized; valor always carries a decimal point.
	wire struct {
		Campus    string `json:"campus"`
		Sensor    string `json:"sensor"`
		UniqueID  string `json:"ID Unico"`
		Owner     string `json:"Owner"`
		Kind      string `json:"tipo"`
		Value     number `json:"valor"`
		Unit      string `json:"unidade"`
		Alert     bool   `json:"alerta"`
		Timestamp int64  `json:"timestamp"`
	}

	signed struct {
		wire
		Hash string `json:"hash_validacao"`
	}

	number float64
)

func (d Document) toWire() wire {
	return wire{
		Campus:    d.Campus,
		Sensor:    d.Sensor,
		UniqueID:  d.UniqueID,
		Owner:     d.Owner,
		Kind:      d.Kind,
		Value:     number(d.Value),
		Unit:      d.Unit,
		Alert:     d.Alert,
		Timestamp: d.Timestamp,
	}
}

func (w wire) document() Document {
	return Document{
		Campus:    w.Campus,
		Sensor:    w.Sensor,
		UniqueID:  w.UniqueID,
		Owner:     w.Owner,
		Kind:      w.Kind,
		Value:     float64(w.Value),
		Unit:      w.Unit,
		Alert:     w.Alert,
		Timestamp: w.Timestamp,
	}
}

// MarshalJSON writes n in plain decimal notation with at least one
// fractional digit, so 23 is written as 23.0 and 23.46 as 23.46.
func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &json.UnsupportedValueError{Str: fmt.Sprint(f)}
	}
	s := decimal.NewFromFloat(f).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return []byte(s), nil
}

// EncodeError is returned when a document cannot be serialized.
type EncodeError struct {
	wrapped error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("payload encoding failed: %v", e.wrapped)
}

func (e *EncodeError) Unwrap() error {
	return e.wrapped
}

// IntegrityError is returned by Verify when the digest does not match.
type IntegrityError struct {
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf(
		"payload digest mismatch: expected %s, got %s",
		e.Expected,
		e.Actual,
	)
}

// Round rounds v half-up to two decimal places.
func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Document assembles the unsigned record for a reading.
func (b *Builder) Document(s Sensor, r reading.Reading) Document {
	owner := b.Owner
	if owner == "" {
		owner = DefaultOwner
	}
	return Document{
		Campus:    s.Location().Description(),
		Sensor:    s.ID(),
		UniqueID:  s.ID(),
		Owner:     owner,
		Kind:      s.Kind().Tag(),
		Value:     Round(r.Value),
		Unit:      r.Unit,
		Alert:     r.Alert,
		Timestamp: r.Timestamp,
	}
}

// Build returns the signed JSON payload for a reading.
func (b *Builder) Build(s Sensor, r reading.Reading) ([]byte, error) {
	return Sign(b.Document(s, r))
}

// Sign appends the digest of doc and serializes the result.
func Sign(doc Document) ([]byte, error) {
	w := doc.toWire()
	unsigned, err := encode(w)
	if err != nil {
		return nil, err
	}
	return encode(signed{wire: w, Hash: Digest(unsigned)})
}

// Verify checks the digest carried by a published payload and returns the
// decoded document.
func Verify(data []byte) (Document, error) {
	var s signed
	if err := json.Unmarshal(data, &s); err != nil {
		return Document{}, &EncodeError{err}
	}

	unsigned, err := encode(s.wire)
	if err != nil {
		return Document{}, err
	}

	if expected := Digest(unsigned); expected != s.Hash {
		return Document{}, &IntegrityError{Expected: expected, Actual: s.Hash}
	}
	return s.document(), nil
}

// Digest is the lowercase hex SHA-256 of data with all spaces removed.
func Digest(data []byte) string {
	sum := sha256.Sum256([]byte(strings.ReplaceAll(string(data), " ", "")))
	return hex.EncodeToString(sum[:])
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, &EncodeError{err}
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
