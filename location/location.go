// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package location is the static registry of monitored sites and the topic
// names derived from them.
package location

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	dataTopicPrefix    = "envira/pt/sensores/dados/"
	commandTopicPrefix = "envira/pt/sensores/comandos/"
)

// Location is an immutable monitored site.
type Location struct {
	key         string
	description string
	segment     string
}

// The monitored sites, in registry order.
var (
	LisboaCampusIPLuso = Location{"LISBOA_CAMPUS_IPLUSO", "Lisboa - Campus IPLuso", "Lisboa_Campus_IPLuso"}
	LisboaBaixa        = Location{"LISBOA_BAIXA", "Lisboa - Baixa", "Lisboa_Baixa"}
	PortoMatosinhos    = Location{"PORTO_MATOSINHOS", "Porto - Matosinhos", "Porto_Matosinhos"}
	CoimbraCentro      = Location{"COIMBRA_CENTRO", "Coimbra - Centro", "Coimbra_Centro"}
	FaroMarina         = Location{"FARO_MARINA", "Faro - Marina", "Faro_Marina"}
	BragaSameiro       = Location{"BRAGA_SAMEIRO", "Braga - Sameiro", "Braga_Sameiro"}
	EvoraUniversidade  = Location{"EVORA_UNIVERSIDADE", "Évora - Universidade", "Evora_Universidade"}
)

var registry = []Location{
	LisboaCampusIPLuso,
	LisboaBaixa,
	PortoMatosinhos,
	CoimbraCentro,
	FaroMarina,
	BragaSameiro,
	EvoraUniversidade,
}

// NotFoundError is returned when a lookup matches no registered location.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown location %q", e.Name)
}

// All returns every registered location in registry order.
func All() []Location {
	out := make([]Location, len(registry))
	copy(out, registry)
	return out
}

// ByKey looks up a location by its symbolic key, ignoring case.
func ByKey(key string) (Location, error) {
	for _, l := range registry {
		if strings.EqualFold(l.key, key) {
			return l, nil
		}
	}
	return Location{}, &NotFoundError{Name: key}
}

// BySegment looks up a location by its topic segment.
func BySegment(segment string) (Location, error) {
	for _, l := range registry {
		if l.segment == segment {
			return l, nil
		}
	}
	return Location{}, &NotFoundError{Name: segment}
}

// Key returns the symbolic key, e.g. LISBOA_BAIXA.
func (l Location) Key() string { return l.key }

// Description returns the human readable name.
func (l Location) Description() string { return l.description }

// Segment returns the topic-safe identifier.
func (l Location) Segment() string { return l.segment }

// DataTopic is the topic readings for this location are published on.
func (l Location) DataTopic() string { return dataTopicPrefix + l.segment }

// CommandTopic is the topic remote commands for this location arrive on.
func (l Location) CommandTopic() string { return commandTopicPrefix + l.segment }

// IsZero reports whether l is the zero Location.
func (l Location) IsZero() bool { return l.key == "" }

func (l Location) String() string { return l.key }

// SensorID derives the unique sensor identifier for this location.
func (l Location) SensorID() string {
	return "PT-SENSOR-" + strings.ToUpper(Sanitize(l.segment))
}

// StripAccents removes diacritics, so "Évora" becomes "Evora".
func StripAccents(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	res, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return res
}

// Sanitize strips diacritics and replaces every rune that is not an ASCII
// letter or digit with an underscore.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, StripAccents(s))
}
