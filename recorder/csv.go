// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package recorder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/monitorizapt/sensorfleet/internal/wallclock"
	"github.com/monitorizapt/sensorfleet/location"
)

// DefaultCSVDir is where CSV files are written when no directory is given.
const DefaultCSVDir = "registos_csv"

// CSVHeader is the first row of every CSV file.
var CSVHeader = []string{
	"TIMESTAMP_ISO",
	"TIMESTAMP_UNIX",
	"SENSOR_ID",
	"LOCALIZACAO",
	"TIPO",
	"VALOR",
	"UNIDADE",
	"ALERTA",
}

// CSV appends one row per reading to a file per location and day, e.g.
// registos_csv/Lisboa___Baixa_2024-01-23.csv. Fields are separated by
// semicolons.
type CSV struct {
	dir string
	mu  sync.Mutex
}

// NewCSV creates dir if needed and returns a recorder writing into it.
func NewCSV(dir string) (*CSV, error) {
	if dir == "" {
		dir = DefaultCSVDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &RecordError{Recorder: "csv", wrapped: err}
	}
	return &CSV{dir: dir}, nil
}

func (*CSV) Name() string { return "csv" }

// Path returns the file rows for loc are appended to on day, in local time.
func (c *CSV) Path(loc location.Location, day time.Time) string {
	name := fmt.Sprintf(
		"%s_%s.csv",
		SafeName(loc.Description()),
		day.Local().Format(time.DateOnly),
	)
	return filepath.Join(c.dir, name)
}

// Record appends the entry to today's file for its location, writing the
// header first if the file is new.
func (c *CSV) Record(_ context.Context, e Entry) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	defer func() {
		if err != nil {
			err = &RecordError{Recorder: "csv", SensorID: e.SensorID, wrapped: err}
		}
	}()

	f, err := os.OpenFile(
		c.Path(e.Location, wallclock.Instance.Now()),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY,
		0o644,
	)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	w.Comma = ';'
	if info.Size() == 0 {
		if err := w.Write(CSVHeader); err != nil {
			return err
		}
	}
	if err := w.Write(row(e)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func row(e Entry) []string {
	alert := "NAO"
	if e.Reading.Alert {
		alert = "SIM"
	}
	return []string{
		isoInstant(e.Reading.Timestamp),
		strconv.FormatInt(e.Reading.Timestamp, 10),
		e.SensorID,
		e.Location.Description(),
		strings.ToUpper(e.Kind.Tag()),
		strconv.FormatFloat(e.Reading.Value, 'f', 2, 64),
		e.Reading.Unit,
		alert,
	}
}

// UTC, with milliseconds only when there are any.
func isoInstant(ms int64) string {
	t := time.UnixMilli(ms).UTC()
	if ms%1000 == 0 {
		return t.Format("2006-01-02T15:04:05Z")
	}
	return t.Format("2006-01-02T15:04:05.000Z")
}

// SafeName replaces every rune outside [a-zA-Z0-9._-] with an underscore.
func SafeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
