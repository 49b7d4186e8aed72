// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package fleet

import (
	"context"
	"fmt"

	"github.com/monitorizapt/sensorfleet/internal/wallclock"
	"github.com/monitorizapt/sensorfleet/reading"
	"github.com/monitorizapt/sensorfleet/recorder"
	"github.com/monitorizapt/sensorfleet/sensor"
)

// LogTimeLayout formats the timestamp that prefixes every log line.
const LogTimeLayout = "02-01-2006 15:04:05"

type (
	// Snapshot is the state of one unit at a point in time.
	Snapshot struct {
		ID          string       `json:"id"`
		Location    string       `json:"location"`
		Description string       `json:"description"`
		Kind        reading.Kind `json:"kind"`
		Active      bool         `json:"active"`
		Running     bool         `json:"running"`
		IntervalMs  int64        `json:"interval_ms"`
		Last        *Measurement `json:"last,omitempty"`
	}

	// Measurement is a reading as shown to operators.
	Measurement struct {
		Value     float64 `json:"value"`
		Formatted string  `json:"formatted"`
		Unit      string  `json:"unit"`
		Alert     bool    `json:"alert"`
		Timestamp int64   `json:"timestamp"`
	}

	// SnapshotObserver receives a snapshot after every publish. It runs on
	// the publishing unit's loop goroutine.
	SnapshotObserver = func(Snapshot)

	// LogObserver receives formatted activity lines such as
	// "23-01-2024 10:00:00 [INFO] Sensor PT-SENSOR-FARO_MARINA desativado".
	LogObserver = func(line string)
)

// RegisterSnapshotObserver adds fn to the snapshot fan-out. The returned
// function removes it.
func (c *Coordinator) RegisterSnapshotObserver(fn SnapshotObserver) (remove func()) {
	return c.snapshotObservers.Append(fn)
}

// RegisterLogObserver adds fn to the activity log fan-out. The returned
// function removes it.
func (c *Coordinator) RegisterLogObserver(fn LogObserver) (remove func()) {
	return c.logObservers.Append(fn)
}

// Snapshot returns the state of the unit at key.
func (c *Coordinator) Snapshot(key string) (Snapshot, error) {
	u, err := c.Unit(key)
	if err != nil {
		return Snapshot{}, err
	}
	return c.snapshot(u, nil), nil
}

// Snapshots returns the state of every unit in registry order.
func (c *Coordinator) Snapshots() []Snapshot {
	out := make([]Snapshot, len(c.units))
	for i, u := range c.units {
		out[i] = c.snapshot(u, nil)
	}
	return out
}

// A nil r uses the unit's last reading.
func (*Coordinator) snapshot(u *sensor.Unit, r *reading.Reading) Snapshot {
	s := Snapshot{
		ID:          u.ID(),
		Location:    u.Location().Key(),
		Description: u.Location().Description(),
		Kind:        u.Kind(),
		Active:      u.Active(),
		Running:     u.Running(),
		IntervalMs:  u.Interval().Milliseconds(),
	}
	if r == nil {
		if last, ok := u.Last(); ok {
			r = &last
		}
	}
	if r != nil {
		s.Last = &Measurement{
			Value:     r.Value,
			Formatted: u.Kind().Format(r.Value),
			Unit:      r.Unit,
			Alert:     r.Alert,
			Timestamp: r.Timestamp,
		}
	}
	return s
}

func (c *Coordinator) feed(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.log.feed(context.Background(), msg)

	line := wallclock.Instance.Now().Format(LogTimeLayout) + " [INFO] " + msg
	for fn := range c.logObservers.All() {
		fn(line)
	}
}

func (c *Coordinator) record(u *sensor.Unit, r reading.Reading, data []byte) {
	e := recorder.Entry{
		SensorID: u.ID(),
		Location: u.Location(),
		Kind:     u.Kind(),
		Reading:  r,
		Payload:  data,
	}
	for _, rec := range c.options.Recorders {
		ctx, cancel := wallclock.Instance.WithTimeoutCause(
			context.Background(),
			c.options.RecordTimeout,
			errRecordTimeout,
		)
		if err := rec.Record(ctx, e); err != nil {
			c.log.Err(ctx, err)
			c.options.Metrics.RecordError(rec.Name())
		}
		cancel()
	}
}
