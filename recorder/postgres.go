// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package recorder

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	createReadings = `CREATE TABLE IF NOT EXISTS sensor_readings (
	time      TIMESTAMPTZ      NOT NULL,
	sensor_id TEXT             NOT NULL,
	location  TEXT             NOT NULL,
	kind      TEXT             NOT NULL,
	value     DOUBLE PRECISION NOT NULL,
	unit      TEXT             NOT NULL,
	alert     BOOLEAN          NOT NULL,
	payload   JSONB            NOT NULL
)`

	insertReading = `INSERT INTO sensor_readings
	(time, sensor_id, location, kind, value, unit, alert, payload)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

// Execer is the subset of *pgxpool.Pool the recorder uses.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Postgres archives every reading in the sensor_readings table.
type Postgres struct {
	db Execer
}

// NewPostgres returns a recorder writing through db.
func NewPostgres(db Execer) *Postgres {
	return &Postgres{db: db}
}

func (*Postgres) Name() string { return "postgres" }

// Migrate creates the readings table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createReadings); err != nil {
		return &RecordError{Recorder: "postgres", wrapped: err}
	}
	return nil
}

func (p *Postgres) Record(ctx context.Context, e Entry) error {
	_, err := p.db.Exec(ctx, insertReading,
		time.UnixMilli(e.Reading.Timestamp).UTC(),
		e.SensorID,
		e.Location.Key(),
		e.Kind.Tag(),
		e.Reading.Value,
		e.Reading.Unit,
		e.Reading.Alert,
		string(e.Payload),
	)
	if err != nil {
		return &RecordError{Recorder: "postgres", SensorID: e.SensorID, wrapped: err}
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}
