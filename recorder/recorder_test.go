// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package recorder_test

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/monitorizapt/sensorfleet/location"
	"github.com/monitorizapt/sensorfleet/mqtt/retry"
	"github.com/monitorizapt/sensorfleet/reading"
	"github.com/monitorizapt/sensorfleet/recorder"
	"github.com/redis/go-redis/v9"
	"github.com/relvacode/iso8601"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func entry(loc location.Location, kind reading.Kind, value float64, ts int64) recorder.Entry {
	return recorder.Entry{
		SensorID: loc.SensorID(),
		Location: loc,
		Kind:     kind,
		Reading: reading.Reading{
			Value:     value,
			Unit:      kind.Unit(),
			Alert:     value > kind.Threshold(),
			Timestamp: ts,
		},
		Payload: []byte(`{"valor":1}`),
	}
}

func TestSafeName(t *testing.T) {
	require.Equal(t, "Lisboa_-_Campus_IPLuso", recorder.SafeName("Lisboa - Campus IPLuso"))
	require.Equal(t, "_vora_-_Universidade", recorder.SafeName("Évora - Universidade"))
	require.Equal(t, "a.b_c-d", recorder.SafeName("a.b_c-d"))
}

func TestCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "registos")
	c, err := recorder.NewCSV(dir)
	require.NoError(t, err)
	require.Equal(t, "csv", c.Name())

	ctx := context.Background()
	require.NoError(t, c.Record(ctx, entry(location.EvoraUniversidade, reading.Temperature, 31.456, 1706004000123)))
	require.NoError(t, c.Record(ctx, entry(location.EvoraUniversidade, reading.Temperature, 20, 1706004003000)))
	require.NoError(t, c.Record(ctx, entry(location.BragaSameiro, reading.AirQuality, 12, 1706004003000)))

	path := c.Path(location.EvoraUniversidade, time.Now())
	require.Equal(t, dir, filepath.Dir(path))
	require.Contains(t, filepath.Base(path), "_vora_-_Universidade_")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, recorder.CSVHeader, rows[0])

	require.Equal(t, []string{
		"2024-01-23T10:00:00.123Z",
		"1706004000123",
		"PT-SENSOR-EVORA_UNIVERSIDADE",
		"Évora - Universidade",
		"TEMPERATURA",
		"31.46",
		"Celsius",
		"SIM",
	}, rows[1])
	require.Equal(t, "2024-01-23T10:00:03Z", rows[2][0])
	require.Equal(t, "NAO", rows[2][7])

	for _, row := range rows[1:] {
		ts, err := iso8601.ParseString(row[0])
		require.NoError(t, err)
		require.Equal(t, row[1], strconv.FormatInt(ts.UnixMilli(), 10))
	}
}

func TestCSVBadDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := recorder.NewCSV(filepath.Join(file, "sub"))
	var recErr *recorder.RecordError
	require.ErrorAs(t, err, &recErr)
}

type redisMock struct {
	mock.Mock
}

func (m *redisMock) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, ttl)
	return redis.NewStatusResult(args.String(0), args.Error(1))
}

func (m *redisMock) Ping(ctx context.Context) *redis.StatusCmd {
	args := m.Called(ctx)
	return redis.NewStatusResult(args.String(0), args.Error(1))
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	e := entry(location.FaroMarina, reading.Humidity, 55, 1706004000000)

	client := new(redisMock)
	client.On("Set", ctx, "sensor:last:PT-SENSOR-FARO_MARINA", e.Payload, recorder.DefaultRedisTTL).
		Return("OK", nil).Once()
	client.On("Set", ctx, "sensor:last:PT-SENSOR-FARO_MARINA", e.Payload, recorder.DefaultRedisTTL).
		Return("", errors.New("READONLY")).Once()
	client.On("Ping", ctx).Return("PONG", nil)

	r := recorder.NewRedis(client, 0)
	require.Equal(t, "redis", r.Name())
	require.NoError(t, r.Record(ctx, e))

	err := r.Record(ctx, e)
	var recErr *recorder.RecordError
	require.ErrorAs(t, err, &recErr)
	require.Equal(t, "PT-SENSOR-FARO_MARINA", recErr.SensorID)

	require.NoError(t, r.Ping(ctx))
	client.AssertExpectations(t)
}

type pgMock struct {
	mock.Mock
}

func (m *pgMock) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	res := m.Called(append([]any{ctx, sql}, args...)...)
	return pgconn.NewCommandTag(res.String(0)), res.Error(1)
}

func (m *pgMock) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestPostgres(t *testing.T) {
	ctx := context.Background()
	e := entry(location.PortoMatosinhos, reading.AirQuality, 72.5, 1706004000000)

	db := new(pgMock)
	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.HasPrefix(sql, "CREATE")
	})).Return("CREATE TABLE", nil)
	db.On("Exec", ctx, mock.AnythingOfType("string"),
		time.UnixMilli(1706004000000).UTC(),
		"PT-SENSOR-PORTO_MATOSINHOS",
		"PORTO_MATOSINHOS",
		"qualidade_ar",
		72.5,
		"AQI",
		true,
		string(e.Payload),
	).Return("INSERT 0 1", nil)

	p := recorder.NewPostgres(db)
	require.Equal(t, "postgres", p.Name())
	require.NoError(t, p.Migrate(ctx))
	require.NoError(t, p.Record(ctx, e))
	db.AssertNumberOfCalls(t, "Exec", 2)
}

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitReady(t *testing.T) {
	policy := &retry.ExponentialBackoff{
		MaxAttempts: 4,
		MinInterval: time.Millisecond,
		NoJitter:    true,
	}

	p := &flakyPinger{failures: 2}
	require.NoError(t, recorder.WaitReady(context.Background(), "redis", p, policy))
	require.Equal(t, 3, p.calls)

	p = &flakyPinger{failures: 10}
	require.Error(t, recorder.WaitReady(context.Background(), "redis", p, policy))
	require.Equal(t, 4, p.calls)
}
