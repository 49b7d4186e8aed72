// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/monitorizapt/sensorfleet/fleet"
	"github.com/monitorizapt/sensorfleet/httpapi"
	"github.com/monitorizapt/sensorfleet/location"
	"github.com/monitorizapt/sensorfleet/reading"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFleet struct{ mock.Mock }

func (m *mockFleet) Snapshots() []fleet.Snapshot {
	return m.Called().Get(0).([]fleet.Snapshot)
}

func (m *mockFleet) Snapshot(key string) (fleet.Snapshot, error) {
	args := m.Called(key)
	return args.Get(0).(fleet.Snapshot), args.Error(1)
}

func (m *mockFleet) Activate(key string, interval time.Duration) (fleet.Snapshot, error) {
	args := m.Called(key, interval)
	return args.Get(0).(fleet.Snapshot), args.Error(1)
}

func (m *mockFleet) Deactivate(key string) (fleet.Snapshot, error) {
	args := m.Called(key)
	return args.Get(0).(fleet.Snapshot), args.Error(1)
}

func (m *mockFleet) Read(key string) (fleet.Snapshot, error) {
	args := m.Called(key)
	return args.Get(0).(fleet.Snapshot), args.Error(1)
}

func (m *mockFleet) Connected() bool {
	return m.Called().Bool(0)
}

func (m *mockFleet) ClientID() string {
	return m.Called().String(0)
}

func (m *mockFleet) TestBroker(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

var faro = fleet.Snapshot{
	ID:          "PT-SENSOR-FARO_MARINA",
	Location:    "FARO_MARINA",
	Description: "Faro - Marina",
	Kind:        reading.Humidity,
	IntervalMs:  3333,
}

func serve(t *testing.T, f httpapi.Fleet, method, target string, opts ...httpapi.ServerOption) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	httpapi.New(f, opts...).Handler().ServeHTTP(rr, req)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	return rr.Code, rr.Body.Bytes()
}

func errorOf(t *testing.T, body []byte) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload["error"]
}

func TestHealth(t *testing.T) {
	f := &mockFleet{}
	f.On("Connected").Return(true)

	code, body := serve(t, f, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"ok","connected":true}`, string(body))
}

func TestListSensors(t *testing.T) {
	f := &mockFleet{}
	f.On("Snapshots").Return([]fleet.Snapshot{faro})

	code, body := serve(t, f, http.MethodGet, "/sensors")
	require.Equal(t, http.StatusOK, code)

	var got []fleet.Snapshot
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, []fleet.Snapshot{faro}, got)
}

func TestGetSensor(t *testing.T) {
	f := &mockFleet{}
	f.On("Snapshot", "FARO_MARINA").Return(faro, nil)
	f.On("Snapshot", "ATLANTIS").Return(fleet.Snapshot{}, &location.NotFoundError{Name: "ATLANTIS"})

	code, body := serve(t, f, http.MethodGet, "/sensors/FARO_MARINA")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), `"kind":"humidade"`)

	code, body = serve(t, f, http.MethodGet, "/sensors/ATLANTIS")
	require.Equal(t, http.StatusNotFound, code)
	require.Contains(t, errorOf(t, body), "ATLANTIS")
}

func TestActivate(t *testing.T) {
	active := faro
	active.Active = true

	f := &mockFleet{}
	f.On("Snapshot", "FARO_MARINA").Return(faro, nil)
	f.On("Activate", "FARO_MARINA", 5*time.Second).Return(active, nil).Once()
	f.On("Activate", "FARO_MARINA", 3333*time.Millisecond).Return(active, nil).Once()

	code, _ := serve(t, f, http.MethodPost, "/sensors/FARO_MARINA/activate?interval=5000")
	require.Equal(t, http.StatusOK, code)

	code, body := serve(t, f, http.MethodPost, "/sensors/FARO_MARINA/activate")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), `"active":true`)

	for _, bad := range []string{"abc", "-5", "0"} {
		code, body := serve(t, f, http.MethodPost, "/sensors/FARO_MARINA/activate?interval="+bad)
		require.Equal(t, http.StatusBadRequest, code, bad)
		require.Contains(t, errorOf(t, body), "invalid interval")
	}

	f.AssertExpectations(t)
}

func TestDeactivateAndRead(t *testing.T) {
	withLast := faro
	withLast.Last = &fleet.Measurement{Value: 61.5, Formatted: "61.50%", Unit: "%"}

	f := &mockFleet{}
	f.On("Deactivate", "FARO_MARINA").Return(faro, nil)
	f.On("Read", "FARO_MARINA").Return(withLast, nil)

	code, body := serve(t, f, http.MethodPost, "/sensors/FARO_MARINA/deactivate")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), `"active":false`)

	code, body = serve(t, f, http.MethodPost, "/sensors/FARO_MARINA/read")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), `"formatted":"61.50%"`)
}

func TestBroker(t *testing.T) {
	f := &mockFleet{}
	f.On("ClientID").Return("sensor-pt-1234")
	f.On("Connected").Return(false)
	f.On("TestBroker", mock.Anything).Return(false).Once()
	f.On("TestBroker", mock.Anything).Return(true).Once()

	code, body := serve(t, f, http.MethodGet, "/broker")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"client_id":"sensor-pt-1234","connected":false}`, string(body))

	code, _ = serve(t, f, http.MethodPost, "/broker/test")
	require.Equal(t, http.StatusServiceUnavailable, code)

	code, body = serve(t, f, http.MethodPost, "/broker/test")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"client_id":"sensor-pt-1234","connected":true}`, string(body))
}

func TestBrokerTestIsBounded(t *testing.T) {
	f := &mockFleet{}
	f.On("ClientID").Return("sensor-pt-1234")
	f.On("TestBroker", mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
	}).Return(false)

	code, _ := serve(t, f, http.MethodPost, "/broker/test", httpapi.WithBrokerTestTimeout(10*time.Millisecond))
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestRoutingErrors(t *testing.T) {
	f := &mockFleet{}

	code, body := serve(t, f, http.MethodGet, "/nope")
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "no such route", errorOf(t, body))

	code, _ = serve(t, f, http.MethodDelete, "/sensors")
	require.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = serve(t, f, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusNotFound, code)
}

func TestMetricsAndAccessLog(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	var access bytes.Buffer

	code, _ := serve(t, &mockFleet{}, http.MethodGet, "/metrics",
		httpapi.WithMetrics(metrics),
		httpapi.WithAccessLog(&access),
	)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, access.String(), `"GET /metrics HTTP/1.1" 200`)
}
