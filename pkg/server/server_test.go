package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/vango-dev/cells/pkg/cell"
)

func newMotor() *cell.Object {
	motor := cell.NewObject("motor", "temperature", "status")
	motor.Set("temperature", 0)
	motor.Calculate("status", func() any {
		if motor.Get("temperature").(int) < 100 {
			return "on"
		}
		return "off"
	})
	return motor
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(&Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, s.Register("motor", newMotor()))

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestRegister(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Register("a", cell.NewObject("a")))
	require.NoError(t, s.Register("b", cell.NewObject("b")))

	err := s.Register("a", cell.NewObject("again"))
	require.ErrorIs(t, err, ErrDuplicateObject)
	require.Error(t, s.Register("", cell.NewObject("x")))
	require.Error(t, s.Register("nil", nil))

	require.Equal(t, []string{"a", "b"}, s.Names())
	_, ok := s.Object("missing")
	require.False(t, ok)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	var body map[string]any
	status := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
	require.EqualValues(t, 1, body["objects"])
	require.EqualValues(t, 0, body["watchers"])
}

func TestListObjects(t *testing.T) {
	s, ts := newTestServer(t)
	require.NoError(t, s.Register("scratch", cell.NewObject("scratch")))

	var objects []ObjectInfo
	status := doJSON(t, http.MethodGet, ts.URL+"/objects", "", &objects)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, objects, 2)

	require.Equal(t, "motor", objects[0].Name)
	require.True(t, objects[0].Closed)
	require.Equal(t, []string{"temperature", "status"}, objects[0].Cells)
	require.True(t, strings.HasPrefix(objects[0].Object, "motor#"))

	require.Equal(t, "scratch", objects[1].Name)
	require.False(t, objects[1].Closed)
}

func TestGetObject(t *testing.T) {
	_, ts := newTestServer(t)

	var state ObjectState
	status := doJSON(t, http.MethodGet, ts.URL+"/objects/motor", "", &state)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 0, state.Values["temperature"])
	require.Equal(t, "on", state.Values["status"])
	require.Len(t, state.Dependencies["temperature"], 1)
	require.True(t, strings.HasSuffix(state.Dependencies["temperature"][0], ".status"))

	var body errorBody
	status = doJSON(t, http.MethodGet, ts.URL+"/objects/nope", "", &body)
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, body.Error, "nope")
}

func TestGetCell(t *testing.T) {
	_, ts := newTestServer(t)

	var resp cellResponse
	status := doJSON(t, http.MethodGet, ts.URL+"/objects/motor/cells/status", "", &resp)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "status", resp.Cell)
	require.Equal(t, "on", resp.Value)

	var body errorBody
	status = doJSON(t, http.MethodGet, ts.URL+"/objects/motor/cells/speed", "", &body)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "unknown cell", body.Error)
}

func TestPutCellPropagates(t *testing.T) {
	s, ts := newTestServer(t)

	var resp cellResponse
	status := doJSON(t, http.MethodPut, ts.URL+"/objects/motor/cells/temperature", `{"value": 150}`, &resp)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 150, resp.Value)

	motor, _ := s.Object("motor")
	require.NoError(t, s.Do(func() {
		// The JSON number was decoded into the cell's int type.
		require.Equal(t, 150, motor.Peek("temperature"))
		require.Equal(t, "off", motor.Peek("status"))
	}))
}

func TestPutCellErrors(t *testing.T) {
	s, ts := newTestServer(t)

	scratch := cell.NewObject("scratch")
	scratch.Set("n", 1)
	scratch.Calculate("ratio", func() any {
		return 10 / scratch.Get("n").(int)
	})
	require.NoError(t, s.Register("scratch", scratch))

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed body", "/objects/motor/cells/temperature", `{`, http.StatusBadRequest},
		{"missing value", "/objects/motor/cells/temperature", `{}`, http.StatusBadRequest},
		{"wrong type", "/objects/motor/cells/temperature", `{"value": "hot"}`, http.StatusBadRequest},
		{"unknown object", "/objects/nope/cells/x", `{"value": 1}`, http.StatusNotFound},
		{"unknown cell", "/objects/motor/cells/speed", `{"value": 1}`, http.StatusNotFound},
		{"formula panic", "/objects/scratch/cells/n", `{"value": 0}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			status := doJSON(t, http.MethodPut, ts.URL+tt.path, tt.body, &body)
			require.Equal(t, tt.status, status)
			require.Equal(t, tt.status, body.Status)
			require.NotEmpty(t, body.Error)
		})
	}
}

func TestPutCellOpenObject(t *testing.T) {
	s, ts := newTestServer(t)
	require.NoError(t, s.Register("scratch", cell.NewObject("scratch")))

	var resp cellResponse
	status := doJSON(t, http.MethodPut, ts.URL+"/objects/scratch/cells/label", `{"value": "hello"}`, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "hello", resp.Value)

	var objects []ObjectInfo
	doJSON(t, http.MethodGet, ts.URL+"/objects", "", &objects)
	require.Equal(t, []string{"label"}, objects[1].Cells)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "cells_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := New(&Config{Gatherer: reg})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(data), "cells_test_total 1")
}

func TestMetricsDisabled(t *testing.T) {
	s := New(nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDoReturnsCascadeError(t *testing.T) {
	s := New(nil)
	obj := cell.NewObject("closed", "a")

	err := s.Do(func() { obj.Set("b", 1) })
	require.ErrorIs(t, err, cell.ErrUnknownCell)

	err = s.Do(func() { panic("boom") })
	var panicErr *cell.PanicError
	require.True(t, errors.As(err, &panicErr))
}

func TestFromCell(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&cell.Error{Op: "get", Err: cell.ErrUnknownCell}, http.StatusNotFound},
		{&cell.Error{Op: "get", Err: cell.ErrTypeMismatch}, http.StatusBadRequest},
		{&cell.Error{Op: "at", Err: cell.ErrIndexOutOfRange}, http.StatusBadRequest},
		{&cell.Error{Op: "set", Err: cell.ErrDepthExceeded}, http.StatusConflict},
		{&cell.PanicError{Value: "boom"}, http.StatusUnprocessableEntity},
		{&cell.PanicError{Value: Conflict("taken")}, http.StatusConflict},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.code, fromCell(tt.err).StatusCode(), tt.err.Error())
	}
}

func TestDecodeValue(t *testing.T) {
	v, err := decodeValue(json.RawMessage(`3`), 1)
	require.NoError(t, err)
	require.Equal(t, 3, v)

	v, err = decodeValue(json.RawMessage(`[1,2]`), []int{0})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, v)

	v, err = decodeValue(json.RawMessage(`3`), nil)
	require.NoError(t, err)
	require.Equal(t, float64(3), v)

	_, err = decodeValue(json.RawMessage(`"x"`), 1)
	require.ErrorContains(t, err, "cell holds int")
}

func TestSameOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/objects/a/watch", nil)
	require.True(t, sameOrigin(req))

	req.Header.Set("Origin", "http://example.com")
	require.True(t, sameOrigin(req))

	req.Header.Set("Origin", "http://evil.test")
	require.False(t, sameOrigin(req))
}
