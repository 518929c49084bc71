package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/vango-dev/cells/pkg/cell"
)

func dialWatch(t *testing.T, url, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWatchStreamsChanges(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dialWatch(t, ts.URL, "/objects/motor/watch")

	welcome := readEvent(t, conn)
	require.Equal(t, EventWelcome, welcome.Type)
	require.Equal(t, "motor", welcome.Object)
	require.Equal(t, []string{"temperature", "status"}, welcome.Cells)
	require.Len(t, welcome.Watcher, 26)
	require.Equal(t, 1, s.WatcherCount())

	status := doJSON(t, http.MethodPut, ts.URL+"/objects/motor/cells/temperature", `{"value": 120}`, nil)
	require.Equal(t, http.StatusOK, status)

	// Observers of temperature run before status is recomputed.
	ev := readEvent(t, conn)
	require.Equal(t, EventChange, ev.Type)
	require.Equal(t, welcome.Watcher, ev.Watcher)
	require.Equal(t, "temperature", ev.Cell)
	require.EqualValues(t, 0, ev.Old)
	require.EqualValues(t, 120, ev.New)

	ev = readEvent(t, conn)
	require.Equal(t, "status", ev.Cell)
	require.Equal(t, "on", ev.Old)
	require.Equal(t, "off", ev.New)
}

func TestWatchGlobFilter(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dialWatch(t, ts.URL, "/objects/motor/watch?cells=stat*")

	welcome := readEvent(t, conn)
	require.Equal(t, []string{"status"}, welcome.Cells)

	motor, _ := s.Object("motor")
	require.NoError(t, s.Do(func() { motor.Set("temperature", 50) }))
	require.NoError(t, s.Do(func() { motor.Set("temperature", 100) }))

	// Only the status change reaches the stream; 50 left it unchanged.
	ev := readEvent(t, conn)
	require.Equal(t, "status", ev.Cell)
	require.Equal(t, "off", ev.New)
}

func TestWatchRejected(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown object", "/objects/nope/watch", http.StatusNotFound},
		{"no match", "/objects/motor/watch?cells=speed", http.StatusNotFound},
		{"invalid pattern", "/objects/motor/watch?cells=%5B", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + tt.path
			_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestWatchUnobservesOnClose(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dialWatch(t, ts.URL, "/objects/motor/watch?cells=temperature")
	readEvent(t, conn)

	conn.Close()
	require.Eventually(t, func() bool {
		return s.WatcherCount() == 0
	}, 5*time.Second, 10*time.Millisecond)

	// With the watcher gone, writes no longer reach its observer.
	motor, _ := s.Object("motor")
	calls := 0
	h := motor.Observe(cell.Name("temperature"), nil, func(newValue, oldValue any, owner cell.Owner, id cell.CellID) {
		calls++
	})
	require.NoError(t, s.Do(func() { motor.Set("temperature", 7) }))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, motor.Unobserve(h))
}

func TestWatchSlowConsumerClosed(t *testing.T) {
	wt := &watcher{
		id:     "w",
		object: "counter",
		server: New(nil),
		events: make(chan Event, 1),
		done:   make(chan struct{}),
	}
	id := cell.CellID{Name: "n"}

	wt.observe(1, 0, nil, id)
	select {
	case <-wt.done:
		t.Fatal("watcher closed with room in its buffer")
	default:
	}

	wt.observe(2, 1, nil, id)
	select {
	case <-wt.done:
	default:
		t.Fatal("watcher not closed on overflow")
	}

	// Further changes are dropped without blocking the cascade.
	wt.observe(3, 2, nil, id)
	require.Len(t, wt.events, 1)
}

func TestShutdownClosesWatchers(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dialWatch(t, ts.URL, "/objects/motor/watch")
	readEvent(t, conn)

	require.NoError(t, s.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool {
		return s.WatcherCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}
