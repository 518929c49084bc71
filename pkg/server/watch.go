package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/vango-dev/cells/pkg/cell"
)

// Event types sent on watch streams.
const (
	EventWelcome = "welcome"
	EventChange  = "change"
)

// Event is one frame of a watch stream.
type Event struct {
	Type    string    `json:"type"`
	Watcher string    `json:"watcher"`
	Object  string    `json:"object"`
	Cell    string    `json:"cell,omitempty"`
	Cells   []string  `json:"cells,omitempty"`
	Old     any       `json:"old,omitempty"`
	New     any       `json:"new,omitempty"`
	Time    time.Time `json:"time"`
}

// watcher is one watch connection.
type watcher struct {
	id     string
	object string
	obj    *cell.Object
	conn   *websocket.Conn
	server *Server

	// handle is the observer registered on obj. The watcher keeps it
	// reachable until the connection ends.
	handle *cell.Observer

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// matchCells returns the cells of obj whose names match pattern.
func matchCells(obj *cell.Object, pattern string) []string {
	var out []string
	for _, name := range obj.Cells() {
		if ok, _ := doublestar.Match(pattern, name); ok {
			out = append(out, name)
		}
	}
	return out
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "object")
	pattern := r.URL.Query().Get("cells")
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		s.writeError(w, r, BadRequestf("invalid cells pattern %q", pattern))
		return
	}

	obj, ok := s.Object(name)
	if !ok {
		s.writeError(w, r, NotFound(fmt.Sprintf("object %q not found", name)))
		return
	}

	s.mu.Lock()
	cells := matchCells(obj, pattern)
	s.mu.Unlock()
	if len(cells) == 0 {
		s.writeError(w, r, NotFound(fmt.Sprintf("no cell of %q matches %q", name, pattern)))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("watch upgrade failed", "object", name, "error", err)
		return
	}

	wt := &watcher{
		id:     ulid.Make().String(),
		object: name,
		obj:    obj,
		conn:   conn,
		server: s,
		events: make(chan Event, s.config.WatchBuffer),
		done:   make(chan struct{}),
	}
	wt.events <- Event{
		Type:    EventWelcome,
		Watcher: wt.id,
		Object:  name,
		Cells:   cells,
		Time:    time.Now(),
	}
	wt.handle = cell.NewObserver(wt.observe)

	s.watchersMu.Lock()
	s.watchers[wt.id] = wt
	s.watchersMu.Unlock()

	s.mu.Lock()
	obj.Watch(wt.handle, cell.Names(cells...), nil)
	s.mu.Unlock()

	s.logger.Info("watcher connected",
		"watcher", wt.id,
		"object", name,
		"cells", cells,
	)

	go wt.writeLoop()
	wt.readLoop()
}

// observe runs inside the cascade of a write, with the server lock held.
// It never blocks: a full buffer closes the connection.
func (wt *watcher) observe(newValue, oldValue any, owner cell.Owner, id cell.CellID) {
	ev := Event{
		Type:    EventChange,
		Watcher: wt.id,
		Object:  wt.object,
		Cell:    id.String(),
		Old:     oldValue,
		New:     newValue,
		Time:    time.Now(),
	}
	select {
	case <-wt.done:
	case wt.events <- ev:
	default:
		wt.server.logger.Warn("watcher too slow, closing",
			"watcher", wt.id,
			"object", wt.object,
			"buffer", cap(wt.events),
		)
		wt.close()
	}
}

// readLoop discards client frames until the connection fails, then
// unregisters the watcher.
func (wt *watcher) readLoop() {
	defer wt.finish()
	for {
		if _, _, err := wt.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (wt *watcher) writeLoop() {
	for {
		select {
		case <-wt.done:
			return
		case ev := <-wt.events:
			wt.conn.SetWriteDeadline(time.Now().Add(wt.server.config.WriteWait))
			if err := wt.conn.WriteJSON(ev); err != nil {
				wt.server.logger.Debug("watcher write failed", "watcher", wt.id, "error", err)
				wt.close()
				return
			}
		}
	}
}

// close stops the write loop and closes the connection, which ends the
// read loop.
func (wt *watcher) close() {
	wt.closeOnce.Do(func() {
		close(wt.done)
		if wt.conn != nil {
			wt.conn.Close()
		}
	})
}

// goingAway sends a close frame before closing.
func (wt *watcher) goingAway() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
	_ = wt.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	wt.close()
}

// finish unregisters the observer and forgets the watcher.
func (wt *watcher) finish() {
	wt.close()

	s := wt.server
	s.mu.Lock()
	removed := wt.obj.Unobserve(wt.handle)
	s.mu.Unlock()

	s.watchersMu.Lock()
	delete(s.watchers, wt.id)
	s.watchersMu.Unlock()

	s.logger.Info("watcher disconnected",
		"watcher", wt.id,
		"object", wt.object,
		"registrations", removed,
	)
}
