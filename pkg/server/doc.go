// Package server exposes cell objects over HTTP.
//
// A Server holds a registry of named objects. Clients read and write cells
// through a small JSON API and stream changes over a WebSocket:
//
//	GET  /healthz
//	GET  /objects
//	GET  /objects/{object}
//	GET  /objects/{object}/cells/{cell}
//	PUT  /objects/{object}/cells/{cell}      {"value": ...}
//	GET  /objects/{object}/watch?cells=<glob>
//
// # Concurrency
//
// Cells are not safe for concurrent writers, so every access the server
// makes goes through one mutex. Code outside the server that touches
// registered objects while it runs must use Do:
//
//	srv.Do(func() {
//	    motor.Set("temperature", 25)
//	})
//
// # Watch streams
//
// Each watch connection gets an identifier and owns one cell.Observer
// registered on the cells whose names match the glob in the cells query
// parameter (all cells when absent). The first frame is a "welcome" event
// naming the watcher and its cells; every change after that is sent as a
// "change" event. A connection that cannot keep up with its buffer is
// closed. The observer is unregistered when the connection ends.
package server
