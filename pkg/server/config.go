package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the server configuration.
type Config struct {
	// Address is the address to listen on.
	// Default: ":8080".
	Address string

	// WatchBuffer is the number of events queued per watch connection
	// before the connection is considered too slow and closed.
	// Default: 64.
	WatchBuffer int

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout is the HTTP server's header read timeout.
	// Default: 5 seconds.
	ReadHeaderTimeout time.Duration

	// WriteWait is the deadline for writing one frame to a watcher.
	// Default: 10 seconds.
	WriteWait time.Duration

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	// Default: 1024.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the Origin header of watch requests.
	// Default: same origin only.
	CheckOrigin func(r *http.Request) bool

	// MetricsPath is where Gatherer is served. Metrics are not served when
	// Gatherer is nil.
	// Default: "/metrics".
	MetricsPath string

	// Gatherer provides the metrics served at MetricsPath.
	Gatherer prometheus.Gatherer

	// Logger receives request and watcher logs.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		WatchBuffer:       64,
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteWait:         10 * time.Second,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       sameOrigin,
		MetricsPath:       "/metrics",
	}
}

// withDefaults returns a copy of c with unset fields filled in.
func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		return defaults
	}
	out := *c
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.WatchBuffer <= 0 {
		out.WatchBuffer = defaults.WatchBuffer
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if out.WriteWait == 0 {
		out.WriteWait = defaults.WriteWait
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = defaults.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = defaults.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = defaults.CheckOrigin
	}
	if out.MetricsPath == "" {
		out.MetricsPath = defaults.MetricsPath
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}

// sameOrigin accepts requests without an Origin header and requests whose
// Origin host matches the request host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, scheme := range []string{"http://", "https://"} {
		if origin == scheme+r.Host {
			return true
		}
	}
	return false
}
