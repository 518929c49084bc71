package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/cells/pkg/cell"
)

// ErrDuplicateObject is returned by Register when the name is taken.
var ErrDuplicateObject = errors.New("server: object already registered")

// Server serves a registry of named cell objects.
type Server struct {
	config *Config
	logger *slog.Logger

	// mu serializes every access to registered objects.
	mu      sync.Mutex
	objects map[string]*cell.Object

	watchersMu sync.Mutex
	watchers   map[string]*watcher

	upgrader   websocket.Upgrader
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server. A nil config uses DefaultConfig.
func New(config *Config) *Server {
	config = config.withDefaults()

	s := &Server{
		config:   config,
		logger:   config.Logger.With("component", "server"),
		objects:  make(map[string]*cell.Object),
		watchers: make(map[string]*watcher),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	if s.config.Gatherer != nil {
		r.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/objects", func(r chi.Router) {
		r.Get("/", s.handleListObjects)
		r.Route("/{object}", func(r chi.Router) {
			r.Get("/", s.handleGetObject)
			r.Get("/cells/{cell}", s.handleGetCell)
			r.Put("/cells/{cell}", s.handlePutCell)
			r.Get("/watch", s.handleWatch)
		})
	})
	return r
}

// logRequests logs one line per request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Register adds obj to the registry under name.
func (s *Server) Register(name string, obj *cell.Object) error {
	if name == "" || obj == nil {
		return fmt.Errorf("server: register %q: name and object are required", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateObject, name)
	}
	s.objects[name] = obj
	s.logger.Debug("object registered", "name", name, "object", obj.String())
	return nil
}

// Object returns the object registered under name.
func (s *Server) Object(name string) (*cell.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[name]
	return obj, ok
}

// Names returns the registered names in sorted order.
func (s *Server) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.objects))
}

// Do runs fn while holding the server's cell lock. A panic raised by the
// cascade fn triggers is returned as an error.
func (s *Server) Do(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cell.Catch(fn)
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Config returns the effective configuration.
func (s *Server) Config() *Config {
	return s.config
}

// WatcherCount returns the number of open watch connections.
func (s *Server) WatcherCount() int {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	return len(s.watchers)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every watch connection and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.watchersMu.Lock()
	watchers := slices.Collect(maps.Values(s.watchers))
	s.watchersMu.Unlock()
	for _, w := range watchers {
		w.goingAway()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
