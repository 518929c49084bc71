package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/vango-dev/cells/internal/config"
	"github.com/vango-dev/cells/internal/demo"
	"github.com/vango-dev/cells/internal/errors"
	"github.com/vango-dev/cells/pkg/cell"
	"github.com/vango-dev/cells/pkg/middleware"
	"github.com/vango-dev/cells/pkg/server"
)

type serveOptions struct {
	address     string
	watchBuffer int
	maxDepth    int
	logLevel    string
	noMetrics   bool
	tracing     bool
}

func serveCmd(dir *string) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo objects over HTTP",
		Long: `Start an HTTP server exposing the demo objects (motor, tire,
model and view) for reading, writing and watching.

Settings come from cells.json; flags override them. Changes to the log
level in cells.json are applied without a restart.

Examples:
  cells serve
  cells serve --addr=127.0.0.1:9000
  curl -X PUT -d '{"value": 120}' localhost:8080/objects/motor/cells/temperature`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *dir, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.address, "addr", "a", "", "Address to listen on (default from cells.json)")
	cmd.Flags().IntVar(&opts.watchBuffer, "watch-buffer", 0, "Events queued per watch connection")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", -1, "Maximum cascade depth, 0 for unlimited")
	cmd.Flags().StringVarP(&opts.logLevel, "log-level", "l", "", "Log level: debug, info, warn or error")
	cmd.Flags().BoolVar(&opts.noMetrics, "no-metrics", false, "Disable the metrics endpoint")
	cmd.Flags().BoolVar(&opts.tracing, "tracing", false, "Emit a span per computation run")

	return cmd
}

// apply overrides cfg with the flags that were set.
func (o serveOptions) apply(cfg *config.Config) {
	if o.address != "" {
		cfg.Server.Address = o.address
	}
	if o.watchBuffer > 0 {
		cfg.Server.WatchBuffer = o.watchBuffer
	}
	if o.maxDepth >= 0 {
		cfg.Runtime.MaxDepth = o.maxDepth
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.noMetrics {
		cfg.Metrics.Enabled = false
	}
	if o.tracing {
		cfg.Tracing.Enabled = true
	}
}

// newLogHandler builds the handler described by cfg.Log around level.
func newLogHandler(w io.Writer, format string, level *slog.LevelVar) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// newRuntime builds the cell runtime with the extensions enabled in cfg.
// The returned registry is nil when metrics are disabled.
func newRuntime(cfg *config.Config, logger *slog.Logger, handler slog.Handler) (*cell.Runtime, *prometheus.Registry) {
	exts := []cell.Extension{middleware.NewGraphDebug(handler)}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		exts = append(exts, middleware.NewMetrics(
			middleware.WithNamespace(cfg.Metrics.Namespace),
			middleware.WithRegistry(registry),
		))
	}
	if cfg.Tracing.Enabled {
		exts = append(exts, middleware.NewTracing(
			middleware.WithTracerName(cfg.Tracing.TracerName),
		))
	}

	opts := []cell.Option{
		cell.WithLogger(logger),
		cell.WithExtensions(exts...),
	}
	if cfg.Runtime.MaxDepth > 0 {
		opts = append(opts, cell.WithMaxDepth(cfg.Runtime.MaxDepth))
	}
	return cell.NewRuntime(opts...), registry
}

// demoObjects are the objects registered by serve.
type demoObjects struct {
	motor *demo.Motor
	tire  *demo.Tire
	model *demo.Model
	view  *demo.View
}

func registerDemoObjects(srv *server.Server, rt *cell.Runtime) (*demoObjects, error) {
	objs := &demoObjects{motor: demo.NewMotor(rt, 20)}
	objs.tire = demo.NewTire(rt, objs.motor)
	objs.model = demo.NewModel(rt)
	objs.view = demo.NewView(rt, objs.model)

	for name, obj := range map[string]*cell.Object{
		"motor": objs.motor.Object,
		"tire":  objs.tire.Object,
		"model": objs.model.Object,
		"view":  objs.view.Object,
	} {
		if err := srv.Register(name, obj); err != nil {
			return nil, err
		}
	}
	return objs, nil
}

func runServe(cmd *cobra.Command, dir string, opts serveOptions) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := new(slog.LevelVar)
	level.Set(cfg.SlogLevel())
	handler := newLogHandler(cmd.ErrOrStderr(), cfg.Log.Format, level)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	rt, registry := newRuntime(cfg, logger, handler)

	srvConfig := &server.Config{
		Address:         cfg.Server.Address,
		WatchBuffer:     cfg.Server.WatchBuffer,
		ShutdownTimeout: cfg.ShutdownDuration(),
		MetricsPath:     cfg.Metrics.Path,
		Logger:          logger,
	}
	if registry != nil {
		srvConfig.Gatherer = registry
	}
	srv := server.New(srvConfig)

	objs, err := registerDemoObjects(srv, rt)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Exists(dir) {
		err := config.Watch(ctx, cfg.Path(), func(next *config.Config, err error) {
			if err != nil {
				logger.Warn("config reload failed", "error", err)
				return
			}
			if opts.logLevel == "" && next.SlogLevel() != level.Level() {
				level.Set(next.SlogLevel())
				logger.Info("log level changed", "level", next.SlogLevel())
			}
		})
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		}
	}

	out := cmd.OutOrStdout()
	printBanner(out)
	success(out, "Serving %d objects on %s", len(srv.Names()), cfg.Server.Address)
	for _, name := range srv.Names() {
		info(out, "/objects/%s", name)
	}
	if registry != nil {
		info(out, "metrics at %s", cfg.Metrics.Path)
	}

	err = srv.Run(ctx)
	runtime.KeepAlive(objs)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.New("C304").Wrap(err)
	default:
		return errors.New("C301").WithDetail("Could not listen on " + cfg.Server.Address).Wrap(err)
	}
}
