package middleware

import (
	"context"
	"fmt"

	"github.com/vango-dev/cells/pkg/cell"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for cell runtimes.
const defaultTracerName = "cells"

// TracingConfig configures the OpenTelemetry extension.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "cells").
	TracerName string

	// TracerProvider supplies the tracer.
	// Default: the global provider from otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// IncludeReads records the cells each run read as a span attribute.
	// Disabled by default.
	IncludeReads bool

	// Filter determines which runs to trace.
	// Return true to trace the run, false to skip.
	// If nil, all runs are traced.
	Filter func(r *cell.Run) bool

	// AttributeExtractor extracts custom attributes from a run.
	AttributeExtractor func(r *cell.Run) []attribute.KeyValue
}

// TracingOption configures the OpenTelemetry extension.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeReads enables/disables recording read cells on spans.
func WithIncludeReads(include bool) TracingOption {
	return func(c *TracingConfig) {
		c.IncludeReads = include
	}
}

// WithRunFilter sets a filter function for runs.
func WithRunFilter(filter func(r *cell.Run) bool) TracingOption {
	return func(c *TracingConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(r *cell.Run) []attribute.KeyValue) TracingOption {
	return func(c *TracingConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName: defaultTracerName,
	}
}

// Tracing is an extension that starts a span for every computation run.
type Tracing struct {
	cell.BaseExtension

	config TracingConfig
	tracer trace.Tracer
}

// NewTracing creates the tracing extension.
//
// The span of a run is the parent of the spans of every run its write
// triggers. Use cell.WithContext to parent a cascade under a request span:
//
//	cell.WithContext(r.Context(), func() {
//	    obj.Set("speed", 10)
//	})
func NewTracing(opts ...TracingOption) *Tracing {
	config := defaultTracingConfig()
	for _, opt := range opts {
		opt(&config)
	}
	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Tracing{
		BaseExtension: cell.NewBaseExtension("tracing"),
		config:        config,
		tracer:        tp.Tracer(config.TracerName),
	}
}

// Order makes tracing the outermost wrapper.
func (t *Tracing) Order() int { return 10 }

// WrapRun implements cell.Extension.
func (t *Tracing) WrapRun(ctx context.Context, r *cell.Run, next func(ctx context.Context)) {
	if t.config.Filter != nil && !t.config.Filter(r) {
		next(ctx)
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("cell.target", r.Target),
		attribute.Bool("cell.initial", r.Initial),
		attribute.Int("cell.depth", r.Depth),
	}
	if r.Owner != nil {
		attrs = append(attrs,
			attribute.String("cell.owner", r.Owner.Label()),
			attribute.Int64("cell.owner_id", int64(r.Owner.ID())),
		)
	}
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(r)...)
	}

	spanCtx, span := t.tracer.Start(ctx, spanName(r),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			panic(p)
		}
	}()

	next(spanCtx)

	span.SetAttributes(attribute.Int("cell.reads", len(r.Reads)))
	if t.config.IncludeReads {
		reads := make([]string, len(r.Reads))
		for i, rd := range r.Reads {
			reads[i] = readName(rd)
		}
		span.SetAttributes(attribute.StringSlice("cell.read_cells", reads))
	}
	span.SetStatus(codes.Ok, "")
	span.End()
}

// spanName creates a span name from the run.
func spanName(r *cell.Run) string {
	verb := "recompute"
	if r.Initial {
		verb = "calculate"
	}
	return fmt.Sprintf("cell.%s %s", verb, r.Target)
}

func readName(rd cell.Read) string {
	if rd.Owner == nil {
		return rd.Cell
	}
	return rd.Owner.Label() + "." + rd.Cell
}
