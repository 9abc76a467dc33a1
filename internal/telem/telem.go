package telem

import (
	"context"

	kitlog "github.com/go-kit/kit/log"
	"go.opencensus.io/trace"
)

// Logger can be used to tie logs to an on-going span. It is intended to wrap a
// trace.StartSpan call, like so:
//
//	telem.Logger(ctx, logger)(trace.StartSpan(ctx, "pkg/pipeline.Pipeline.pipe"))
//
// The logs will be decorated with a trace_id. Root context is provided to avoid doubly
// annotating the trace ID onto the same logger.
func Logger(rootCtx context.Context, logger kitlog.Logger) func(context.Context, *trace.Span) (context.Context, *trace.Span, kitlog.Logger) {
	return func(ctx context.Context, span *trace.Span) (context.Context, *trace.Span, kitlog.Logger) {
		if trace.FromContext(rootCtx) != nil {
			return ctx, span, logger
		}

		if span == nil {
			return ctx, span, logger
		}

		return ctx, span, kitlog.With(logger, "trace_id", span.SpanContext().TraceID)
	}
}

// StartSpan is shorthand for the common case of Logger wrapping trace.StartSpan
func StartSpan(ctx context.Context, logger kitlog.Logger, name string) (context.Context, *trace.Span, kitlog.Logger) {
	return Logger(ctx, logger)(trace.StartSpan(ctx, name))
}
