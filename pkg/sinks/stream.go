package sinks

import (
	"context"

	"github.com/davecgh/go-spew/spew"
	"github.com/lawrencejones/csvsink/internal/telem"
	"github.com/lawrencejones/csvsink/pkg/destination"
	"github.com/lawrencejones/csvsink/pkg/options"
	"github.com/lawrencejones/csvsink/pkg/pipeline"
	"github.com/pkg/errors"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Stream pipes the pipeline into the stream, ending it when the records run out unless
// the end option is false. Errors from the stream are reported to the pipeline, and the
// pipeline emits close with the final count once the stream has closed.
func (o *Output) Stream(ctx context.Context, stream destination.Stream, patch *options.Options) error {
	if stream == nil {
		return o.fail(errors.Wrap(destination.ErrInvalidDestination, "stream is nil"))
	}

	opts, err := o.apply(patch)
	if err != nil {
		return err
	}

	if err := o.pipeline.Claim(); err != nil {
		return err
	}

	o.start(ctx, destination.KindStream, stream, opts)

	return nil
}

// start pipes into a stream the pipeline has already been claimed for
func (o *Output) start(ctx context.Context, kind destination.Kind, stream destination.Stream, opts options.Options) {
	ctx, span, logger := telem.StartSpan(ctx, o.logger, "pkg/sinks.Output.start")
	defer span.End()

	logger = kitlog.With(logger, "destination", kind)
	resolved := opts.Resolved()
	level.Debug(logger).Log("event", "resolved_options", "options", spew.Sdump(resolved))

	o.pipeline.Start(ctx, o.wrap(kind, stream), resolved)

	go o.watch(ctx, logger, stream)
}

// watch forwards stream errors to the pipeline until the stream closes, at which point
// the pipeline emits close. Cancelling the context stops watching without a close.
func (o *Output) watch(ctx context.Context, logger kitlog.Logger, stream destination.Stream) {
	errs := stream.Errors()
	for {
		select {
		case <-ctx.Done():
			logger.Log("event", "watch.abort", "error", ctx.Err())
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			o.pipeline.Error(err)
		case <-stream.Closed():
			o.drain(errs)

			logger.Log("event", "close", "count", o.pipeline.Count())
			o.pipeline.Emit(pipeline.EventClose, o.pipeline.Count())

			return
		}
	}
}

// drain reports errors already waiting when the stream closed, which select may have
// passed over in favour of the close.
func (o *Output) drain(errs <-chan error) {
	for errs != nil {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}

			o.pipeline.Error(err)
		default:
			return
		}
	}
}
