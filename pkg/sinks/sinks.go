// Sinks deliver the output of a pipeline to a destination: a callback receiving the
// whole output as a string, a stream, or a file path. Each sink adapts its destination
// into something the pipeline can pipe records into, sharing the line break resolution
// and event forwarding of the stream sink.
package sinks

import (
	"context"

	"github.com/lawrencejones/csvsink/pkg/destination"
	"github.com/lawrencejones/csvsink/pkg/options"
	"github.com/lawrencejones/csvsink/pkg/pipeline"
	"github.com/pkg/errors"

	kitlog "github.com/go-kit/kit/log"
)

// Output is the destination surface of a single pipeline. Errors from misuse are both
// returned and reported to the pipeline error handlers, while failures that happen later
// on (writes, flushes, closing files) are only reported to the handlers.
type Output struct {
	logger     kitlog.Logger
	pipeline   *pipeline.Pipeline
	instrument bool
}

// OutputBuilder constructs an Output for the given pipeline
var OutputBuilder = outputBuilderFunc(func(p *pipeline.Pipeline, opts ...func(*Output)) *Output {
	o := &Output{
		logger:   kitlog.With(p.Logger(), "component", "output"),
		pipeline: p,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
})

type outputBuilderFunc func(*pipeline.Pipeline, ...func(*Output)) *Output

// WithInstrumentation records metrics for every write to the destination
func (b outputBuilderFunc) WithInstrumentation(instrument bool) func(*Output) {
	return func(o *Output) {
		o.instrument = instrument
	}
}

// To writes to whatever the value turns out to be: a path for strings, a callback for
// functions, and a stream for anything that can be written to. Any other value is
// rejected with destination.ErrInvalidDestination, and nothing is written.
func (o *Output) To(ctx context.Context, value interface{}, patch *options.Options) error {
	dest, err := destination.Resolve(value)
	if err != nil {
		return o.fail(err)
	}

	switch dest.Kind {
	case destination.KindCallback:
		return o.String(ctx, dest.Callback, patch)
	case destination.KindPath:
		return o.Path(ctx, dest.Path, patch)
	case destination.KindStream:
		return o.Stream(ctx, dest.Stream, patch)
	}

	return o.fail(errors.Wrapf(destination.ErrInvalidDestination, "unrecognised kind %q", dest.Kind))
}

// Options merges the patch into the pipeline options, returning the result. A nil patch
// returns the current options unchanged.
func (o *Output) Options(patch *options.Options) (options.Options, error) {
	if patch == nil {
		return o.pipeline.Options(), nil
	}

	return o.pipeline.SetOptions(*patch)
}

func (o *Output) apply(patch *options.Options) (options.Options, error) {
	opts, err := o.Options(patch)
	if err != nil {
		return opts, o.fail(err)
	}

	if err := opts.Validate(); err != nil {
		return opts, o.fail(err)
	}

	return opts, nil
}

func (o *Output) wrap(kind destination.Kind, w pipeline.Writable) pipeline.Writable {
	if o.instrument {
		return NewInstrumentedWritable(kind, w)
	}

	return w
}

func (o *Output) fail(err error) error {
	o.pipeline.Error(err)
	return err
}
