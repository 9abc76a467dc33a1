package pipeline

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/lawrencejones/csvsink/internal/telem"
	"github.com/lawrencejones/csvsink/pkg/options"
	"github.com/lawrencejones/csvsink/pkg/stringify"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// ErrAlreadyPiped is returned when piping a pipeline whose records are already being
// consumed. Records can only be written to one destination.
var ErrAlreadyPiped = errors.New("pipeline is already piped to a destination")

// Writable is anything records can be piped into. End is called once the records are
// exhausted, unless the options passed to Pipe disable it.
type Writable interface {
	io.Writer
	End() error
}

// Pipe starts writing formatted records into the destination, returning immediately.
// Records are written in the order they were produced, and the end event fires once they
// are exhausted. The options should already have their line breaks resolved.
//
// Failures are reported through the pipeline error handlers. A failed write stops the
// pipe, but the destination is still ended (if allowed) so its resources are released.
func (p *Pipeline) Pipe(ctx context.Context, dst Writable, opts options.Options) error {
	if err := p.Claim(); err != nil {
		return err
	}

	p.Start(ctx, dst, opts)

	return nil
}

// Claim reserves the records for a single destination, failing with ErrAlreadyPiped if
// they are already taken. Destinations that have side effects when opened, like
// truncating a file, should claim the pipeline before opening them, then Start or
// Release it.
func (p *Pipeline) Claim() error {
	p.Lock()
	if p.piped {
		p.Unlock()
		p.Error(ErrAlreadyPiped)
		return ErrAlreadyPiped
	}

	p.piped = true
	p.Unlock()

	return nil
}

// Release gives up a claim that was never started, allowing another destination to take
// the records.
func (p *Pipeline) Release() {
	p.Lock()
	defer p.Unlock()

	p.piped = false
}

// Start pipes records into the destination in the background. It must follow a
// successful Claim.
func (p *Pipeline) Start(ctx context.Context, dst Writable, opts options.Options) {
	go p.pipe(ctx, dst, opts)
}

func (p *Pipeline) pipe(ctx context.Context, dst Writable, opts options.Options) {
	ctx, span, logger := telem.StartSpan(ctx, p.logger, "pkg/pipeline.Pipeline.pipe")
	defer span.End()

	if err := p.produce(ctx, dst, stringify.New(opts, p.sourceLineBreak)); err != nil {
		logger.Log("event", "pipe.abort", "count", p.Count(), "error", err)
		p.Error(err)
	} else {
		span.AddAttributes(trace.Int64Attribute("count", int64(p.Count())))
		logger.Log("event", "pipe.end", "count", p.Count())
		p.Emit(EventEnd, p.Count())
	}

	if !opts.ShouldEnd() {
		logger.Log("event", "pipe.skip_end", "msg", "leaving destination open")
		return
	}

	if err := dst.End(); err != nil {
		p.Error(err)
	}
}

// produce consumes records until they run out, or the destination fails. Records that
// cannot be formatted are reported and skipped.
func (p *Pipeline) produce(ctx context.Context, dst Writable, stringifier *stringify.Stringifier) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record, ok := <-p.records:
			if !ok {
				if header := stringifier.Header(); len(header) > 0 {
					if _, err := dst.Write(header); err != nil {
						return err
					}
				}

				return nil
			}

			chunk, err := stringifier.Format(record)
			if err != nil {
				p.Error(err)
				continue
			}

			if _, err := dst.Write(chunk); err != nil {
				return err
			}

			atomic.AddInt64(&p.count, 1)
		}
	}
}
