package sinks

import (
	"context"
	"strings"
	"sync"

	"github.com/lawrencejones/csvsink/pkg/destination"
	"github.com/lawrencejones/csvsink/pkg/options"
	"github.com/pkg/errors"
)

// String accumulates the output, passing it to the callback along with the number of
// records written once the pipeline is exhausted. The callback is always called, whatever
// the end option says, as there would otherwise be no way to receive the output.
func (o *Output) String(ctx context.Context, callback destination.Callback, patch *options.Options) error {
	if callback == nil {
		return o.fail(errors.Wrap(destination.ErrInvalidDestination, "callback is nil"))
	}

	opts, err := o.apply(patch)
	if err != nil {
		return err
	}

	opts, err = opts.WithoutEnd()
	if err != nil {
		return o.fail(err)
	}

	sink := &stringSink{callback: callback, count: o.pipeline.Count}

	return o.pipeline.Pipe(ctx, o.wrap(destination.KindCallback, sink), opts.Resolved())
}

// stringSink never fails and never pushes back: every write is accepted into memory
type stringSink struct {
	data     strings.Builder
	callback destination.Callback
	count    func() int
	once     sync.Once
	sync.Mutex
}

func (s *stringSink) Write(p []byte) (int, error) {
	s.Lock()
	defer s.Unlock()

	return s.data.Write(p)
}

func (s *stringSink) End() error {
	s.once.Do(func() {
		s.Lock()
		data := s.data.String()
		s.Unlock()

		s.callback(data, s.count())
	})

	return nil
}
