// Pipeline owns a stream of records on their way to a single destination. It keeps the
// output options, counts the records written and offers the error and event surface
// that sinks report through.
//
// Two events describe completion, and they promise different things:
//
//	end:   the producer has written every record to the destination
//	close: the destination has flushed everything and released its resources
//
// Destinations often buffer, so data is only durable once close has fired. Anyone
// waiting on the output to exist should listen for close, not end.
package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/lawrencejones/csvsink/pkg/options"

	kitlog "github.com/go-kit/kit/log"
)

type Event string

const (
	EventEnd   Event = "end"
	EventClose Event = "close"
)

// Listener is called with the number of records written when an event fires
type Listener func(count int)

// ErrorHandler receives every error reported by the pipeline, unmodified
type ErrorHandler func(error)

type Pipeline struct {
	id              string
	logger          kitlog.Logger
	records         <-chan interface{}
	sourceLineBreak string
	count           int64

	options       options.Options
	listeners     map[Event][]Listener
	errorHandlers []ErrorHandler
	piped         bool
	sync.RWMutex
}

// Build creates a pipeline that will produce the given records, which should be either
// []string or map[string]string. The records channel must be closed once exhausted.
var Build = builderFunc(func(logger kitlog.Logger, records <-chan interface{}, opts ...func(*Pipeline)) *Pipeline {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	if records == nil {
		records = Records()
	}

	p := &Pipeline{
		id:        uuid.New().String(),
		records:   records,
		options:   options.Defaults(),
		listeners: map[Event][]Listener{},
	}

	p.logger = kitlog.With(logger, "pipeline_id", p.id)
	for _, opt := range opts {
		opt(p)
	}

	return p
})

type builderFunc func(kitlog.Logger, <-chan interface{}, ...func(*Pipeline)) *Pipeline

// WithOptions replaces the default options
func (b builderFunc) WithOptions(opts options.Options) func(*Pipeline) {
	return func(p *Pipeline) {
		p.options = opts
	}
}

// WithSourceLineBreak provides the line break detected in the source, used whenever line
// breaks are left to the producer.
func (b builderFunc) WithSourceLineBreak(lineBreak string) func(*Pipeline) {
	return func(p *Pipeline) {
		p.sourceLineBreak = lineBreak
	}
}

// Records returns a closed channel of the given records, for when the input is known
// upfront.
func Records(records ...interface{}) <-chan interface{} {
	ch := make(chan interface{}, len(records))
	for _, record := range records {
		ch <- record
	}

	close(ch)

	return ch
}

func (p *Pipeline) ID() string {
	return p.id
}

func (p *Pipeline) Logger() kitlog.Logger {
	return p.logger
}

// Count is the number of records written to the destination so far
func (p *Pipeline) Count() int {
	return int(atomic.LoadInt64(&p.count))
}

// Options returns the current output options. The value should be treated as read-only:
// use SetOptions to change it.
func (p *Pipeline) Options() options.Options {
	p.RLock()
	defer p.RUnlock()

	return p.options
}

// SetOptions shallow-merges the patch into the stored options, returning the result
func (p *Pipeline) SetOptions(patch options.Options) (options.Options, error) {
	p.Lock()
	defer p.Unlock()

	merged, err := options.Merge(p.options, patch)
	if err != nil {
		return p.options, err
	}

	p.options = merged

	return merged, nil
}

func (p *Pipeline) On(event Event, listener Listener) {
	p.Lock()
	defer p.Unlock()

	p.listeners[event] = append(p.listeners[event], listener)
}

func (p *Pipeline) OnError(handler ErrorHandler) {
	p.Lock()
	defer p.Unlock()

	p.errorHandlers = append(p.errorHandlers, handler)
}

// Emit calls every listener of the event, in the order they were added
func (p *Pipeline) Emit(event Event, count int) {
	p.RLock()
	listeners := append([]Listener(nil), p.listeners[event]...)
	p.RUnlock()

	for _, listener := range listeners {
		listener(count)
	}
}

// Error reports an error to every handler. Errors nobody is listening for are logged, so
// they are never silently dropped.
func (p *Pipeline) Error(err error) {
	p.RLock()
	handlers := append([]ErrorHandler(nil), p.errorHandlers...)
	p.RUnlock()

	if len(handlers) == 0 {
		p.logger.Log("event", "unhandled_error", "error", err)
		return
	}

	for _, handler := range handlers {
		handler(err)
	}
}
