// Destinations describe where the output of a pipeline should go. Callers may hand us
// any value, which Resolve classifies once at the boundary into a Destination. Past that
// point, everything works with the tagged variant rather than the original value.
package destination

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// ErrInvalidDestination is returned for any value that is not a path, callback or stream
var ErrInvalidDestination = errors.New("invalid destination")

// Callback receives the complete output once the pipeline has finished, along with the
// number of records written.
type Callback func(data string, count int)

// Stream is a writable destination that completes asynchronously. Ending the stream
// signals no further writes will be made, but the stream may still be flushing: it is
// only safe to consider the data durable once Closed has been closed.
type Stream interface {
	io.Writer
	End() error

	// Closed is closed once the stream has flushed everything and released its resources
	Closed() <-chan struct{}

	// Errors carries failures that happen outside of calls to Write and End. It may be
	// nil for streams that only fail synchronously.
	Errors() <-chan error
}

type Kind string

const (
	KindCallback Kind = "callback"
	KindPath     Kind = "path"
	KindStream   Kind = "stream"
)

// Destination is a closed union of the places we can write to. Only the field matching
// Kind is set.
type Destination struct {
	Kind     Kind
	Callback Callback
	Path     string
	Stream   Stream
}

// Resolve classifies an arbitrary value as a destination. Strings are file paths,
// functions are callbacks, and anything that can be written to is a stream. Writers that
// can also be closed are closed when the stream is ended, except for the process
// stdout and stderr.
func Resolve(value interface{}) (Destination, error) {
	if value == os.Stdout || value == os.Stderr {
		return Destination{Kind: KindStream, Stream: FromWriter(value.(io.Writer))}, nil
	}

	switch dest := value.(type) {
	case string:
		return Destination{Kind: KindPath, Path: dest}, nil
	case Callback:
		if dest != nil {
			return Destination{Kind: KindCallback, Callback: dest}, nil
		}
	case func(string, int):
		if dest != nil {
			return Destination{Kind: KindCallback, Callback: Callback(dest)}, nil
		}
	case Stream:
		return Destination{Kind: KindStream, Stream: dest}, nil
	case io.WriteCloser:
		return Destination{Kind: KindStream, Stream: FromWriteCloser(dest)}, nil
	case io.Writer:
		return Destination{Kind: KindStream, Stream: FromWriter(dest)}, nil
	}

	return Destination{}, errors.Wrapf(ErrInvalidDestination, "unsupported destination %T", value)
}
