package destination

import (
	"io"
	"sync"
)

var _ Stream = &writerStream{}

// FromWriter adapts a plain writer into a Stream. Ending the stream never closes the
// writer, which makes it suitable for process-wide writers like os.Stdout.
func FromWriter(w io.Writer) Stream {
	return &writerStream{Writer: w, closed: make(chan struct{})}
}

// FromWriteCloser adapts a writer that owns a resource, closing it when the stream is
// ended.
func FromWriteCloser(w io.WriteCloser) Stream {
	return &writerStream{Writer: w, closer: w, closed: make(chan struct{})}
}

type writerStream struct {
	io.Writer
	closer io.Closer
	closed chan struct{}
	once   sync.Once
}

func (s *writerStream) End() (err error) {
	s.once.Do(func() {
		defer close(s.closed)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})

	return err
}

func (s *writerStream) Closed() <-chan struct{} {
	return s.closed
}

// Errors is nil, as writers report every failure from Write or End
func (s *writerStream) Errors() <-chan error {
	return nil
}
