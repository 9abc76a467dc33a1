package sinks_test

import (
	"bytes"
	"sync"

	"github.com/lawrencejones/csvsink/pkg/destination"
	"github.com/prometheus/client_golang/prometheus"
)

var _ destination.Stream = &fakeStream{}

// fakeStream is a destination that only closes when told to, simulating a stream that is
// still flushing after it has been ended.
type fakeStream struct {
	buffer bytes.Buffer
	ended  chan struct{}
	closed chan struct{}
	errs   chan error
	end    sync.Once
	finish sync.Once
	sync.Mutex
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		ended:  make(chan struct{}),
		closed: make(chan struct{}),
		errs:   make(chan error),
	}
}

func (f *fakeStream) Write(p []byte) (int, error) {
	f.Lock()
	defer f.Unlock()

	return f.buffer.Write(p)
}

func (f *fakeStream) End() error {
	f.end.Do(func() { close(f.ended) })
	return nil
}

func (f *fakeStream) Closed() <-chan struct{} { return f.closed }
func (f *fakeStream) Errors() <-chan error    { return f.errs }

// Finish completes the flush, closing the stream
func (f *fakeStream) Finish() {
	f.finish.Do(func() { close(f.closed) })
}

func (f *fakeStream) String() string {
	f.Lock()
	defer f.Unlock()

	return f.buffer.String()
}

// counterValue finds the value of a counter in the default registry, matching every
// given label.
func counterValue(name string, labels map[string]string) float64 {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return -1
	}

	for _, family := range families {
		if family.GetName() != name {
			continue
		}

	metrics:
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if expected, ok := labels[label.GetName()]; ok && expected != label.GetValue() {
					continue metrics
				}
			}

			return metric.GetCounter().GetValue()
		}
	}

	return 0
}
