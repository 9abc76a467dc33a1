package sinks

import (
	"github.com/lawrencejones/csvsink/pkg/destination"
	"github.com/lawrencejones/csvsink/pkg/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	destinationWriteDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csvsink_destination_write_duration_seconds",
			Help:    "Distribution of time spent writing to destinations, by destination kind",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms -> 3.2s
		},
		[]string{"destination"},
	)
	destinationWriteBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvsink_destination_write_bytes_total",
			Help: "Total bytes written to destinations",
		},
		[]string{"destination"},
	)
	destinationWriteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvsink_destination_write_errors_total",
			Help: "Total failed writes to destinations",
		},
		[]string{"destination"},
	)
	destinationEndsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvsink_destination_ends_total",
			Help: "Total destinations ended, by whether ending failed",
		},
		[]string{"destination", "failed"},
	)
)

type instrumentedWritable struct {
	pipeline.Writable
	kind            string
	durationSeconds prometheus.Observer
	bytes, errors   prometheus.Counter
}

// NewInstrumentedWritable wraps a writable destination, capturing the duration, size and
// failures of every write in metrics.
func NewInstrumentedWritable(kind destination.Kind, w pipeline.Writable) pipeline.Writable {
	labels := prometheus.Labels{"destination": string(kind)}

	return &instrumentedWritable{
		Writable:        w,
		kind:            string(kind),
		durationSeconds: destinationWriteDurationSeconds.With(labels),
		bytes:           destinationWriteBytesTotal.With(labels),
		errors:          destinationWriteErrorsTotal.With(labels),
	}
}

func (i *instrumentedWritable) Write(p []byte) (n int, err error) {
	defer prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		i.durationSeconds.Observe(v)
		i.bytes.Add(float64(n))
		if err != nil {
			i.errors.Inc()
		}
	})).ObserveDuration()

	return i.Writable.Write(p)
}

func (i *instrumentedWritable) End() (err error) {
	defer func() {
		failed := "false"
		if err != nil {
			failed = "true"
		}

		destinationEndsTotal.WithLabelValues(i.kind, failed).Inc()
	}()

	return i.Writable.End()
}
