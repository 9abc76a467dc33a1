package cmd

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	stdlog "log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lawrencejones/csvsink/pkg/options"
	"github.com/lawrencejones/csvsink/pkg/pipeline"
	"github.com/lawrencejones/csvsink/pkg/sinks"

	"contrib.go.opencensus.io/exporter/jaeger"
	"github.com/alecthomas/kingpin"
	"github.com/getsentry/sentry-go"
	kitlog "github.com/go-kit/kit/log"
	level "github.com/go-kit/kit/log/level"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opencensus.io/trace"
)

var logger kitlog.Logger

var (
	app = kingpin.New("csvsink", "Write CSV records from stdin to a destination").Version(versionStanza())

	// Global flags
	debug               = app.Flag("debug", "Enable debug logging").Default("false").Bool()
	serveMetrics        = app.Flag("serve-metrics", "Serve metrics and pprof over HTTP while running").Default("false").Bool()
	metricsAddress      = app.Flag("metrics-address", "Address to bind HTTP metrics listener").Default("127.0.0.1").String()
	metricsPort         = app.Flag("metrics-port", "Port to bind HTTP metrics listener").Default("9525").Uint16()
	jaegerAgentEndpoint = app.Flag("jaeger-agent-endpoint", "Endpoint for Jaeger agent, tracing is disabled if empty").Default("").String()
	sentryDSN           = app.Flag("sentry-dsn", "Report errors to this Sentry project").Envar("SENTRY_DSN").Default("").String()
	instrument          = app.Flag("instrument", "Record metrics for every write to the destination").Default("true").Bool()

	// Input parsing
	inputDelimiter = app.Flag("input-delimiter", "Field delimiter of the CSV on stdin").Default(",").String()
	inputHeader    = app.Flag("input-header", "Treat the first line of stdin as column names").Default("false").Bool()

	destinationArg = app.Arg("destination", "File to write into").Default("/dev/stdout").String()
	outputOptions  = new(options.Options).Bind(app, "")
)

// SilentError should be returned when the command wants to skip all logging of the error
// it has encountered. It wraps no error content as we should never inspect it.
var SilentError = errors.New("silent error")

type UsageError struct {
	error
}

func Run() (err error) {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.AllowInfo())
	if *debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	}
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.DefaultCaller)
	stdlog.SetOutput(kitlog.NewStdlibAdapter(logger))

	// Setup an error handler to log and print usage
	defer func() {
		var usageErr UsageError
		switch {
		case err == nil:
			return
		case errors.Is(err, SilentError):
			return
		case errors.As(err, &usageErr):
			context, _ := app.ParseContext(os.Args[1:])
			app.UsageForContext(context)
			fmt.Fprintf(os.Stderr, "error: %s\n", usageErr.Error())

			err = usageErr.error
			return
		default:
			logger.Log("event", "error", "error", err, "msg", "exiting with error")
		}
	}()

	if err := outputOptions.Validate(); err != nil {
		return UsageError{err}
	}

	delimiter := []rune(*inputDelimiter)
	if len(delimiter) != 1 {
		return UsageError{errors.Errorf("input delimiter must be a single character, got %q", *inputDelimiter)}
	}

	// This is the root context for the application. Once terminated, everything we have
	// started should also finish.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stage our shutdown to first request termination, then cancel contexts if the output
	// hasn't finished by then.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	shutdown := make(chan struct{})

	go func() {
		<-sigc
		close(shutdown)
		select {
		case <-time.After(30 * time.Second):
		case <-sigc:
		}
		cancel()
	}()

	if *jaegerAgentEndpoint != "" {
		jexporter, err := jaeger.NewExporter(jaeger.Options{
			AgentEndpoint: *jaegerAgentEndpoint,
			Process: jaeger.Process{
				ServiceName: "csvsink",
			},
		})

		if err != nil {
			return UsageError{err}
		}

		defer jexporter.Flush()

		trace.RegisterExporter(jexporter)
		trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})
	}

	if *sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: *sentryDSN, Release: Version}); err != nil {
			return UsageError{errors.Wrap(err, "invalid sentry configuration")}
		}

		defer sentry.Flush(5 * time.Second)
	}

	input := bufio.NewReader(os.Stdin)
	lineBreak, err := detectLineBreak(input)
	if err != nil {
		return errors.Wrap(err, "failed to read stdin")
	}

	level.Debug(logger).Log("event", "detected_line_break", "line_break", fmt.Sprintf("%q", lineBreak))

	reader := csv.NewReader(sourceReader(input, lineBreak))
	reader.Comma = delimiter[0]
	reader.FieldsPerRecord = -1

	var columns []string
	if *inputHeader {
		columns, err = readHeader(reader)
		if err != nil {
			return errors.Wrap(err, "failed to read input header")
		}

		// Keep the input's column order unless told otherwise
		if len(outputOptions.Columns) == 0 {
			outputOptions.Columns = columns
		}
	}

	records := make(chan interface{})
	p := pipeline.Build(logger, records, pipeline.Build.WithSourceLineBreak(lineBreak))

	var errorCount int64
	closed := make(chan int, 1)

	p.OnError(func(err error) {
		atomic.AddInt64(&errorCount, 1)
		logger.Log("event", "output_error", "error", err)
		sentry.CaptureException(err)
	})
	p.On(pipeline.EventEnd, func(count int) {
		level.Debug(logger).Log("event", "end", "count", count)
	})
	p.On(pipeline.EventClose, func(count int) {
		closed <- count
	})

	// The reader is not an actor: reaching the end of stdin must not interrupt the output,
	// which finishes on its own once the records channel is closed.
	go func() {
		defer close(records)
		if err := readRecords(ctx, reader, columns, records); err != nil {
			p.Error(errors.Wrap(err, "failed to read input"))
		}
	}()

	output := sinks.OutputBuilder(p, sinks.OutputBuilder.WithInstrumentation(*instrument))
	if err := output.To(ctx, *destinationArg, outputOptions); err != nil {
		return err
	}

	var g run.Group

	{
		logger := kitlog.With(logger, "component", "shutdown_handler")

		ctx, cancel := context.WithCancel(ctx)

		// If we're asked to shutdown, we use the rungroup to trigger interrupts for every
		// component
		g.Add(
			func() error {
				select {
				case <-shutdown:
					logger.Log("event", "requesting_shutdown", "msg", "received signal, requesting shutdown")
				case <-ctx.Done():
				}

				return nil
			},
			func(error) {
				cancel() // end the shutdown select
			},
		)
	}

	if *serveMetrics {
		logger := kitlog.With(logger, "component", "metrics")

		// Metrics and debug endpoints
		mux := http.NewServeMux()

		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		srv := &http.Server{Addr: fmt.Sprintf("%s:%d", *metricsAddress, *metricsPort), Handler: mux}

		g.Add(
			func() error {
				logger.Log("event", "listen", "address", *metricsAddress, "port", *metricsPort)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}

				return nil
			},
			func(error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			},
		)
	}

	{
		logger := kitlog.With(logger, "component", "output")

		ctx, cancel := context.WithCancel(ctx)

		g.Add(
			func() error {
				select {
				case count := <-closed:
					logger.Log("event", "close", "count", count, "destination", *destinationArg)
				case <-ctx.Done():
					return ctx.Err()
				}

				if failed := atomic.LoadInt64(&errorCount); failed > 0 {
					return errors.Errorf("encountered %d errors writing output", failed)
				}

				return nil
			},
			func(error) {
				cancel()
			},
		)
	}

	return g.Run()
}
