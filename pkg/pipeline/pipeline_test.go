package pipeline_test

import (
	"bytes"
	"context"
	"sync"

	"github.com/lawrencejones/csvsink/pkg/options"
	"github.com/lawrencejones/csvsink/pkg/pipeline"
	"github.com/lawrencejones/csvsink/pkg/stringify"
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// fakeWritable records everything written to it, and can be told to fail writes
type fakeWritable struct {
	buffer   bytes.Buffer
	ended    int
	writeErr error
	endErr   error
	sync.Mutex
}

func (f *fakeWritable) Write(p []byte) (int, error) {
	f.Lock()
	defer f.Unlock()

	if f.writeErr != nil {
		return 0, f.writeErr
	}

	return f.buffer.Write(p)
}

func (f *fakeWritable) End() error {
	f.Lock()
	defer f.Unlock()

	f.ended++
	return f.endErr
}

func (f *fakeWritable) String() string {
	f.Lock()
	defer f.Unlock()

	return f.buffer.String()
}

func (f *fakeWritable) Ended() int {
	f.Lock()
	defer f.Unlock()

	return f.ended
}

var _ = Describe("Pipeline", func() {
	var (
		ctx     context.Context
		cancel  func()
		records <-chan interface{}
		p       *pipeline.Pipeline
		dst     *fakeWritable
		opts    options.Options
		errs    chan error
		ends    chan int
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		records = pipeline.Records([]string{"1", "2", "3"}, []string{"4", "5", "6"})
		dst = &fakeWritable{}
		opts = options.Defaults().Resolved()
		errs = make(chan error, 10)
		ends = make(chan int, 10)
	})

	JustBeforeEach(func() {
		// Pipes from earlier specs may still be running, so each spec's handlers keep their
		// own channels
		errs, ends := errs, ends

		p = pipeline.Build(logger, records)
		p.OnError(func(err error) { errs <- err })
		p.On(pipeline.EventEnd, func(count int) { ends <- count })
	})

	AfterEach(func() {
		cancel()
	})

	Describe("SetOptions", func() {
		It("merges successive patches", func() {
			_, err := p.SetOptions(options.Options{Delimiter: ";"})
			Expect(err).NotTo(HaveOccurred())

			merged, err := p.SetOptions(options.Options{Flags: options.FlagsAppend})
			Expect(err).NotTo(HaveOccurred())

			Expect(merged.Delimiter).To(Equal(";"))
			Expect(merged.Flags).To(Equal(options.FlagsAppend))
			Expect(p.Options()).To(Equal(merged))
		})

		It("starts from the defaults", func() {
			Expect(p.Options().ShouldEnd()).To(BeTrue())
			Expect(*p.Options().LineBreaks).To(Equal(options.LineBreaksAuto))
		})
	})

	Describe("Pipe", func() {
		It("writes every record in order, then ends the destination", func() {
			Expect(p.Pipe(ctx, dst, opts)).To(Succeed())

			Eventually(ends).Should(Receive(Equal(2)))
			Eventually(dst.Ended).Should(Equal(1))
			Expect(dst.String()).To(Equal("1,2,3\n4,5,6\n"))
			Expect(p.Count()).To(Equal(2))
			Expect(errs).NotTo(Receive())
		})

		Context("when end is disabled", func() {
			BeforeEach(func() { opts.End = options.Bool(false) })

			It("leaves the destination open", func() {
				Expect(p.Pipe(ctx, dst, opts)).To(Succeed())

				Eventually(ends).Should(Receive(Equal(2)))
				Consistently(dst.Ended).Should(Equal(0))
			})
		})

		Context("with a source line break", func() {
			JustBeforeEach(func() {
				p = pipeline.Build(logger, records, pipeline.Build.WithSourceLineBreak("\r\n"))
			})

			It("uses it for automatic line breaks", func() {
				Expect(p.Pipe(ctx, dst, opts)).To(Succeed())

				Eventually(dst.Ended).Should(Equal(1))
				Expect(dst.String()).To(Equal("1,2,3\r\n4,5,6\r\n"))
			})
		})

		Context("when piped twice", func() {
			It("refuses the second destination", func() {
				Expect(p.Pipe(ctx, dst, opts)).To(Succeed())

				err := p.Pipe(ctx, &fakeWritable{}, opts)
				Expect(err).To(Equal(pipeline.ErrAlreadyPiped))
				Eventually(errs).Should(Receive(Equal(pipeline.ErrAlreadyPiped)))
			})
		})

		Context("when claimed", func() {
			It("refuses to pipe until released", func() {
				Expect(p.Claim()).To(Succeed())
				Expect(p.Pipe(ctx, dst, opts)).To(Equal(pipeline.ErrAlreadyPiped))
				Eventually(errs).Should(Receive(Equal(pipeline.ErrAlreadyPiped)))

				p.Release()
				Expect(p.Pipe(ctx, dst, opts)).To(Succeed())
				Eventually(dst.Ended).Should(Equal(1))
				Expect(dst.String()).To(Equal("1,2,3\n4,5,6\n"))
			})
		})

		Context("when the destination fails to write", func() {
			var writeErr = errors.New("disk full")

			BeforeEach(func() { dst.writeErr = writeErr })

			It("reports the identical error, skips the end event but still ends the destination", func() {
				Expect(p.Pipe(ctx, dst, opts)).To(Succeed())

				Eventually(errs).Should(Receive(BeIdenticalTo(writeErr)))
				Eventually(dst.Ended).Should(Equal(1))
				Expect(ends).NotTo(Receive())
				Expect(p.Count()).To(Equal(0))
			})
		})

		Context("when the destination fails to end", func() {
			var endErr = errors.New("failed to flush")

			BeforeEach(func() { dst.endErr = endErr })

			It("reports the identical error", func() {
				Expect(p.Pipe(ctx, dst, opts)).To(Succeed())

				Eventually(errs).Should(Receive(BeIdenticalTo(endErr)))
			})
		})

		Context("with a record that cannot be formatted", func() {
			BeforeEach(func() {
				records = pipeline.Records([]string{"1"}, 42, []string{"2"})
			})

			It("reports and skips it", func() {
				Expect(p.Pipe(ctx, dst, opts)).To(Succeed())

				var err error
				Eventually(errs).Should(Receive(&err))
				Expect(errors.Is(err, stringify.ErrUnsupportedRecord)).To(BeTrue())

				Eventually(ends).Should(Receive(Equal(2)))
				Expect(dst.String()).To(Equal("1\n2\n"))
			})
		})

		Context("with a header and no records", func() {
			BeforeEach(func() {
				records = pipeline.Records()
				opts.Header = options.Bool(true)
				opts.Columns = []string{"id", "name"}
			})

			It("writes the header alone", func() {
				Expect(p.Pipe(ctx, dst, opts)).To(Succeed())

				Eventually(ends).Should(Receive(Equal(0)))
				Expect(dst.String()).To(Equal("id,name\n"))
			})
		})

		Context("when the context is cancelled", func() {
			BeforeEach(func() {
				records = make(chan interface{}) // never produces
			})

			It("reports the cancellation and ends the destination", func() {
				Expect(p.Pipe(ctx, dst, opts)).To(Succeed())
				cancel()

				Eventually(errs).Should(Receive(MatchError(context.Canceled)))
				Eventually(dst.Ended).Should(Equal(1))
			})
		})
	})

	Describe("Error", func() {
		Context("with no handlers", func() {
			It("does not panic", func() {
				pipeline.Build(logger, nil).Error(errors.New("nobody listening"))
			})
		})
	})
})
