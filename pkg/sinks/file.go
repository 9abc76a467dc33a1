package sinks

import (
	"bufio"
	"context"
	"os"

	"github.com/lawrencejones/csvsink/pkg/destination"
	"github.com/lawrencejones/csvsink/pkg/options"
)

// Path writes to a file, created or appended to according to the flags option. The file
// is always closed once the records run out, as the end option only applies to streams
// the caller owns. Listen for the close event to know the file is fully written: end
// fires before buffered data has been flushed.
func (o *Output) Path(ctx context.Context, path string, patch *options.Options) error {
	opts, err := o.apply(patch)
	if err != nil {
		return err
	}

	opts, err = opts.WithoutEnd()
	if err != nil {
		return o.fail(err)
	}

	// Opening may truncate the file, so only do it once the records are ours
	if err := o.pipeline.Claim(); err != nil {
		return err
	}

	stream, err := openFile(path, opts)
	if err != nil {
		o.pipeline.Release()
		return o.fail(err)
	}

	o.start(ctx, destination.KindPath, stream, opts)

	return nil
}

func openFile(path string, opts options.Options) (destination.Stream, error) {
	switch path {
	case "/dev/stdout":
		return destination.FromWriter(os.Stdout), nil
	case "/dev/stderr":
		return destination.FromWriter(os.Stderr), nil
	}

	flags, err := opts.OpenFlags()
	if err != nil {
		return nil, err
	}

	mode := opts.Mode
	if mode == 0 {
		mode = 0644
	}

	file, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return nil, err
	}

	return destination.FromWriteCloser(&bufferedFile{Writer: bufio.NewWriter(file), file: file}), nil
}

// bufferedFile batches writes, flushing them when closed
type bufferedFile struct {
	*bufio.Writer
	file *os.File
}

func (f *bufferedFile) Close() error {
	if err := f.Flush(); err != nil {
		f.file.Close()
		return err
	}

	return f.file.Close()
}
