package cmd

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
)

// detectLineBreak peeks at the start of the input for the first line break, which is
// used in the output whenever line breaks are left on auto.
func detectLineBreak(input *bufio.Reader) (string, error) {
	buf, err := input.Peek(input.Size())
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", err
	}

	for idx, b := range buf {
		switch b {
		case '\n':
			return "\n", nil
		case '\r':
			if idx+1 < len(buf) && buf[idx+1] == '\n' {
				return "\r\n", nil
			}

			return "\r", nil
		}
	}

	return "", nil
}

// sourceReader adapts input with bare carriage return line breaks, which encoding/csv
// doesn't recognise as the end of a record.
func sourceReader(input io.Reader, lineBreak string) io.Reader {
	if lineBreak != "\r" {
		return input
	}

	return &carriageReturnReader{input}
}

type carriageReturnReader struct {
	io.Reader
}

func (r *carriageReturnReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	for idx := range p[:n] {
		if p[idx] == '\r' {
			p[idx] = '\n'
		}
	}

	return n, err
}

// readHeader reads the column names from the first line, which are nil for empty input
func readHeader(reader *csv.Reader) ([]string, error) {
	row, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}

	return row, err
}

// readRecords sends every record from the reader into records, keyed by column if the
// input had a header.
func readRecords(ctx context.Context, reader *csv.Reader, columns []string, records chan<- interface{}) error {
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var record interface{} = row
		if columns != nil {
			values := map[string]string{}
			for idx, column := range columns {
				if idx < len(row) {
					values[column] = row[idx]
				}
			}

			record = values
		}

		select {
		case records <- record:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
