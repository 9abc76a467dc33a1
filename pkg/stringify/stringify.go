// Stringify turns records into formatted CSV lines. Positional records ([]string) are
// written as they come, while object records (map[string]string) are laid out by the
// configured columns.
package stringify

import (
	"bytes"
	"strings"

	"github.com/lawrencejones/csvsink/pkg/options"
	"github.com/lawrencejones/csvsink/pkg/util"
	"github.com/pkg/errors"
)

// DefaultLineBreak is used when line breaks are automatic and the source had none to
// offer.
const DefaultLineBreak = "\n"

var ErrUnsupportedRecord = errors.New("unsupported record")

// Stringifier formats one record at a time, remembering whether it has written the
// header. It is not safe for concurrent use.
type Stringifier struct {
	delimiter     string
	quote         string
	escape        string
	lineBreak     string
	quoted        bool
	header        bool
	newColumns    bool
	columns       []string
	headerWritten bool
}

// New builds a stringifier from resolved options. When the options leave line breaks to
// the producer, sourceLineBreak is used, falling back to DefaultLineBreak.
func New(opts options.Options, sourceLineBreak string) *Stringifier {
	s := &Stringifier{
		delimiter:  valueOr(opts.Delimiter, ","),
		quote:      valueOr(opts.Quote, `"`),
		lineBreak:  valueOr(sourceLineBreak, DefaultLineBreak),
		quoted:     opts.IsQuoted(),
		header:     opts.WithHeader(),
		newColumns: opts.WithNewColumns(),
		columns:    append([]string(nil), opts.Columns...),
	}

	s.escape = valueOr(opts.Escape, s.quote)
	if opts.LineBreaks != nil {
		s.lineBreak = *opts.LineBreaks
	}

	return s
}

// Columns returns the columns as they currently stand, which may have grown if new
// columns are enabled.
func (s *Stringifier) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Format renders a record as a line, prefixed by the header if this is the first record
// and a header was requested. Object records are projected first, so columns derived
// from the first record make it into the header.
func (s *Stringifier) Format(record interface{}) ([]byte, error) {
	var fields []string
	switch r := record.(type) {
	case []string:
		fields = r
	case map[string]string:
		fields = s.project(r)
	default:
		return nil, errors.Wrapf(ErrUnsupportedRecord, "cannot format %T", record)
	}

	var buffer bytes.Buffer
	buffer.Write(s.Header())
	s.writeLine(&buffer, fields)

	return buffer.Bytes(), nil
}

// Header returns the header line if it is due and has not yet been written. Once called,
// the header is never returned again, even if it was empty because the columns were not
// yet known.
func (s *Stringifier) Header() []byte {
	if s.headerWritten {
		return nil
	}

	s.headerWritten = true
	if !s.header || len(s.columns) == 0 {
		return nil
	}

	var buffer bytes.Buffer
	s.writeLine(&buffer, s.columns)

	return buffer.Bytes()
}

// project lays out an object record by column. Without configured columns, the first
// record decides them.
func (s *Stringifier) project(record map[string]string) []string {
	if len(s.columns) == 0 {
		s.columns = util.SortedKeys(record)
	} else if s.newColumns {
		s.columns = append(s.columns, util.Diff(util.SortedKeys(record), s.columns)...)
	}

	fields := make([]string, len(s.columns))
	for idx, column := range s.columns {
		fields[idx] = record[column]
	}

	return fields
}

func (s *Stringifier) writeLine(buffer *bytes.Buffer, fields []string) {
	for idx, field := range fields {
		if idx > 0 {
			buffer.WriteString(s.delimiter)
		}

		s.writeField(buffer, field)
	}

	buffer.WriteString(s.lineBreak)
}

func (s *Stringifier) writeField(buffer *bytes.Buffer, field string) {
	if s.quote == "" || !s.needsQuote(field) {
		buffer.WriteString(field)
		return
	}

	buffer.WriteString(s.quote)
	buffer.WriteString(strings.Replace(field, s.quote, s.escape+s.quote, -1))
	buffer.WriteString(s.quote)
}

func (s *Stringifier) needsQuote(field string) bool {
	if s.quoted {
		return true
	}

	for _, special := range []string{s.delimiter, s.quote, s.lineBreak, "\n", "\r"} {
		if special != "" && strings.Contains(field, special) {
			return true
		}
	}

	return false
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}
