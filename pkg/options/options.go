package options

import (
	"os"
	"reflect"
	"unicode/utf8"

	"github.com/imdario/mergo"
	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
)

const (
	// FlagsWrite creates the destination file, truncating any existing content
	FlagsWrite = "w"
	// FlagsAppend creates the destination file if missing, appending to existing content
	FlagsAppend = "a"
)

// Options configures the output stage of a pipeline. Fields that need to tell "not set"
// apart from their zero value are pointers, which allows a patch of End: Bool(false) to
// override a default of true while an empty patch leaves it alone.
type Options struct {
	Delimiter  string      // single character separating fields
	Quote      string      // single character surrounding quoted fields
	Quoted     *bool       // quote every field, even when not required
	Escape     string      // single character escaping quotes inside quoted fields
	Columns    []string    // field names, order matters
	Header     *bool       // write column names as the first line
	LineBreaks *string     // symbolic name (auto, unix, mac, windows, unicode) or literal
	Flags      string      // file open mode, one of FlagsWrite or FlagsAppend
	NewColumns *bool       // extend columns with unseen keys of object records
	End        *bool       // end the destination when the producer is exhausted
	Mode       os.FileMode // permissions for newly created files
}

// Defaults are the options every pipeline starts from
func Defaults() Options {
	return Options{
		Delimiter:  ",",
		Quote:      `"`,
		Quoted:     Bool(false),
		Escape:     `"`,
		Header:     Bool(false),
		LineBreaks: String(LineBreaksAuto),
		Flags:      FlagsWrite,
		NewColumns: Bool(false),
		End:        Bool(true),
		Mode:       0644,
	}
}

func Bool(b bool) *bool { return &b }
func String(s string) *string { return &s }

// Merge shallow-merges patch into base, returning the result. Any field set in the patch
// replaces the value in base, while fields left unset survive. Neither argument is
// modified: both are copied before merging, so the result never aliases their pointers.
func Merge(base, patch Options) (Options, error) {
	merged, err := base.copy()
	if err != nil {
		return base, err
	}

	patch, err = patch.copy()
	if err != nil {
		return base, err
	}

	if err := mergo.Merge(&merged, patch, mergo.WithOverride, mergo.WithTransformers(pointerTransformer{})); err != nil {
		return base, errors.Wrap(err, "failed to merge options")
	}

	return merged, nil
}

func (o Options) copy() (Options, error) {
	copied, err := copystructure.Copy(o)
	if err != nil {
		return o, errors.Wrap(err, "failed to copy options")
	}

	return copied.(Options), nil
}

// pointerTransformer makes a set pointer in the patch replace the pointer in base. mergo
// would otherwise merge into the pointed-at value, where false never overrides true.
type pointerTransformer struct{}

var (
	boolPtrType   = reflect.TypeOf((*bool)(nil))
	stringPtrType = reflect.TypeOf((*string)(nil))
)

func (pointerTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != boolPtrType && typ != stringPtrType {
		return nil
	}

	return func(dst, src reflect.Value) error {
		if !src.IsNil() && dst.CanSet() {
			dst.Set(src)
		}

		return nil
	}
}

// WithoutEnd returns an independent copy of the options with End removed. Destinations
// we open ourselves must always be ended, whatever the caller asked for a stream they
// own.
func (o Options) WithoutEnd() (Options, error) {
	opts, err := o.copy()
	if err != nil {
		return o, err
	}

	opts.End = nil

	return opts, nil
}

// ShouldEnd is true unless End has been explicitly disabled
func (o Options) ShouldEnd() bool {
	return o.End == nil || *o.End
}

func (o Options) IsQuoted() bool       { return o.Quoted != nil && *o.Quoted }
func (o Options) WithHeader() bool     { return o.Header != nil && *o.Header }
func (o Options) WithNewColumns() bool { return o.NewColumns != nil && *o.NewColumns }

// OpenFlags translates Flags into the flags for os.OpenFile
func (o Options) OpenFlags() (int, error) {
	switch o.Flags {
	case "", FlagsWrite:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, nil
	case FlagsAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	}

	return 0, errors.Errorf("unsupported flags %q, expected %q or %q", o.Flags, FlagsWrite, FlagsAppend)
}

// Validate checks the single character settings are at most one character long
func (o Options) Validate() error {
	for name, value := range map[string]string{"delimiter": o.Delimiter, "quote": o.Quote, "escape": o.Escape} {
		if utf8.RuneCountInString(value) > 1 {
			return errors.Errorf("%s must be a single character, got %q", name, value)
		}
	}

	if _, err := o.OpenFlags(); err != nil {
		return err
	}

	return nil
}
