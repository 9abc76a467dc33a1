package options

import (
	"fmt"

	"github.com/alecthomas/kingpin"
)

// Flagger is satisfied by both kingpin applications and commands
type Flagger interface {
	Flag(name, help string) *kingpin.FlagClause
}

func (opt *Options) Bind(cmd Flagger, prefix string) *Options {
	cmd.Flag(fmt.Sprintf("%sdelimiter", prefix), "Field delimiter, one character").Default(",").StringVar(&opt.Delimiter)
	cmd.Flag(fmt.Sprintf("%squote", prefix), "Quote character, one character").Default(`"`).StringVar(&opt.Quote)
	cmd.Flag(fmt.Sprintf("%sescape", prefix), "Character escaping quotes inside quoted fields").Default(`"`).StringVar(&opt.Escape)
	cmd.Flag(fmt.Sprintf("%scolumn", prefix), "Column names, in order (repeatable)").StringsVar(&opt.Columns)
	cmd.Flag(fmt.Sprintf("%sflags", prefix), "File open mode, 'w' to create or truncate, 'a' to append").Default(FlagsWrite).EnumVar(&opt.Flags, FlagsWrite, FlagsAppend)

	opt.Quoted = cmd.Flag(fmt.Sprintf("%squoted", prefix), "Quote every field, even when not required").Default("false").Bool()
	opt.Header = cmd.Flag(fmt.Sprintf("%sheader", prefix), "Write column names as the first line").Default("false").Bool()
	opt.NewColumns = cmd.Flag(fmt.Sprintf("%snew-columns", prefix), "Append unseen columns of object records").Default("false").Bool()
	opt.End = cmd.Flag(fmt.Sprintf("%send", prefix), "End the destination once every record is written").Default("true").Bool()
	opt.LineBreaks = cmd.Flag(fmt.Sprintf("%sline-breaks", prefix), "Line break: auto, unix, mac, windows, unicode or a literal").Default(LineBreaksAuto).String()

	return opt
}
