package options

const (
	LineBreaksAuto    = "auto"
	LineBreaksUnix    = "unix"
	LineBreaksMac     = "mac"
	LineBreaksWindows = "windows"
	LineBreaksUnicode = "unicode"
)

var lineBreaks = map[string]string{
	LineBreaksUnix:    "\n",
	LineBreaksMac:     "\r",
	LineBreaksWindows: "\r\n",
	LineBreaksUnicode: "\u2028",
}

// ResolveLineBreaks maps a symbolic line break name onto the literal separator. Auto
// resolves to nil, leaving the producer to decide. Literal values pass through unchanged,
// so resolving twice gives the same answer as resolving once.
func ResolveLineBreaks(value *string) *string {
	if value == nil || *value == LineBreaksAuto {
		return nil
	}

	if literal, ok := lineBreaks[*value]; ok {
		return String(literal)
	}

	return value
}

// Resolved returns a copy of the options with LineBreaks resolved. The receiver is left
// untouched, so the stored options keep their symbolic name.
func (o Options) Resolved() Options {
	o.LineBreaks = ResolveLineBreaks(o.LineBreaks)
	return o
}
