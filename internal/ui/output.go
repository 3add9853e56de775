package ui

import "fmt"

// Status marks. Color is never the only signal.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "!"
	SymbolInfo    = "·"
)

func mark(symbol, format string, args []any) string {
	return symbol + " " + fmt.Sprintf(format, args...)
}

// Successf reports a completed step.
func Successf(format string, args ...any) string {
	return mark(Accent.Render(SymbolSuccess), format, args)
}

// Warningf reports something that went through but needs attention.
func Warningf(format string, args ...any) string {
	return mark(Bold.Render(SymbolWarning), format, args)
}

// Infof reports a side effect of a step.
func Infof(format string, args ...any) string {
	return mark(Muted.Render(SymbolInfo), format, args)
}

// Header styles a section title.
func Header(s string) string { return Bold.Render(s) }

// FilePath styles a store path.
func FilePath(p string) string { return Accent.Render(p) }

// Hint styles secondary text.
func Hint(s string) string { return Muted.Render(s) }

// Count renders a parenthesized count: "(1 item)", "(3 items)".
func Count(n int, one, many string) string {
	noun := many
	if n == 1 {
		noun = one
	}
	return fmt.Sprintf("(%d %s)", n, noun)
}
