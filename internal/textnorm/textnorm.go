// Package textnorm normalizes item bodies before they are written, so that
// saving the same content twice produces identical files.
package textnorm

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/aidanlsb/kmd/internal/model"
)

// Body normalizes text for the given format. Unknown or non-text formats are
// returned with only Unicode and line-ending normalization.
func Body(text string, format model.Format) string {
	if text == "" {
		return ""
	}
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	switch format {
	case model.FormatMarkdown, model.FormatMdHTML:
		return Markdown(text)
	case model.FormatPlaintext, model.FormatURL:
		return finalNewline(trimTrailingSpace(text))
	default:
		return text
	}
}

// Markdown tidies Markdown text: trailing whitespace is removed, runs of
// blank lines collapse to one, ATX headings get a blank line on each side,
// and the text ends with exactly one newline. Fenced code blocks are left
// untouched.
func Markdown(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	fence := ""

	blankPending := false
	emit := func(line string) {
		if blankPending && len(out) > 0 {
			out = append(out, "")
		}
		blankPending = false
		out = append(out, line)
	}

	for _, line := range lines {
		if fence != "" {
			out = append(out, line)
			if isFenceClose(line, fence) {
				fence = ""
			}
			continue
		}
		if f := fenceOpen(line); f != "" {
			fence = f
			emit(strings.TrimRight(line, " \t"))
			continue
		}

		line = strings.TrimRight(line, " \t")
		switch {
		case line == "":
			blankPending = true
		case isHeading(line):
			blankPending = true
			emit(line)
			blankPending = true
		default:
			emit(line)
		}
	}

	return finalNewline(strings.Join(out, "\n"))
}

func isHeading(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || !strings.HasPrefix(trimmed, "#") {
		return false
	}
	level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
	if level > 6 {
		return false
	}
	rest := trimmed[level:]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

func fenceOpen(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return ""
	}
	for _, ch := range []string{"`", "~"} {
		n := len(trimmed) - len(strings.TrimLeft(trimmed, ch))
		if n >= 3 {
			return strings.Repeat(ch, n)
		}
	}
	return ""
}

func isFenceClose(line, fence string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, fence) && strings.Trim(trimmed, fence[:1]) == ""
}

func trimTrailingSpace(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "\n")
}

func finalNewline(text string) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	return text + "\n"
}
