package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	columnGap  = 2
	kindWidth  = 20
	minTitle   = 16
	minPath    = 16
	titleShare = 55 // percent of the flexible width
)

// Listing is a numbered list of items. Row numbers match what
// ResolveNumbers accepts on the next command.
type Listing struct {
	width int
	rows  []listingRow
}

type listingRow struct {
	title, kind, path string
}

// NewListing returns a listing laid out for width columns.
func NewListing(width int) *Listing {
	if width <= 0 {
		width = FallbackWidth
	}
	return &Listing{width: width}
}

// Add appends a row. kind is free text such as "resource · url".
func (l *Listing) Add(title, kind, path string) {
	l.rows = append(l.rows, listingRow{title: title, kind: kind, path: path})
}

// Len returns the number of rows.
func (l *Listing) Len() int { return len(l.rows) }

func (l *Listing) columns() (num, title, path int) {
	num = len(strconv.Itoa(len(l.rows)))
	flex := l.width - num - kindWidth - 3*columnGap
	title = flex * titleShare / 100
	path = flex - title
	if title < minTitle {
		title = minTitle
	}
	if path < minPath {
		path = minPath
	}
	return num, title, path
}

// Render returns the listing without a trailing newline, or "" when empty.
func (l *Listing) Render() string {
	if len(l.rows) == 0 {
		return ""
	}
	num, title, path := l.columns()
	widths := []int{num, title, kindWidth, path}

	t := table.New().
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		BorderRow(false).
		StyleFunc(func(_, col int) lipgloss.Style {
			s := lipgloss.NewStyle()
			switch col {
			case 0:
				s = Muted.Align(lipgloss.Right)
			case 2:
				s = Muted
			case 3:
				s = Accent
			}
			if col < len(widths)-1 {
				return s.Width(widths[col] + columnGap).PaddingRight(columnGap)
			}
			return s.Width(widths[col])
		})

	for i, r := range l.rows {
		t.Row(
			strconv.Itoa(i+1),
			Truncate(r.title, title),
			Truncate(r.kind, kindWidth),
			Truncate(r.path, path),
		)
	}
	return strings.TrimRight(t.Render(), "\n")
}

// Truncate shortens s to at most n terminal cells, marking the cut with "…".
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > n {
		r = r[:len(r)-1]
	}
	return strings.TrimRight(string(r), " ") + "…"
}
