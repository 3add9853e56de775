package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table lines rows up in plain columns. Widths are measured in terminal
// cells, so styled cells align with unstyled ones.
type Table struct {
	rows   [][]string
	widths []int
}

// NewTable returns an empty table.
func NewTable() *Table { return &Table{} }

// Row appends a row. Rows may have different lengths.
func (t *Table) Row(cells ...string) *Table {
	for i, c := range cells {
		if i == len(t.widths) {
			t.widths = append(t.widths, 0)
		}
		if w := lipgloss.Width(c); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	t.rows = append(t.rows, cells)
	return t
}

// String renders every row followed by a newline. The last cell of a row is
// never padded.
func (t *Table) String() string {
	var b strings.Builder
	for _, row := range t.rows {
		for i, c := range row {
			b.WriteString(c)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", t.widths[i]-lipgloss.Width(c)+columnGap))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
