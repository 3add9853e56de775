package ui

import (
	"os"
	"strconv"

	"github.com/charmbracelet/x/term"
)

// FallbackWidth is used when stdout is not a terminal and COLUMNS is unset.
const FallbackWidth = 100

// Width returns the column count to lay output out for. COLUMNS wins over the
// size of stdout so piped output can still be shaped.
func Width() int {
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return FallbackWidth
}
