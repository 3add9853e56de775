// Package lastresults remembers the most recent numbered listing so a
// follow-up command can name items by row (`kmd select 1,3-5`).
package lastresults

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aidanlsb/kmd/internal/atomicfile"
)

// FileName is stored in the workspace settings directory.
const FileName = "last-results.json"

// maxSpan bounds a single "a-b" range.
const maxSpan = 1000

var (
	ErrNoLastResults    = errors.New("no numbered listing to refer to")
	ErrNumberOutOfRange = errors.New("row number out of range")
	ErrInvalidNumber    = errors.New("invalid row number")
)

// Listing is the last set of rows shown to the user.
type Listing struct {
	Source string    `json:"source"`
	At     time.Time `json:"at"`
	Paths  []string  `json:"paths"`
}

// Save replaces the listing stored under dir.
func Save(dir string, l Listing) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(filepath.Join(dir, FileName), data, 0o644)
}

// Load returns the listing stored under dir, or ErrNoLastResults.
func Load(dir string) (*Listing, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, ErrNoLastResults
	case err != nil:
		return nil, err
	}
	l := &Listing{}
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("%s: %w", FileName, err)
	}
	return l, nil
}

// IsReference reports whether args are row numbers rather than paths: each
// one holds only digits, commas, dashes and spaces.
func IsReference(args []string) bool {
	if len(args) == 0 {
		return false
	}
	for _, a := range args {
		if strings.TrimFunc(a, isRefRune) != "" || strings.TrimSpace(a) == "" {
			return false
		}
	}
	return true
}

func isRefRune(r rune) bool {
	return (r >= '0' && r <= '9') || r == ',' || r == '-' || r == ' '
}

// Pick resolves row references against the listing. Rows come back in the
// order named, each at most once.
func (l *Listing) Pick(args []string) ([]string, error) {
	rows, err := ParseRefs(strings.Join(args, ","))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, n := range rows {
		if n > len(l.Paths) {
			return nil, fmt.Errorf("%w: %d, the last listing has %d rows", ErrNumberOutOfRange, n, len(l.Paths))
		}
		out = append(out, l.Paths[n-1])
	}
	return out, nil
}

// ParseRefs parses "1", "1,3", "2-4", "1 3-5,7" into 1-based row numbers,
// dropping repeats.
func ParseRefs(s string) ([]int, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: nothing given", ErrInvalidNumber)
	}
	var rows []int
	seen := make(map[int]bool)
	for _, p := range parts {
		lo, hi, err := span(p)
		if err != nil {
			return nil, err
		}
		for n := lo; n <= hi; n++ {
			if !seen[n] {
				seen[n] = true
				rows = append(rows, n)
			}
		}
	}
	return rows, nil
}

func span(p string) (int, int, error) {
	a, b, isRange := strings.Cut(p, "-")
	lo, err := strconv.Atoi(a)
	if err != nil || lo < 1 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidNumber, p)
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(b)
	switch {
	case err != nil || hi < lo:
		return 0, 0, fmt.Errorf("%w: bad range %q", ErrInvalidNumber, p)
	case hi-lo >= maxSpan:
		return 0, 0, fmt.Errorf("%w: range %q is too large", ErrInvalidNumber, p)
	}
	return lo, hi, nil
}
