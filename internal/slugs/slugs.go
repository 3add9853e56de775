// Package slugs derives filesystem-safe, unique filename stems for items.
//
// Slugs are built on gosimple/slug (lowercase, ASCII transliteration) with
// underscores as the word separator so they read well next to the
// "<type>.<ext>" suffix, e.g. "my_first_note.note.md".
package slugs

import (
	"strconv"
	"strings"

	goslug "github.com/gosimple/slug"

	"github.com/aidanlsb/kmd/internal/model"
)

// MaxLength bounds the slug stem before any uniqueness suffix.
const MaxLength = 50

// Fallback is used when text has no sluggable characters.
const Fallback = "untitled"

// Make converts text to a slug stem. It is deterministic.
func Make(text string) string {
	s := goslug.Make(text)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.Trim(s, "_")
	s = truncate(s, MaxLength)
	if s == "" {
		return Fallback
	}
	return s
}

// truncate cuts at the last word boundary that fits. A single word longer
// than max is cut mid-word.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if s[max] != '_' {
		if idx := strings.LastIndexByte(cut, '_'); idx > 0 {
			cut = cut[:idx]
		}
	}
	return strings.TrimRight(cut, "_")
}

// Unique returns base, or base with the smallest "_N" suffix (N >= 1) that is
// not taken.
func Unique(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for n := 1; ; n++ {
		candidate := base + "_" + strconv.Itoa(n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// For returns the slug stem for an item given the stems already used in its folder.
func For(item *model.Item, taken func(string) bool) string {
	return Unique(Make(item.SlugSource()), taken)
}

// Filename joins a slug stem with the item's full suffix.
func Filename(stem string, item *model.Item) string {
	return stem + "." + item.FullSuffix()
}

// StemOf returns the slug stem of a filename: everything before the first dot.
func StemOf(filename string) string {
	if idx := strings.IndexByte(filename, '.'); idx >= 0 {
		return filename[:idx]
	}
	return filename
}
