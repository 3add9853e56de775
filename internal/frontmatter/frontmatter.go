// Package frontmatter reads and writes text files that carry a YAML metadata
// header ahead of their body.
//
// Three header styles are recognized:
//
//	---            <!---          #---
//	key: value     key: value     # key: value
//	---            --->           #---
//
// The opening delimiter must be the first line of the file.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/kmd/internal/atomicfile"
)

var (
	ErrEmptyFile            = errors.New("file is empty")
	ErrNotTextFile          = errors.New("not a text file")
	ErrUnterminatedMetadata = errors.New("metadata header is not terminated")
	ErrMalformedMetadata    = errors.New("metadata header is not a YAML mapping")
)

// FileError attaches the offending path to a read or write failure.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// Style selects the header delimiters.
type Style int

const (
	StyleYAML Style = iota
	StyleHTML
	StyleHash
)

type delimiters struct {
	start, end, prefix string
}

var styles = map[Style]delimiters{
	StyleYAML: {start: "---", end: "---"},
	StyleHTML: {start: "<!---", end: "--->"},
	StyleHash: {start: "#---", end: "#---", prefix: "# "},
}

func (s Style) String() string {
	switch s {
	case StyleHTML:
		return "html"
	case StyleHash:
		return "hash"
	default:
		return "yaml"
	}
}

// Options controls how a header is written.
type Options struct {
	Style Style
	// KeyOrder lists keys that are written first, in this order. Other keys
	// follow alphabetically. Applies to nested mappings too.
	KeyOrder []string
}

// Read parses the file at path. A file without a header yields its whole
// content as the body and nil metadata.
func Read(path string) (body string, metadata map[string]any, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	body, metadata, err = Parse(data)
	if err != nil {
		return "", nil, &FileError{Path: path, Err: err}
	}
	return body, metadata, nil
}

// Parse splits content into body and metadata.
func Parse(content []byte) (string, map[string]any, error) {
	if len(content) == 0 {
		return "", nil, ErrEmptyFile
	}
	if !utf8.Valid(content) || bytes.IndexByte(content, 0) >= 0 {
		return "", nil, ErrNotTextFile
	}

	text := string(content)
	first, rest, _ := strings.Cut(text, "\n")
	delim, ok := styleOf(first)
	if !ok {
		return text, nil, nil
	}

	var header []string
	for rest != "" {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		if trimDelimiter(line) == delim.end {
			meta, err := decodeHeader(header, delim.prefix)
			if err != nil {
				return "", nil, err
			}
			return rest, meta, nil
		}
		header = append(header, line)
	}
	return "", nil, ErrUnterminatedMetadata
}

func trimDelimiter(line string) string {
	return strings.TrimRight(line, " \t\r")
}

func styleOf(firstLine string) (delimiters, bool) {
	line := trimDelimiter(firstLine)
	for _, s := range []Style{StyleYAML, StyleHTML, StyleHash} {
		if d := styles[s]; line == d.start {
			return d, true
		}
	}
	return delimiters{}, false
}

func decodeHeader(lines []string, prefix string) (map[string]any, error) {
	if prefix != "" {
		bare := strings.TrimSpace(prefix)
		for i, l := range lines {
			switch {
			case strings.HasPrefix(l, prefix):
				lines[i] = l[len(prefix):]
			case strings.HasPrefix(l, bare):
				lines[i] = l[len(bare):]
			}
		}
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	// Empty (or comment-only) header: present, but no fields.
	if node.Kind == 0 || len(node.Content) == 0 {
		return map[string]any{}, nil
	}
	root := &node
	if root.Kind == yaml.DocumentNode {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, ErrMalformedMetadata
	}

	meta := map[string]any{}
	if err := root.Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	return meta, nil
}

// Encode renders body with a metadata header. Empty metadata produces the
// body alone.
func Encode(body string, metadata map[string]any, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if len(metadata) > 0 {
		delim, ok := styles[opts.Style]
		if !ok {
			return nil, fmt.Errorf("unknown frontmatter style %d", opts.Style)
		}
		node, err := orderedNode(metadata, opts.KeyOrder)
		if err != nil {
			return nil, err
		}

		var header bytes.Buffer
		enc := yaml.NewEncoder(&header)
		enc.SetIndent(2)
		if err := enc.Encode(node); err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}

		buf.WriteString(delim.start + "\n")
		for _, line := range strings.SplitAfter(strings.TrimSuffix(header.String(), "\n"), "\n") {
			buf.WriteString(delim.prefix + line)
		}
		buf.WriteString("\n" + delim.end + "\n")
	}
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// Write encodes and writes the file atomically, creating parent directories.
func Write(path, body string, metadata map[string]any, opts Options) error {
	data, err := Encode(body, metadata, opts)
	if err != nil {
		return &FileError{Path: path, Err: err}
	}
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return &FileError{Path: path, Err: err}
	}
	return nil
}

func orderedNode(v any, order []string) (*yaml.Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		var n yaml.Node
		if err := n.Encode(v); err != nil {
			return nil, fmt.Errorf("encode metadata value: %w", err)
		}
		return &n, nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		ra, rb := rank(order, a), rank(order, b)
		if ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})

	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		val, err := orderedNode(m[k], order)
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			val,
		)
	}
	return node, nil
}

func rank(order []string, key string) int {
	if idx := slices.Index(order, key); idx >= 0 {
		return idx
	}
	return len(order)
}
