package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownItemType is returned when a type name is not one of the known item types.
var ErrUnknownItemType = errors.New("unknown item type")

// ErrUnknownFolder is returned when a folder name does not belong to any item type.
var ErrUnknownFolder = errors.New("unknown item folder")

// ItemType is the kind of an item. Each type lives in exactly one folder.
type ItemType string

const (
	TypeNote        ItemType = "note"
	TypeQuestion    ItemType = "question"
	TypeConcept     ItemType = "concept"
	TypeAnswer      ItemType = "answer"
	TypeResource    ItemType = "resource"
	TypeDescription ItemType = "description"
	TypeExport      ItemType = "export"
)

// ItemTypes lists every item type in folder order.
var ItemTypes = []ItemType{
	TypeNote,
	TypeQuestion,
	TypeConcept,
	TypeAnswer,
	TypeResource,
	TypeDescription,
	TypeExport,
}

// ParseItemType resolves a type name. Folder names are not accepted.
func ParseItemType(name string) (ItemType, error) {
	t := ItemType(strings.TrimSpace(name))
	if t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownItemType, name)
}

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	for _, known := range ItemTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Folder returns the workspace folder for items of this type.
func (t ItemType) Folder() string {
	return string(t) + "s"
}

func (t ItemType) String() string { return string(t) }

// TypeForFolder is the inverse of ItemType.Folder.
func TypeForFolder(folder string) (ItemType, error) {
	for _, t := range ItemTypes {
		if t.Folder() == folder {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFolder, folder)
}

// Format is the content format of an item body.
type Format string

const (
	FormatURL       Format = "url"
	FormatHTML      Format = "html"
	FormatMarkdown  Format = "markdown"
	FormatMdHTML    Format = "md_html"
	FormatPlaintext Format = "plaintext"
	FormatPDF       Format = "pdf"
	FormatYAML      Format = "yaml"
	FormatPython    Format = "python"
)

var formats = []Format{
	FormatURL, FormatHTML, FormatMarkdown, FormatMdHTML,
	FormatPlaintext, FormatPDF, FormatYAML, FormatPython,
}

// ParseFormat resolves a format name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.TrimSpace(name))
	for _, known := range formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format: %q", name)
}

// IsText reports whether bodies of this format are stored as text.
func (f Format) IsText() bool {
	return f != FormatPDF
}

// IsMarkdown reports whether the format is Markdown or Markdown mixed with HTML.
func (f Format) IsMarkdown() bool {
	return f == FormatMarkdown || f == FormatMdHTML
}

// FileExt is the file extension (without the dot) used on disk.
type FileExt string

const (
	ExtMarkdown FileExt = "md"
	ExtHTML     FileExt = "html"
	ExtText     FileExt = "txt"
	ExtYAML     FileExt = "yml"
	ExtPDF      FileExt = "pdf"
	ExtPython   FileExt = "py"
)

// ExtFor returns the default file extension for a format.
func ExtFor(f Format) FileExt {
	switch f {
	case FormatHTML:
		return ExtHTML
	case FormatPlaintext:
		return ExtText
	case FormatYAML:
		return ExtYAML
	case FormatPDF:
		return ExtPDF
	case FormatPython:
		return ExtPython
	default:
		// url, markdown and md_html all live in Markdown files.
		return ExtMarkdown
	}
}

// ParseFileExt resolves an extension, with or without a leading dot.
func ParseFileExt(ext string) (FileExt, error) {
	e := FileExt(strings.ToLower(strings.TrimPrefix(ext, ".")))
	switch e {
	case ExtMarkdown, ExtHTML, ExtText, ExtYAML, ExtPDF, ExtPython:
		return e, nil
	case "markdown":
		return ExtMarkdown, nil
	case "htm":
		return ExtHTML, nil
	case "yaml":
		return ExtYAML, nil
	}
	return "", fmt.Errorf("unsupported file extension: %q", ext)
}

// FormatForExt guesses the format of a file from its extension.
func FormatForExt(e FileExt) Format {
	switch e {
	case ExtHTML:
		return FormatHTML
	case ExtText:
		return FormatPlaintext
	case ExtYAML:
		return FormatYAML
	case ExtPDF:
		return FormatPDF
	case ExtPython:
		return FormatPython
	default:
		return FormatMarkdown
	}
}

// IsText reports whether files with this extension hold text.
func (e FileExt) IsText() bool {
	return e != ExtPDF
}
