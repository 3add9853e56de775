package model

import (
	"fmt"
	"time"
)

// Metadata keys, in the order they are written to a file header.
const (
	KeySource       = "source"
	KeyType         = "type"
	KeyTitle        = "title"
	KeyURL          = "url"
	KeyDescription  = "description"
	KeyFormat       = "format"
	KeyFileExt      = "file_ext"
	KeyCreatedAt    = "created_at"
	KeyModifiedAt   = "modified_at"
	KeyRelations    = "relations"
	KeyThumbnailURL = "thumbnail_url"
	KeyExtra        = "extra"

	keyActionName  = "action_name"
	keyArguments   = "arguments"
	keyDerivedFrom = "derived_from"
)

// KeyOrder is the fixed priority used when writing metadata headers.
// Operation fields come first so nested provenance reads naturally.
var KeyOrder = []string{
	KeySource,
	keyActionName,
	keyArguments,
	KeyType,
	KeyTitle,
	KeyURL,
	KeyDescription,
	KeyFormat,
	KeyFileExt,
	KeyCreatedAt,
	KeyModifiedAt,
	KeyRelations,
	keyDerivedFrom,
	KeyThumbnailURL,
	KeyExtra,
}

// Metadata returns the header fields of the item. Body and store location are
// not included, nor are absent fields.
func (i *Item) Metadata() map[string]any {
	m := map[string]any{}
	if i.Source != nil {
		src := map[string]any{keyActionName: i.Source.ActionName}
		if len(i.Source.Arguments) > 0 {
			src[keyArguments] = append([]string(nil), i.Source.Arguments...)
		}
		m[KeySource] = src
	}
	if i.Type != "" {
		m[KeyType] = string(i.Type)
	}
	putString(m, KeyTitle, i.Title)
	putString(m, KeyURL, i.URL)
	putString(m, KeyDescription, i.Description)
	putString(m, KeyFormat, string(i.Format))
	putString(m, KeyFileExt, string(i.FileExt))
	if !i.CreatedAt.IsZero() {
		m[KeyCreatedAt] = i.CreatedAt.UTC()
	}
	if !i.ModifiedAt.IsZero() {
		m[KeyModifiedAt] = i.ModifiedAt.UTC()
	}
	if len(i.Relations.DerivedFrom) > 0 {
		m[KeyRelations] = map[string]any{
			keyDerivedFrom: append([]string(nil), i.Relations.DerivedFrom...),
		}
	}
	putString(m, KeyThumbnailURL, i.ThumbnailURL)
	if len(i.Extra) > 0 {
		m[KeyExtra] = deepCopyMap(i.Extra)
	}
	return m
}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// FromMetadata builds an item from a decoded header and body. Unknown keys are
// kept under Extra so nothing is lost on a rewrite.
func FromMetadata(meta map[string]any, body string) (*Item, error) {
	item := &Item{Body: body}
	for key, raw := range meta {
		switch key {
		case KeyType:
			t, err := ParseItemType(toString(raw))
			if err != nil {
				return nil, err
			}
			item.Type = t
		case KeyTitle:
			item.Title = toString(raw)
		case KeyURL:
			item.URL = toString(raw)
		case KeyDescription:
			item.Description = toString(raw)
		case KeyFormat:
			f, err := ParseFormat(toString(raw))
			if err != nil {
				return nil, err
			}
			item.Format = f
		case KeyFileExt:
			e, err := ParseFileExt(toString(raw))
			if err != nil {
				return nil, err
			}
			item.FileExt = e
		case KeyCreatedAt:
			ts, err := toTime(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			item.CreatedAt = ts
		case KeyModifiedAt:
			ts, err := toTime(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			item.ModifiedAt = ts
		case KeyRelations:
			if rel, ok := raw.(map[string]any); ok {
				item.Relations.DerivedFrom = toStrings(rel[keyDerivedFrom])
			}
		case KeyThumbnailURL:
			item.ThumbnailURL = toString(raw)
		case KeySource:
			if src, ok := raw.(map[string]any); ok {
				item.Source = &Operation{
					ActionName: toString(src[keyActionName]),
					Arguments:  toStrings(src[keyArguments]),
				}
			}
		case KeyExtra:
			if extra, ok := raw.(map[string]any); ok {
				if item.Extra == nil {
					item.Extra = map[string]any{}
				}
				for k, v := range extra {
					item.Extra[k] = v
				}
			}
		default:
			if item.Extra == nil {
				item.Extra = map[string]any{}
			}
			item.Extra[key] = raw
		}
	}
	if item.FileExt != "" && !item.FileExt.IsText() {
		item.IsBinary = true
	}
	return item, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, toString(e))
		}
		return out
	case string:
		return []string{t}
	}
	return nil
}

// Timestamps arrive as strings from yaml.v3 but as time.Time from callers
// that build metadata in memory.
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999", "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", t)
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("unexpected timestamp value %v", v)
}
