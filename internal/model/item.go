// Package model defines the item record stored in a workspace and the closed
// sets of item types, formats and file extensions.
package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrNoStorePath is returned when an operation needs a saved item.
var ErrNoStorePath = errors.New("item has no store path")

// Relations links an item to the items it was produced from.
type Relations struct {
	DerivedFrom []string `json:"derived_from,omitempty"`
}

// Operation records the action invocation that produced an item.
type Operation struct {
	ActionName string   `json:"action_name"`
	Arguments  []string `json:"arguments,omitempty"`
}

// Item is one unit of content. Empty strings mean "absent".
type Item struct {
	Type         ItemType       `json:"type" validate:"required,itemtype"`
	Title        string         `json:"title,omitempty"`
	URL          string         `json:"url,omitempty" validate:"omitempty,url"`
	Description  string         `json:"description,omitempty"`
	Format       Format         `json:"format,omitempty"`
	FileExt      FileExt        `json:"file_ext,omitempty" validate:"required_if=IsBinary true"`
	CreatedAt    time.Time      `json:"created_at"`
	ModifiedAt   time.Time      `json:"modified_at"`
	Body         string         `json:"body,omitempty"`
	ExternalPath string         `json:"external_path,omitempty" validate:"required_if=IsBinary true"`
	IsBinary     bool           `json:"is_binary,omitempty"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty" validate:"omitempty,url"`
	Relations    Relations      `json:"relations"`
	Source       *Operation     `json:"source,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`

	// StorePath is the path relative to the workspace root. Only the store sets it.
	StorePath string `json:"store_path,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("itemtype", func(fl validator.FieldLevel) bool {
		return ItemType(fl.Field().String()).Valid()
	})
}

// New returns an item of the given type with fresh timestamps.
func New(t ItemType, f Format) *Item {
	now := Now()
	return &Item{
		Type:       t,
		Format:     f,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// Now is the clock used for item timestamps. Tests may replace it.
var Now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Validate checks field-level constraints.
func (i *Item) Validate() error {
	if err := validate.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				if e.Tag() == "itemtype" {
					return fmt.Errorf("%w: %q", ErrUnknownItemType, e.Value())
				}
				msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Field(), e.Tag()))
			}
			return fmt.Errorf("invalid item: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Ext returns the file extension, inferring it from the format when unset.
func (i *Item) Ext() FileExt {
	if i.FileExt != "" {
		return i.FileExt
	}
	return ExtFor(i.Format)
}

// FullSuffix is the filename suffix after the slug, e.g. "note.md".
func (i *Item) FullSuffix() string {
	return string(i.Type) + "." + string(i.Ext())
}

// IsText reports whether the item body is written through the text codec.
func (i *Item) IsText() bool {
	return !i.IsBinary && i.Ext().IsText()
}

// SlugSource returns the text a filename is derived from.
func (i *Item) SlugSource() string {
	for _, s := range []string{i.Title, i.URL, i.Description, firstLine(i.Body)} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "untitled"
}

// AbbrevTitle returns a short human label for listings.
func (i *Item) AbbrevTitle(max int) string {
	s := i.SlugSource()
	r := []rune(s)
	if max > 1 && len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}

// Override modifies a copy produced by CopyWith.
type Override func(*Item)

func WithTitle(s string) Override       { return func(i *Item) { i.Title = s } }
func WithBody(s string) Override        { return func(i *Item) { i.Body = s } }
func WithURL(s string) Override         { return func(i *Item) { i.URL = s } }
func WithDescription(s string) Override { return func(i *Item) { i.Description = s } }
func WithFormat(f Format) Override      { return func(i *Item) { i.Format = f; i.FileExt = "" } }
func WithType(t ItemType) Override      { return func(i *Item) { i.Type = t } }
func WithStorePath(p string) Override   { return func(i *Item) { i.StorePath = p } }
func WithSource(op *Operation) Override { return func(i *Item) { i.Source = op } }

// WithExternalPath marks the copy as a binary item backed by path.
func WithExternalPath(path string, ext FileExt) Override {
	return func(i *Item) {
		i.ExternalPath = path
		i.FileExt = ext
		i.IsBinary = !ext.IsText()
		i.Body = ""
	}
}

// CopyWith returns a deep copy of old with overrides applied. The copy has no
// store path unless an override sets one, and fresh timestamps.
func CopyWith(old *Item, overrides ...Override) *Item {
	cp := old.Clone()
	cp.StorePath = ""
	now := Now()
	cp.CreatedAt = now
	cp.ModifiedAt = now
	for _, o := range overrides {
		o(cp)
	}
	return cp
}

// DerivedCopy is CopyWith plus a derived_from link back to old.
func DerivedCopy(old *Item, overrides ...Override) (*Item, error) {
	if old.StorePath == "" {
		return nil, fmt.Errorf("derived copy of %q: %w", old.SlugSource(), ErrNoStorePath)
	}
	cp := CopyWith(old, overrides...)
	cp.Relations.DerivedFrom = []string{old.StorePath}
	return cp, nil
}

// MergedCopy returns base updated with every non-absent field of other.
// Store path and creation time are kept from base.
func MergedCopy(base, other *Item) *Item {
	cp := base.Clone()
	if other.Title != "" {
		cp.Title = other.Title
	}
	if other.URL != "" {
		cp.URL = other.URL
	}
	if other.Description != "" {
		cp.Description = other.Description
	}
	if other.Format != "" {
		cp.Format = other.Format
	}
	if other.FileExt != "" {
		cp.FileExt = other.FileExt
	}
	if other.Body != "" {
		cp.Body = other.Body
	}
	if other.ThumbnailURL != "" {
		cp.ThumbnailURL = other.ThumbnailURL
	}
	if len(other.Relations.DerivedFrom) > 0 {
		cp.Relations.DerivedFrom = slices.Clone(other.Relations.DerivedFrom)
	}
	if other.Source != nil {
		cp.Source = other.Source.clone()
	}
	if len(other.Extra) > 0 {
		if cp.Extra == nil {
			cp.Extra = map[string]any{}
		}
		maps.Copy(cp.Extra, other.Extra)
	}
	cp.ModifiedAt = Now()
	return cp
}

// Clone returns a deep copy, including store path and timestamps.
func (i *Item) Clone() *Item {
	cp := *i
	cp.Relations.DerivedFrom = slices.Clone(i.Relations.DerivedFrom)
	cp.Source = i.Source.clone()
	if i.Extra != nil {
		cp.Extra = deepCopyMap(i.Extra)
	}
	return &cp
}

func (o *Operation) clone() *Operation {
	if o == nil {
		return nil
	}
	return &Operation{ActionName: o.ActionName, Arguments: slices.Clone(o.Arguments)}
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimLeft(s, "# ")
}
