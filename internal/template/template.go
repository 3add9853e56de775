// Package template provides variable substitution for action prompts and
// output titles.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aidanlsb/kmd/internal/model"
)

const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02T15:04"

	// BodySeparator joins the bodies of several items in {{body}}.
	BodySeparator = "\n\n---\n\n"
)

// Variables holds the available template variables for substitution.
type Variables struct {
	Title       string
	URL         string
	Description string
	Type        string
	Body        string
	// Count is the number of input items.
	Count    int
	Date     string
	Datetime string
	Year     string
	Month    string
	Day      string
	Weekday  string
	// Fields are the first item's extra metadata values, as {{field.X}}.
	Fields map[string]string
}

// NewVariables builds variables for items at time now. Scalar fields come
// from the first item; {{body}} joins every item's body.
func NewVariables(items []*model.Item, now time.Time) *Variables {
	v := &Variables{
		Count:    len(items),
		Date:     now.Format(DateLayout),
		Datetime: now.Format(DatetimeLayout),
		Year:     now.Format("2006"),
		Month:    now.Format("01"),
		Day:      now.Format("02"),
		Weekday:  now.Weekday().String(),
		Fields:   map[string]string{},
	}
	if len(items) == 0 {
		return v
	}

	first := items[0]
	v.Title = first.Title
	v.URL = first.URL
	v.Description = first.Description
	v.Type = string(first.Type)
	for k, val := range first.Extra {
		if s, ok := val.(string); ok {
			v.Fields[k] = s
		} else {
			v.Fields[k] = fmt.Sprint(val)
		}
	}

	bodies := make([]string, 0, len(items))
	for _, it := range items {
		if b := strings.TrimSpace(it.Body); b != "" {
			bodies = append(bodies, b)
		}
	}
	v.Body = strings.Join(bodies, BodySeparator)
	return v
}

var placeholder = regexp.MustCompile(`\\?\{\{([a-z_.A-Z0-9]+)\}\}`)

// Apply substitutes template variables in the content in a single pass, so
// substituted values are never rescanned.
// Variables use {{name}} syntax. Unknown variables are left as-is.
// Escaped variables \{{name}} are converted to literal {{name}}.
func Apply(content string, vars *Variables) string {
	if content == "" || vars == nil {
		return content
	}

	values := map[string]string{
		"title":       vars.Title,
		"url":         vars.URL,
		"description": vars.Description,
		"type":        vars.Type,
		"body":        vars.Body,
		"count":       fmt.Sprint(vars.Count),
		"date":        vars.Date,
		"datetime":    vars.Datetime,
		"year":        vars.Year,
		"month":       vars.Month,
		"day":         vars.Day,
		"weekday":     vars.Weekday,
	}

	return placeholder.ReplaceAllStringFunc(content, func(m string) string {
		if strings.HasPrefix(m, `\`) {
			return m[1:]
		}
		name := m[2 : len(m)-2]
		if v, ok := values[name]; ok {
			return v
		}
		if field, ok := strings.CutPrefix(name, "field."); ok {
			if v, ok := vars.Fields[field]; ok {
				return v
			}
		}
		return m
	})
}
