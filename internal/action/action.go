// Package action defines the contract every action satisfies, the checks
// run before an action touches its inputs, and the registry actions are
// looked up in.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aidanlsb/kmd/internal/model"
)

var (
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrUnknownAction      = errors.New("unknown action")
	ErrDuplicateAction    = errors.New("duplicate action")
)

// Implementation says where an action comes from.
type Implementation string

const (
	Builtin Implementation = "builtin"
	User    Implementation = "user"
)

// Spec describes an action. Template fields are only used by LLM actions.
type Spec struct {
	Name           string `validate:"required"`
	Description    string
	Implementation Implementation `validate:"oneof=builtin user"`

	Model         string
	SystemMessage string
	Template      string
	TitleTemplate string
	// OutputType is the type of items the action creates. LLM actions keep
	// the input's type when it is empty.
	OutputType model.ItemType

	// MinArgs and MaxArgs bound the number of inputs. MaxArgs 0 means no limit.
	MinArgs int `validate:"gte=0"`
	MaxArgs int `validate:"gte=0"`

	Precondition Precondition

	// Steps names the actions a sequence or combo runs.
	Steps []string

	// ReplacesInput archives inputs that are not among the outputs.
	ReplacesInput bool
	// Terminal actions produce exports that are not meant to be chained.
	Terminal bool
}

// Result is what an action returns. Items may include inputs passed through
// unchanged (same store path) as well as new or updated items.
type Result struct {
	Items []*model.Item
	// Intermediate holds items produced along the way by compound actions.
	// New ones are saved and archived in the same commit; updates to saved
	// items are kept.
	Intermediate  []*model.Item
	ReplacesInput bool
}

// Action is a named transformation of items.
type Action interface {
	Spec() Spec
	Run(ctx context.Context, items []*model.Item) (*Result, error)
}

// PreconditionError reports which input failed which check.
type PreconditionError struct {
	Action string
	Item   string
	Reason string
}

func (e *PreconditionError) Error() string {
	if e.Item == "" {
		return fmt.Sprintf("%s: %s", e.Action, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Action, e.Item, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return ErrPreconditionFailed }

// CheckInputs validates the input count and the precondition on every item.
// It never modifies items.
func CheckInputs(spec Spec, items []*model.Item) error {
	n := len(items)
	if n < spec.MinArgs {
		return &PreconditionError{Action: spec.Name, Reason: fmt.Sprintf("needs at least %d input(s), got %d", spec.MinArgs, n)}
	}
	if spec.MaxArgs > 0 && n > spec.MaxArgs {
		return &PreconditionError{Action: spec.Name, Reason: fmt.Sprintf("takes at most %d input(s), got %d", spec.MaxArgs, n)}
	}
	if spec.Precondition.Test == nil {
		return nil
	}
	for _, it := range items {
		if !spec.Precondition.Test(it) {
			return &PreconditionError{Action: spec.Name, Item: label(it), Reason: "does not satisfy " + spec.Precondition.Name}
		}
	}
	return nil
}

func label(it *model.Item) string {
	if it.StorePath != "" {
		return it.StorePath
	}
	if it.URL != "" {
		return it.URL
	}
	return it.SlugSource()
}

// Precondition is a named test every input must pass.
type Precondition struct {
	Name string
	Test func(*model.Item) bool
}

var (
	HasURL = Precondition{Name: "has_url", Test: func(i *model.Item) bool {
		return i.URL != ""
	}}
	HasBody = Precondition{Name: "has_body", Test: func(i *model.Item) bool {
		return strings.TrimSpace(i.Body) != ""
	}}
	IsMarkdown = Precondition{Name: "is_markdown", Test: func(i *model.Item) bool {
		return i.Format.IsMarkdown()
	}}
	IsHTML = Precondition{Name: "is_html", Test: func(i *model.Item) bool {
		return i.Format == model.FormatHTML || i.Format == model.FormatMdHTML
	}}
	IsText = Precondition{Name: "is_text", Test: func(i *model.Item) bool {
		return i.IsText()
	}}
)

// And combines preconditions; all must hold.
func And(ps ...Precondition) Precondition {
	return Precondition{
		Name: joinNames(ps, " and "),
		Test: func(i *model.Item) bool {
			for _, p := range ps {
				if p.Test != nil && !p.Test(i) {
					return false
				}
			}
			return true
		},
	}
}

// Or combines preconditions; at least one must hold. An empty precondition
// always holds.
func Or(ps ...Precondition) Precondition {
	return Precondition{
		Name: joinNames(ps, " or "),
		Test: func(i *model.Item) bool {
			for _, p := range ps {
				if p.Test == nil || p.Test(i) {
					return true
				}
			}
			return false
		},
	}
}

// Not inverts p.
func Not(p Precondition) Precondition {
	return Precondition{
		Name: "not " + wrapName(p.Name),
		Test: func(i *model.Item) bool {
			return p.Test != nil && !p.Test(i)
		},
	}
}

func joinNames(ps []Precondition, sep string) string {
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		names = append(names, wrapName(p.Name))
	}
	return strings.Join(names, sep)
}

func wrapName(name string) string {
	if strings.Contains(name, " ") {
		return "(" + name + ")"
	}
	return name
}

// PreconditionByName resolves a precondition named in settings. The empty
// name means no precondition.
func PreconditionByName(name string) (Precondition, error) {
	switch name {
	case "":
		return Precondition{}, nil
	case HasURL.Name:
		return HasURL, nil
	case HasBody.Name:
		return HasBody, nil
	case IsMarkdown.Name:
		return IsMarkdown, nil
	case IsHTML.Name:
		return IsHTML, nil
	case IsText.Name:
		return IsText, nil
	}
	return Precondition{}, fmt.Errorf("unknown precondition %q", name)
}
