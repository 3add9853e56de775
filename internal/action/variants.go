package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/template"
)

// RunFunc is the body of a builtin action.
type RunFunc func(ctx context.Context, items []*model.Item) ([]*model.Item, error)

// Func is an action implemented by a Go function.
type Func struct {
	spec Spec
	fn   RunFunc
}

// NewFunc wraps fn as an action.
func NewFunc(spec Spec, fn RunFunc) *Func {
	if spec.Implementation == "" {
		spec.Implementation = Builtin
	}
	return &Func{spec: spec, fn: fn}
}

func (f *Func) Spec() Spec { return f.spec }

func (f *Func) Run(ctx context.Context, items []*model.Item) (*Result, error) {
	out, err := f.fn(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.spec.Name, err)
	}
	return &Result{Items: out, ReplacesInput: f.spec.ReplacesInput}, nil
}

// Request is one completion call.
type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// LLM is an action that fills a prompt template from each input and stores
// the completion as a new item derived from that input.
type LLM struct {
	spec      Spec
	completer Completer
	maxTokens int

	// Now is the clock used for template dates.
	Now func() time.Time
}

// NewLLM builds an LLM action. The spec must carry a template and a model.
func NewLLM(spec Spec, completer Completer, maxTokens int) (*LLM, error) {
	if strings.TrimSpace(spec.Template) == "" {
		return nil, fmt.Errorf("action %q has no template", spec.Name)
	}
	if spec.Model == "" {
		return nil, fmt.Errorf("action %q has no model", spec.Name)
	}
	if spec.MinArgs == 0 {
		spec.MinArgs = 1
	}
	if spec.Implementation == "" {
		spec.Implementation = Builtin
	}
	return &LLM{spec: spec, completer: completer, maxTokens: maxTokens, Now: time.Now}, nil
}

func (l *LLM) Spec() Spec { return l.spec }

func (l *LLM) Run(ctx context.Context, items []*model.Item) (*Result, error) {
	if l.completer == nil {
		return nil, fmt.Errorf("%s: no completion backend configured", l.spec.Name)
	}
	out := make([]*model.Item, 0, len(items))
	for _, it := range items {
		derived, err := l.runItem(ctx, it)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.spec.Name, err)
		}
		out = append(out, derived)
	}
	return &Result{Items: out, ReplacesInput: l.spec.ReplacesInput}, nil
}

// runItem completes the prompt for one input and returns the derived item.
func (l *LLM) runItem(ctx context.Context, it *model.Item) (*model.Item, error) {
	vars := template.NewVariables([]*model.Item{it}, l.Now())

	text, err := l.completer.Complete(ctx, Request{
		Model:     l.spec.Model,
		System:    template.Apply(l.spec.SystemMessage, vars),
		Prompt:    template.Apply(l.spec.Template, vars),
		MaxTokens: l.maxTokens,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty completion for %s", label(it))
	}

	title := template.Apply(l.spec.TitleTemplate, vars)
	if title == "" {
		title = it.Title
	}

	typ := l.spec.OutputType
	if typ == "" {
		typ = it.Type
	}
	return Derive(it, l.spec.Name,
		model.WithType(typ),
		model.WithFormat(model.FormatMarkdown),
		model.WithTitle(title),
		model.WithBody(text),
	), nil
}

// Derive returns a new item produced from it by the named action. Saved
// inputs are linked through derived_from; unsaved ones (intermediate items
// of a sequence) get a plain copy that the sequence links afterwards.
func Derive(it *model.Item, name string, overrides ...model.Override) *model.Item {
	overrides = append(overrides, model.WithSource(&model.Operation{
		ActionName: name,
		Arguments:  storePaths([]*model.Item{it}),
	}))
	cp, err := model.DerivedCopy(it, overrides...)
	if errors.Is(err, model.ErrNoStorePath) {
		return model.CopyWith(it, overrides...)
	}
	return cp
}

func storePaths(items []*model.Item) []string {
	var out []string
	for _, it := range items {
		if it.StorePath != "" {
			out = append(out, it.StorePath)
		}
	}
	return out
}
