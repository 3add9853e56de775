package action

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aidanlsb/kmd/internal/model"
)

// compound actions run other registered actions. The registry binds itself
// to them once every action is known.
type compound interface {
	bind(r *Registry)
}

// Sequence runs its steps in order, each on the previous step's outputs.
// The last step's outputs are the result, derived from the sequence's
// inputs; new items from earlier steps are reported as intermediate.
type Sequence struct {
	spec Spec
	reg  *Registry
}

// NewSequence builds a sequence over spec.Steps.
func NewSequence(spec Spec) (*Sequence, error) {
	if err := checkSteps(spec); err != nil {
		return nil, err
	}
	return &Sequence{spec: compoundDefaults(spec)}, nil
}

func (s *Sequence) Spec() Spec { return s.spec }

func (s *Sequence) bind(r *Registry) { s.reg = r }

func (s *Sequence) Run(ctx context.Context, items []*model.Item) (*Result, error) {
	if s.reg == nil {
		return nil, fmt.Errorf("%s: not registered", s.spec.Name)
	}
	original := storePaths(items)

	var intermediate []*model.Item
	cur := items
	last := len(s.spec.Steps) - 1
	for i, name := range s.spec.Steps {
		res, err := runStep(ctx, s.reg, name, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: step %d/%d: %w", s.spec.Name, i+1, len(s.spec.Steps), err)
		}
		intermediate = append(intermediate, res.Intermediate...)
		if i < last {
			intermediate = append(intermediate, res.Items...)
		}
		cur = res.Items
	}

	final := make([]*model.Item, len(cur))
	for i, it := range cur {
		if it.StorePath != "" && slices.Contains(original, it.StorePath) {
			final[i] = it
			continue
		}
		cp := it.Clone()
		cp.Relations.DerivedFrom = slices.Clone(original)
		final[i] = cp
	}
	return &Result{
		Items:         final,
		Intermediate:  dropIntermediate(intermediate, append(slices.Clone(cur), items...)),
		ReplacesInput: s.spec.ReplacesInput,
	}, nil
}

// Combiner joins the outputs of a combo's steps for one input into one body.
type Combiner func(parts []*model.Item) (body string, format model.Format, err error)

// Combo runs every step on each input and combines the outputs for that
// input into one item derived from it.
type Combo struct {
	spec    Spec
	combine Combiner
	reg     *Registry
}

// NewCombo builds a combo over spec.Steps. A nil combiner joins the parts
// as paragraphs.
func NewCombo(spec Spec, combine Combiner) (*Combo, error) {
	if err := checkSteps(spec); err != nil {
		return nil, err
	}
	if combine == nil {
		combine = Paragraphs
	}
	return &Combo{spec: compoundDefaults(spec), combine: combine}, nil
}

func (c *Combo) Spec() Spec { return c.spec }

func (c *Combo) bind(r *Registry) { c.reg = r }

func (c *Combo) Run(ctx context.Context, items []*model.Item) (*Result, error) {
	if c.reg == nil {
		return nil, fmt.Errorf("%s: not registered", c.spec.Name)
	}
	var intermediate []*model.Item
	out := make([]*model.Item, 0, len(items))
	for _, it := range items {
		var parts []*model.Item
		for i, name := range c.spec.Steps {
			res, err := runStep(ctx, c.reg, name, []*model.Item{it})
			if err != nil {
				return nil, fmt.Errorf("%s: part %d/%d: %w", c.spec.Name, i+1, len(c.spec.Steps), err)
			}
			intermediate = append(intermediate, res.Intermediate...)
			parts = append(parts, res.Items...)
		}
		intermediate = append(intermediate, parts...)

		body, format, err := c.combine(parts)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", c.spec.Name, label(it), err)
		}
		typ := c.spec.OutputType
		if typ == "" {
			typ = model.TypeNote
		}
		out = append(out, Derive(it, c.spec.Name,
			model.WithType(typ),
			model.WithFormat(format),
			model.WithBody(body),
		))
	}
	return &Result{
		Items:         out,
		Intermediate:  dropIntermediate(intermediate, items),
		ReplacesInput: c.spec.ReplacesInput,
	}, nil
}

// Paragraphs joins part bodies with blank lines, in the first part's format.
func Paragraphs(parts []*model.Item) (string, model.Format, error) {
	bodies, err := partBodies(parts)
	if err != nil {
		return "", "", err
	}
	return strings.Join(bodies, "\n\n") + "\n", parts[0].Format, nil
}

// Divs wraps the i-th part in a div with the i-th class, giving Markdown
// with HTML sections. Parts beyond the classes are left unwrapped.
func Divs(classes ...string) Combiner {
	return func(parts []*model.Item) (string, model.Format, error) {
		bodies, err := partBodies(parts)
		if err != nil {
			return "", "", err
		}
		for i := range bodies {
			if i < len(classes) {
				bodies[i] = fmt.Sprintf("<div class=%q>\n\n%s\n\n</div>", classes[i], bodies[i])
			}
		}
		return strings.Join(bodies, "\n\n") + "\n", model.FormatMdHTML, nil
	}
}

func partBodies(parts []*model.Item) ([]string, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("no outputs to combine")
	}
	bodies := make([]string, len(parts))
	for i, p := range parts {
		b := strings.TrimSpace(p.Body)
		if b == "" {
			return nil, fmt.Errorf("output %q has no body to combine", p.SlugSource())
		}
		bodies[i] = b
	}
	return bodies, nil
}

func checkSteps(spec Spec) error {
	if len(spec.Steps) < 2 {
		return fmt.Errorf("action %q needs at least two steps, got %d", spec.Name, len(spec.Steps))
	}
	return nil
}

func compoundDefaults(spec Spec) Spec {
	spec.Steps = slices.Clone(spec.Steps)
	if spec.MinArgs == 0 {
		spec.MinArgs = 1
	}
	if spec.Implementation == "" {
		spec.Implementation = Builtin
	}
	return spec
}

// runStep checks and runs one registered action.
func runStep(ctx context.Context, reg *Registry, name string, items []*model.Item) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := CheckInputs(a.Spec(), items); err != nil {
		return nil, err
	}
	res, err := a.Run(ctx, items)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &Result{}
	}
	return res, nil
}

// dropIntermediate removes duplicates and items that are still in use
// (inputs, final outputs) from intermediate.
func dropIntermediate(intermediate, keep []*model.Item) []*model.Item {
	seen := make(map[*model.Item]bool, len(intermediate)+len(keep))
	for _, it := range keep {
		seen[it] = true
	}
	var out []*model.Item
	for _, it := range intermediate {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
