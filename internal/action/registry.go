package action

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Registry holds the actions available in a workspace. It is built once and
// only read afterwards.
type Registry struct {
	actions map[string]Action
}

// NewRegistry builds a registry, rejecting invalid specs and duplicate names.
func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		spec := a.Spec()
		if err := validate.Struct(spec); err != nil {
			return nil, fmt.Errorf("action %q: %w", spec.Name, err)
		}
		if spec.MaxArgs > 0 && spec.MaxArgs < spec.MinArgs {
			return nil, fmt.Errorf("action %q: max args %d below min args %d", spec.Name, spec.MaxArgs, spec.MinArgs)
		}
		if _, ok := r.actions[spec.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAction, spec.Name)
		}
		r.actions[spec.Name] = a
	}
	for name, a := range r.actions {
		c, ok := a.(compound)
		if !ok {
			continue
		}
		if err := r.checkSteps(name, nil); err != nil {
			return nil, err
		}
		c.bind(r)
	}
	return r, nil
}

// checkSteps verifies that every step of name exists and that no action is
// its own step, directly or through other compound actions.
func (r *Registry) checkSteps(name string, path []string) error {
	if slices.Contains(path, name) {
		return fmt.Errorf("action %q: steps form a cycle: %s", path[0], strings.Join(append(path, name), " -> "))
	}
	a, ok := r.actions[name]
	if !ok {
		return fmt.Errorf("action %q: step %w: %s", path[len(path)-1], ErrUnknownAction, name)
	}
	path = append(slices.Clone(path), name)
	for _, step := range a.Spec().Steps {
		if err := r.checkSteps(step, path); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (Action, error) {
	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return a, nil
}

// All returns every action sorted by name.
func (r *Registry) All() []Action {
	out := make([]Action, 0, len(r.actions))
	for _, a := range r.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Spec().Name < out[j].Spec().Name
	})
	return out
}

// Len returns the number of registered actions.
func (r *Registry) Len() int { return len(r.actions) }
