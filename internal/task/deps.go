package task

import "fmt"

// ResolveOrder returns the dependency-first execution order for name
// without running anything, for the `p deps` diagnostic command. It walks
// the same call-stack cycle check as Run.
func (r *Runner) ResolveOrder(name string) ([]string, error) {
	var order []string
	seen := map[string]bool{}
	if err := r.resolveOrder(name, newCallStack(), seen, &order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Runner) resolveOrder(name string, stack callStack, seen map[string]bool, order *[]string) error {
	t, ok := r.Cfg.Tasks[name]
	if !ok {
		return &NotFoundError{Task: name}
	}
	stack, err := stack.push(name)
	if err != nil {
		return err
	}
	for _, dep := range t.Deps {
		if err := r.resolveOrder(dep, stack, seen, order); err != nil {
			return err
		}
	}
	if !seen[name] {
		seen[name] = true
		*order = append(*order, name)
	}
	return nil
}

// Validate reports the first cycle reachable from name, if any, without
// running anything.
func (r *Runner) Validate(name string) error {
	_, err := r.ResolveOrder(name)
	if err != nil {
		return fmt.Errorf("task '%s': %w", name, err)
	}
	return nil
}
