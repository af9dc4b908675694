package task

// callStack is the set of task names currently in the resolution path
// (spec.md §3). It is never shared across threads by mutable reference:
// every parallel worker and every recursive call gets its own clone.
type callStack map[string]bool

func newCallStack() callStack { return callStack{} }

func (s callStack) clone() callStack {
	c := make(callStack, len(s)+1)
	for k := range s {
		c[k] = true
	}
	return c
}

// push returns a cloned stack with name added, or a CycleError if name is
// already present (spec.md §4.2 step 1).
func (s callStack) push(name string) (callStack, error) {
	if s[name] {
		return nil, &CycleError{Task: name}
	}
	next := s.clone()
	next[name] = true
	return next, nil
}
