package rv32

// Scheduler round-robins Step calls across a fixed set of contexts
// sharing one AddressSpace. It is the core-resident replacement for
// letting every host driver reimplement its own run loop: construct one,
// add contexts, and call Run or StepOnce.
type Scheduler struct {
	mem      *AddressSpace
	contexts []*Context
	cursor   int
}

// NewScheduler creates a scheduler stepping contexts against mem.
func NewScheduler(mem *AddressSpace) *Scheduler {
	return &Scheduler{mem: mem}
}

// Add registers c with the scheduler. Contexts are visited in the order
// they were added, wrapping around.
func (s *Scheduler) Add(c *Context) {
	s.contexts = append(s.contexts, c)
}

// Len reports how many contexts the scheduler holds, halted or not.
func (s *Scheduler) Len() int { return len(s.contexts) }

// Runnable reports whether at least one managed context has not halted.
func (s *Scheduler) Runnable() bool {
	for _, c := range s.contexts {
		if !c.Halted {
			return true
		}
	}
	return false
}

// StepOnce steps exactly one runnable context once: the current context
// is given the turn if it hasn't halted, otherwise the next non-halted
// context in round-robin order is chosen. It returns the context that
// ran and the Outcome of its Step, or (nil, Outcome{}) if every context
// has halted.
func (s *Scheduler) StepOnce() (*Context, Outcome) {
	n := len(s.contexts)
	for i := 0; i < n; i++ {
		idx := (s.cursor + i) % n
		c := s.contexts[idx]
		if c.Halted {
			continue
		}
		outcome := Step(c, s.mem)
		s.cursor = idx
		if outcome.Kind == OutcomeYielded || outcome.Kind == OutcomeHalted {
			s.cursor = (idx + 1) % n
		}
		return c, outcome
	}
	return nil, Outcome{}
}

// Run drives StepOnce until every context has halted or maxSteps calls
// have been made, whichever comes first, returning the total number of
// Step calls made across all contexts. maxSteps <= 0 means unbounded.
// The bound exists so a guest that never yields or halts can't hang a
// host driver forever; it never inspects individual Outcomes, callers
// that need per-step visibility should set Context.OnRetire instead or
// drive StepOnce directly.
func (s *Scheduler) Run(maxSteps int) uint64 {
	var steps uint64
	for s.Runnable() {
		if maxSteps > 0 && uint64(maxSteps) <= steps {
			break
		}
		s.StepOnce()
		steps++
	}
	return steps
}
