package goals

// State is the persisted form of a Scheduler.
type State struct {
	Goals     []Goal `json:"goals"`
	Active    string `json:"active,omitempty"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// State captures the scheduler for persistence.
func (s *Scheduler) State() State {
	goals := s.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Goals: goals, Active: s.active, Completed: s.completed, Failed: s.failed}
}

// Restore replaces the backlog with st. If st holds more than one Active
// goal, only the one referenced by st.Active stays Active.
func (s *Scheduler) Restore(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.goals = make([]*Goal, 0, len(st.Goals))
	s.active = ""
	for _, g := range st.Goals {
		g := g.clone()
		if g.MaxAttempts <= 0 {
			g.MaxAttempts = DefaultMaxAttempts
		}
		if g.Status == Active {
			if s.active == "" && (st.Active == "" || st.Active == g.ID) {
				s.active = g.ID
			} else {
				g.Status = Paused
			}
		}
		s.goals = append(s.goals, &g)
	}
	s.completed = st.Completed
	s.failed = st.Failed
}
