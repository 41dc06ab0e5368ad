package goals

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Scheduler owns the goal backlog. All methods are safe for concurrent use;
// each is a single short critical section.
type Scheduler struct {
	mu        sync.Mutex
	goals     []*Goal // Insertion order is the tie-breaker
	active    string  // ID of the Active goal, "" if none
	completed int
	failed    int
	now       func() time.Time
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{now: time.Now}
}

// Seed loads the initial survival backlog.
func (s *Scheduler) Seed() {
	seeds := []struct {
		name, desc string
		p          Priority
	}{
		{"Survive the first night", "Gather wood, craft basic tools, build a shelter", Critical},
		{"Craft stone tools", "Stone pickaxe, axe and sword", High},
		{"Find food", "Hunt animals or collect seeds for a farm", Critical},
		{"Establish a base", "Build a basic house with bed, chest and furnace", High},
		{"Mine iron", "Go down a cave or strip mine for iron", Medium},
		{"Start a wheat farm", "Plant at least 9x9 wheat next to water", Medium},
		{"Find diamonds", "Strip mine at y=11 until diamonds show up", Low},
		{"Enchanting", "Enchanting table surrounded by bookshelves", Background},
	}
	for _, sd := range seeds {
		if _, err := s.Submit(New(sd.name, sd.desc, sd.p)); err != nil {
			slog.Warn("seed goal rejected", "name", sd.name, "error", err)
		}
	}
}

// Submit appends a goal to the backlog as Pending and returns its ID.
// There is no deduplication.
func (s *Scheduler) Submit(g Goal) (string, error) {
	if strings.TrimSpace(g.Name) == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidGoal)
	}
	if !g.Priority.Valid() {
		return "", fmt.Errorf("%w: priority %d", ErrInvalidGoal, g.Priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g = s.normalize(g)
	g.Status = Pending
	s.goals = append(s.goals, &g)
	slog.Info("goal added", "name", g.Name, "priority", g.Priority)
	return g.ID, nil
}

// AddSubgoal submits g as a child of parentID.
func (s *Scheduler) AddSubgoal(parentID string, g Goal) (string, error) {
	if strings.TrimSpace(g.Name) == "" || !g.Priority.Valid() {
		return "", fmt.Errorf("%w: malformed subgoal", ErrInvalidGoal)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.find(parentID)
	if parent == nil {
		return "", fmt.Errorf("%w: unknown parent %q", ErrInvalidGoal, parentID)
	}
	g = s.normalize(g)
	g.Status = Pending
	g.Parent = parent.ID
	parent.Children = append(parent.Children, g.ID)
	s.goals = append(s.goals, &g)
	return g.ID, nil
}

// Preempt installs an emergency goal: Critical, single attempt, Active
// immediately. Any Active goal is demoted to Paused.
func (s *Scheduler) Preempt(name, description string) Goal {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.demoteActive()

	g := s.normalize(New(name, description, Critical))
	g.MaxAttempts = 1
	g.Attempts = 1
	g.Status = Active
	s.goals = append(s.goals, &g)
	s.active = g.ID

	slog.Warn("emergency goal", "name", g.Name)
	return g.clone()
}

// SelectNext pauses the Active goal, if any, then activates the eligible
// goal with the lowest priority value. Returns false when nothing is eligible.
func (s *Scheduler) SelectNext() (Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.demoteActive()
	s.retireExhausted()

	var next *Goal
	for _, g := range s.goals {
		if !selectable(g) {
			continue
		}
		if next == nil || g.Priority < next.Priority {
			next = g
		}
	}
	if next == nil {
		return Goal{}, false
	}

	next.Status = Active
	next.Attempts++
	s.active = next.ID
	slog.Debug("goal selected", "name", next.Name, "attempt", next.Attempts, "max", next.MaxAttempts)
	return next.clone(), true
}

// PeekCurrent returns the goal that is or would be current, without
// changing any state.
func (s *Scheduler) PeekCurrent() (Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g := s.find(s.active); g != nil && g.Actionable() {
		return g.clone(), true
	}
	var best *Goal
	for _, g := range s.goals {
		if !g.Actionable() {
			continue
		}
		if best == nil || g.Priority < best.Priority {
			best = g
		}
	}
	if best == nil {
		return Goal{}, false
	}
	return best.clone(), true
}

// Active returns the Active goal, if any.
func (s *Scheduler) Active() (Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g := s.find(s.active); g != nil && g.Status == Active {
		return g.clone(), true
	}
	return Goal{}, false
}

// Complete marks the Active goal Completed.
func (s *Scheduler) Complete() (Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.find(s.active)
	s.active = ""
	if g == nil || g.Status != Active {
		return Goal{}, false
	}
	g.Status = Completed
	s.completed++
	slog.Info("goal completed", "name", g.Name)
	return g.clone(), true
}

// Fail records a failed attempt on the Active goal: Failed once its attempts
// are exhausted, Paused otherwise.
func (s *Scheduler) Fail() (Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.find(s.active)
	s.active = ""
	if g == nil || g.Status != Active {
		return Goal{}, false
	}
	if g.Attempts >= g.MaxAttempts {
		g.Status = Failed
		s.failed++
		slog.Warn("goal failed permanently", "name", g.Name, "attempts", g.Attempts)
	} else {
		g.Status = Paused
		slog.Info("goal paused", "name", g.Name, "attempt", g.Attempts, "max", g.MaxAttempts)
	}
	return g.clone(), true
}

// Abandon retires a non-terminal goal without counting it as failed.
func (s *Scheduler) Abandon(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.find(id)
	if g == nil || g.Status.Terminal() {
		return false
	}
	g.Status = Abandoned
	if s.active == id {
		s.active = ""
	}
	return true
}

// AbandonOverdue abandons every non-terminal goal whose deadline has passed
// and returns how many were abandoned.
func (s *Scheduler) AbandonOverdue(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, g := range s.goals {
		if g.Status.Terminal() || !g.Overdue(now) {
			continue
		}
		g.Status = Abandoned
		if s.active == g.ID {
			s.active = ""
		}
		n++
		slog.Info("goal abandoned past deadline", "name", g.Name)
	}
	return n
}

// Snapshot returns copies of all goals in insertion order.
func (s *Scheduler) Snapshot() []Goal {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Goal, len(s.goals))
	for i, g := range s.goals {
		out[i] = g.clone()
	}
	return out
}

// Stats returns the completed and failed counters.
func (s *Scheduler) Stats() (completed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed, s.failed
}

// Summary describes the backlog for a language-model context window.
func (s *Scheduler) Summary() string {
	current, hasCurrent := s.PeekCurrent()

	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	if hasCurrent {
		fmt.Fprintf(&b, "Current goal: %s (%s)\n", current.Name, current.Description)
	}
	shown := 0
	for _, g := range s.goals {
		if !g.Actionable() && g.Status != Paused {
			continue
		}
		if shown == 0 {
			b.WriteString("Upcoming goals:\n")
		}
		fmt.Fprintf(&b, "  - %s (%s)\n", g.Name, g.Priority)
		shown++
		if shown == 5 {
			break
		}
	}
	fmt.Fprintf(&b, "Completed: %d | Failed: %d", s.completed, s.failed)
	return b.String()
}

// normalize fills defaults. Callers hold s.mu.
func (s *Scheduler) normalize(g Goal) Goal {
	g = g.clone()
	if g.ID == "" || s.find(g.ID) != nil {
		g.ID = New("", "", g.Priority).ID
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	if g.MaxAttempts <= 0 {
		g.MaxAttempts = DefaultMaxAttempts
	}
	return g
}

// demoteActive pauses every Active goal. The backlog never holds more than
// one, but scanning keeps the invariant even after a Restore.
func (s *Scheduler) demoteActive() {
	for _, g := range s.goals {
		if g.Status == Active {
			g.Status = Paused
		}
	}
	s.active = ""
}

// retireExhausted fails Paused goals whose attempt budget is spent; they can
// never be selected again.
func (s *Scheduler) retireExhausted() {
	for _, g := range s.goals {
		if g.Status == Paused && g.Attempts >= g.MaxAttempts {
			g.Status = Failed
			s.failed++
			slog.Info("goal failed after last attempt", "name", g.Name, "attempts", g.Attempts)
		}
	}
}

func (s *Scheduler) find(id string) *Goal {
	if id == "" {
		return nil
	}
	for _, g := range s.goals {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func selectable(g *Goal) bool {
	switch g.Status {
	case Pending:
		return true
	case Paused:
		return g.Attempts < g.MaxAttempts
	}
	return false
}
