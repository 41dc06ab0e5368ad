// Package goals maintains the agent's prioritized intention backlog.
//
// The backlog is small and goals are mutated in place, so selection is a
// stable linear scan rather than a heap: the lowest priority value wins and
// ties go to the goal submitted first.
package goals

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts bounds how many times a goal may be activated.
const DefaultMaxAttempts = 5

// ErrInvalidGoal is returned by Submit for structurally malformed goals.
var ErrInvalidGoal = errors.New("invalid goal")

// Priority orders goals; lower values are more urgent.
type Priority uint8

const (
	Critical   Priority = iota // Survive: eat, heal, escape
	High                       // Establish: shelter, basic tools
	Medium                     // Resource: mine, gather, farm
	Low                        // Build: structures, storage
	Background                 // Optimize: enchanting, automation, trade
	Social                     // Chat, help, collaborate
)

var priorityNames = [...]string{"critical", "high", "medium", "low", "background", "social"}

func (p Priority) String() string {
	if int(p) < len(priorityNames) {
		return priorityNames[p]
	}
	return "unknown"
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return int(p) < len(priorityNames)
}

// Status is a goal's lifecycle state.
type Status uint8

const (
	Pending Status = iota
	Active
	Paused // Interrupted or failed-but-retryable
	Completed
	Failed
	Abandoned
)

var statusNames = [...]string{"pending", "active", "paused", "completed", "failed", "abandoned"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Terminal reports whether the goal can never become Active again.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed || s == Abandoned
}

// Goal is a prioritized intention with a retry-bounded lifecycle.
type Goal struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Priority      Priority   `json:"priority"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	Parent        string     `json:"parent,omitempty"`
	Children      []string   `json:"children,omitempty"`
	Preconditions []string   `json:"preconditions,omitempty"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
}

// New builds a Pending goal with a fresh ID and the default retry budget.
func New(name, description string, p Priority) Goal {
	return Goal{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Priority:    p,
		Status:      Pending,
		CreatedAt:   time.Now(),
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Actionable reports whether the goal is Pending or Active.
func (g *Goal) Actionable() bool {
	return g.Status == Pending || g.Status == Active
}

// Overdue reports whether the goal has a deadline before now.
func (g *Goal) Overdue(now time.Time) bool {
	return g.Deadline != nil && now.After(*g.Deadline)
}

func (g Goal) clone() Goal {
	if g.Children != nil {
		g.Children = append([]string(nil), g.Children...)
	}
	if g.Preconditions != nil {
		g.Preconditions = append([]string(nil), g.Preconditions...)
	}
	if g.Deadline != nil {
		d := *g.Deadline
		g.Deadline = &d
	}
	return g
}
