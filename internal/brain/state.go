package brain

import (
	"github.com/talgya/sentinel/internal/motor"
	"github.com/talgya/sentinel/internal/persistence"
	"github.com/talgya/sentinel/internal/threat"
)

// State captures every persisted subsystem.
func (b *Brain) State() persistence.State {
	return persistence.State{
		SavedAt:     b.now(),
		Goals:       b.Goals.State(),
		Ledger:      b.Ledger.Entries(),
		TotalTrades: b.Ledger.TotalTrades(),
		Profiles:    b.Social.Profiles(),
		Memory:      b.Memory.Snapshot(),
	}
}

// Restore loads st into the subsystems.
func (b *Brain) Restore(st persistence.State) {
	b.Goals.Restore(st.Goals)
	b.Ledger.Restore(st.Ledger, st.TotalTrades)
	b.Social.Restore(st.Profiles)
	b.Memory.Restore(st.Memory)
}

// Status is a point-in-time view for the status API.
type Status struct {
	Name        string          `json:"name"`
	Tick        uint64          `json:"tick"`
	Goal        string          `json:"goal,omitempty"`
	Completed   int             `json:"goals_completed"`
	Failed      int             `json:"goals_failed"`
	Motor       motor.Stats     `json:"motor"`
	Threats     []threat.Record `json:"threats"`
	Accuracy    float64         `json:"threat_accuracy"`
	TotalTrades int             `json:"total_trades"`
	Replies     int             `json:"replies"`
	Episodes    int             `json:"episodes"`
	Emergency   bool            `json:"emergency"`
	Mood        string          `json:"mood"`
	Dreams      int             `json:"dreams"`
}

// Status reports the brain's current state.
func (b *Brain) Status() Status {
	completed, failed := b.Goals.Stats()
	st := Status{
		Name:        b.name,
		Completed:   completed,
		Failed:      failed,
		Motor:       b.Motor.Stats(),
		Threats:     b.LastThreats(),
		Accuracy:    b.Threats.Accuracy(),
		TotalTrades: b.Ledger.TotalTrades(),
		Episodes:    b.Memory.Len(),
	}
	if g, ok := b.Goals.PeekCurrent(); ok {
		st.Goal = g.Name
	}

	b.mu.Lock()
	st.Tick = b.tick
	st.Replies = b.replies
	st.Emergency = b.emergency
	st.Mood = b.mood.mood.String()
	st.Dreams = b.dreams
	b.mu.Unlock()
	return st
}
