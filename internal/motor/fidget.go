package motor

import "github.com/talgya/sentinel/internal/entropy"

// FidgetConfig controls idle fidget injection.
type FidgetConfig struct {
	LookRate  float64 `yaml:"look_rate" json:"look_rate"`   // Per-tick chance of a random look
	SneakRate float64 `yaml:"sneak_rate" json:"sneak_rate"` // Per-tick chance of a sneak pulse, players nearby only
	JumpRate  float64 `yaml:"jump_rate" json:"jump_rate"`   // Per-tick chance of a jump
	Cap       int     `yaml:"cap" json:"cap"`               // Fidgets stop when more than Cap commands are pending
	AFKTicks  int     `yaml:"afk_ticks" json:"afk_ticks"`   // Jump after this many idle ticks; 0 disables
}

// DefaultFidget returns the stock rates: roughly a glance every five
// seconds and a jump every minute at 20 ticks per second.
func DefaultFidget() FidgetConfig {
	return FidgetConfig{
		LookRate:  0.01,
		SneakRate: 0.002,
		JumpRate:  0.001,
		Cap:       5,
		AFKTicks:  1200,
	}
}

// fidgets rolls this tick's fidgets. Callers hold q.mu.
func (q *Queue) fidgets() {
	if q.slot.running() || len(q.pending) > q.fidget.Cap {
		return
	}
	if entropy.Chance(q.rng, q.fidget.LookRate) {
		q.pending = append(q.pending, RandomLook())
	}
	if q.nearbyPlayers && entropy.Chance(q.rng, q.fidget.SneakRate) {
		q.pending = append(q.pending, SneakPulse(4))
	}
	if entropy.Chance(q.rng, q.fidget.JumpRate) {
		q.pending = append(q.pending, Jump())
	}
	if q.fidget.AFKTicks > 0 && q.idle >= q.fidget.AFKTicks {
		q.pending = append(q.pending, Jump())
		q.idle = 0
	}
}
