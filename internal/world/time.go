package world

// TicksPerGameDay is the length of one in-game day in game ticks.
const TicksPerGameDay = 24000

// TimeOfDay is a coarse phase of the in-game day.
type TimeOfDay uint8

const (
	Morning   TimeOfDay = iota // 0–6000
	Afternoon                  // 6001–12000
	Evening                    // 12001–13000
	Night                      // 13001–23000
	Dawn                       // 23001–23999
)

// PhaseOf maps absolute game ticks to a phase.
func PhaseOf(dayTime int64) TimeOfDay {
	t := dayTime % TicksPerGameDay
	if t < 0 {
		t += TicksPerGameDay
	}
	switch {
	case t <= 6000:
		return Morning
	case t <= 12000:
		return Afternoon
	case t <= 13000:
		return Evening
	case t <= 23000:
		return Night
	default:
		return Dawn
	}
}

// Dangerous reports whether hostile mobs spawn freely in this phase.
func (t TimeOfDay) Dangerous() bool {
	return t == Evening || t == Night
}

func (t TimeOfDay) String() string {
	switch t {
	case Morning:
		return "morning"
	case Afternoon:
		return "afternoon"
	case Evening:
		return "evening"
	case Night:
		return "night"
	case Dawn:
		return "dawn"
	}
	return "unknown"
}
