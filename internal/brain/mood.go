package brain

import (
	"fmt"
	"log/slog"
)

// Mood colors chat replies and decides which daydreams are on the table.
type Mood uint8

const (
	Chill Mood = iota
	Hyped
	Grumpy
	Focused
	Scared
	Annoyed
	Generous
	Suspicious
)

var moodNames = [...]string{"chill", "hyped", "grumpy", "focused", "scared", "annoyed", "generous", "suspicious"}

func (m Mood) String() string {
	if int(m) < len(moodNames) {
		return moodNames[m]
	}
	return "unknown"
}

func (m Mood) describe() string {
	switch m {
	case Hyped:
		return "hyped, excited"
	case Grumpy:
		return "grumpy, short-tempered"
	case Focused:
		return "focused, does not want to be bothered"
	case Scared:
		return "scared, jumpy"
	case Annoyed:
		return "properly annoyed"
	case Generous:
		return "generous, in a good mood"
	case Suspicious:
		return "suspicious, on guard"
	}
	return "relaxed"
}

// moodState is the current mood and how strongly it is felt, in [0, 1].
type moodState struct {
	mood      Mood
	intensity float64
}

func newMoodState() moodState {
	return moodState{mood: Chill, intensity: 0.5}
}

// settle drifts back toward Chill. Called once a second.
func (s *moodState) settle() {
	s.intensity = max(0, s.intensity-0.01)
	if s.intensity < 0.1 {
		s.mood, s.intensity = Chill, 0.5
	}
}

// flavor returns an extra tone instruction for a reply, or "". roll is in
// [0, 1).
func (s moodState) flavor(roll float64) string {
	switch {
	case s.mood == Hyped && roll < 0.5:
		return "Sound excited, throw in a 'lol' or 'LETS GO'."
	case s.mood == Grumpy && roll < 0.5:
		return "Complain briefly about something (hunger, mobs, broken tools)."
	case s.mood == Focused && roll < 0.3:
		return "Be brief and direct, you are busy."
	case s.mood == Scared && roll < 0.7:
		return "Sound urgent. Short phrases like 'low hp brb' or 'gotta get out of here'."
	case s.mood == Annoyed:
		return "Show real irritation."
	case s.mood == Suspicious && roll < 0.4:
		return "Be guarded. Ask about the player before trusting them."
	}
	return ""
}

func (s moodState) prompt(roll float64) string {
	text := fmt.Sprintf("%s (%.0f%%)", s.mood.describe(), s.intensity*100)
	if f := s.flavor(roll); f != "" {
		text += ". " + f
	}
	return text
}

// feel switches to mood m at the given intensity.
func (b *Brain) feel(m Mood, intensity float64) {
	b.mu.Lock()
	prev := b.mood.mood
	b.mood = moodState{mood: m, intensity: intensity}
	b.mu.Unlock()
	if prev != m {
		slog.Debug("mood changed", "from", prev, "to", m, "intensity", intensity)
	}
}

// Mood returns the current mood and its intensity.
func (b *Brain) Mood() (Mood, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mood.mood, b.mood.intensity
}
