package brain

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/sentinel/internal/entropy"
	"github.com/talgya/sentinel/internal/goals"
	"github.com/talgya/sentinel/internal/memory"
	"github.com/talgya/sentinel/internal/motor"
)

const (
	// BoredomTicks is how long the agent sits without a goal before it
	// makes one up.
	BoredomTicks = 2 * 60 * TicksPerSecond
	// DreamCooldown is the minimum time between made-up goals.
	DreamCooldown = 5 * time.Minute
)

type dreamTemplate struct {
	idea       string
	motivation string
	priority   goals.Priority
	mood       Mood
	anyMood    bool
}

var dreamTemplates = []dreamTemplate{
	{"Build a watchtower on the highest peak", "bored, time to climb that mountain and make something cool", goals.Low, Chill, true},
	{"Dig a secret underground base", "nobody gets to know where I keep my diamonds", goals.Low, Suspicious, false},
	{"Build giant pixel art", "gotta leave my mark on this server", goals.Background, Hyped, false},
	{"Terraform a mountain", "that mountain would look insane with some work", goals.Background, Chill, true},
	{"Build an automatic iron farm", "tired of mining iron by hand", goals.Medium, Focused, false},
	{"Build a sugarcane farm with hoppers", "need a ton of paper for enchanting", goals.Medium, Chill, true},
	{"Build a mob grinder", "free xp, who doesn't want that", goals.Medium, Chill, true},
	{"Rewire the base redstone", "that circuit is held together with tape, time to redo it", goals.Low, Focused, false},
	{"Explore the cave from yesterday", "bet there's a spawner down there", goals.Low, Chill, true},
	{"Find a nether fortress", "need blaze rods for potions", goals.Medium, Chill, false},
	{"Map the whole region", "want to know everything around here", goals.Background, Chill, true},
	{"Build a PvP arena for the server", "this place needs somewhere decent to fight", goals.Background, Generous, false},
	{"Open a trading shop", "gonna be the official merchant of this server", goals.Background, Chill, false},
	{"Trap the area around the base", "nobody is griefing my house again", goals.Medium, Annoyed, false},
	{"Build an obsidian bunker", "no TNT gets through that wall", goals.Low, Scared, false},
}

// idle counts a tick with nothing to do and, once bored and off cooldown,
// makes up a goal.
func (b *Brain) idle(tick uint64) {
	now := b.now()
	b.mu.Lock()
	b.idleTicks++
	bored := b.idleTicks >= BoredomTicks
	ready := b.lastDream.IsZero() || now.Sub(b.lastDream) > DreamCooldown
	mood := b.mood.mood
	b.mu.Unlock()
	if !bored || !ready {
		return
	}

	d, ok := b.dream(mood)
	if !ok {
		return
	}
	id, err := b.Goals.Submit(goals.New(d.idea, d.motivation, d.priority))
	if err != nil {
		slog.Warn("dream goal rejected", "idea", d.idea, "error", err)
		return
	}

	b.mu.Lock()
	b.idleTicks = 0
	b.lastDream = now
	b.dreams++
	b.mu.Unlock()

	slog.Info("new goal from boredom", "id", id, "idea", d.idea, "mood", mood)
	b.Memory.Add(memory.Episode{Tick: tick, Kind: "idea", Description: "decided to " + d.idea, Impact: 1})
	line := "hmm you know what, " + d.motivation
	b.Motor.Queue(motor.Chat(line))
	b.pushChat(b.name, line)
}

// dream picks a template that fits mood. A remembered place sometimes
// finds its way into the motivation.
func (b *Brain) dream(mood Mood) (dreamTemplate, bool) {
	var fits []dreamTemplate
	for _, t := range dreamTemplates {
		if t.anyMood || t.mood == mood {
			fits = append(fits, t)
		}
	}
	if len(fits) == 0 {
		return dreamTemplate{}, false
	}
	d := fits[entropy.IntBetween(b.rng, 0, len(fits))]

	if places := b.Memory.Snapshot().Places; len(places) > 0 && entropy.Chance(b.rng, 0.3) {
		p := places[entropy.IntBetween(b.rng, 0, len(places))]
		d.motivation = fmt.Sprintf("%s (thinking of %s at %s)", d.motivation, p.Name, p.Pos)
	}
	return d, true
}

func (b *Brain) resetIdle() {
	b.mu.Lock()
	b.idleTicks = 0
	b.mu.Unlock()
}
