package brain

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/talgya/sentinel/internal/memory"
	"github.com/talgya/sentinel/internal/motor"
	"github.com/talgya/sentinel/internal/threat"
	"github.com/talgya/sentinel/internal/world"
)

// react assesses snap, records the predictions and turns the ones off
// cooldown into motor commands. A critical threat opens an emergency goal
// that is completed once no critical threat has been seen for a cooldown.
func (b *Brain) react(tick uint64, snap world.Snapshot) {
	records := threat.Assess(snap, b.Social.Trust)
	for _, r := range records {
		b.Threats.Record(r)
	}

	var (
		fire     []threat.Record
		critical threat.Record
		hasCrit  bool
		urgent   bool
	)
	for _, r := range records {
		if r.Severity.Urgent() {
			urgent = true
		}
		if r.Severity == threat.Critical && !hasCrit {
			critical, hasCrit = r, true
		}
	}

	b.mu.Lock()
	cooldown := uint64(b.cfg.ThreatCooldownTicks)
	// A predicted hit that landed: health fell right after an urgent warning.
	confirmed := b.urgentSeen && snap.Health < b.prevHealth
	b.prevHealth = snap.Health
	b.urgentSeen = urgent
	b.lastThreats = records

	for _, r := range records {
		if r.Action.Kind == threat.Idle {
			continue
		}
		if last, ok := b.cooldowns[r.Kind]; ok && tick-last < cooldown {
			continue
		}
		b.cooldowns[r.Kind] = tick
		fire = append(fire, r)
	}

	preempt := hasCrit && !b.emergency
	if hasCrit {
		b.emergency = true
		b.emergencyAt = tick
	}
	resolve := !hasCrit && b.emergency && tick-b.emergencyAt >= cooldown
	if resolve {
		b.emergency = false
	}
	b.mu.Unlock()

	if confirmed {
		b.Threats.RecordCorrect()
	}
	if preempt {
		b.feel(Scared, 0.9)
		g := b.Goals.Preempt(emergencyPrefix+critical.Kind.String(), critical.Description)
		slog.Warn("emergency", "goal", g.Name, "threat", critical.Description, "action", critical.Action)
		pos := snap.Position.Block()
		b.Memory.Add(memory.Episode{
			Tick:        tick,
			Kind:        "danger",
			Description: critical.Description,
			Location:    &pos,
			Impact:      -3,
		})
	}
	if resolve {
		if g, ok := b.Goals.Active(); ok && strings.HasPrefix(g.Name, emergencyPrefix) {
			b.Goals.Complete()
			b.feel(Hyped, 0.7)
			slog.Info("emergency over", "goal", g.Name)
			b.Memory.Add(memory.Episode{Tick: tick, Kind: "survived", Description: "made it through: " + g.Description, Impact: 2})
		}
	}

	b.enqueue(fire, snap)
}

// enqueue sends urgent responses to the front of the queue and the rest to
// the back. Urgent records are pushed least urgent first so the most urgent
// (earliest among equals) ends up at the very front.
func (b *Brain) enqueue(fire []threat.Record, snap world.Snapshot) {
	var urgent []threat.Record
	for _, r := range fire {
		if r.Severity.Urgent() {
			urgent = append(urgent, r)
			continue
		}
		for _, c := range commandsFor(r, snap) {
			b.Motor.Queue(c)
		}
	}

	slices.Reverse(urgent)
	slices.SortStableFunc(urgent, func(x, y threat.Record) int {
		return int(x.Severity) - int(y.Severity)
	})
	for _, r := range urgent {
		cmds := commandsFor(r, snap)
		for i := len(cmds) - 1; i >= 0; i-- {
			b.Motor.QueueUrgent(cmds[i])
		}
	}
}

// commandsFor translates a recommended response into motor commands, in
// execution order.
func commandsFor(r threat.Record, snap world.Snapshot) []motor.Command {
	switch r.Action.Kind {
	case threat.Sprint, threat.Avoid:
		return []motor.Command{motor.Flee(away(snap.Yaw))}
	case threat.Warn:
		return []motor.Command{motor.Chat(r.Action.Text)}
	case threat.PreemptiveStrike:
		return []motor.Command{motor.LookAt(snap.Yaw, 0), motor.Jump(), motor.Log("strike: " + r.Description)}
	case threat.TowerUp:
		return []motor.Command{motor.Jump(), motor.SneakPulse(4)}
	case threat.PlaceBlock:
		return []motor.Command{motor.LookAt(snap.Yaw, -90), motor.SneakPulse(4)}
	case threat.EatNow:
		return []motor.Command{motor.Log("eat: " + r.Description)}
	case threat.SwimUp:
		return []motor.Command{motor.LookAt(snap.Yaw, -90), motor.Jump()}
	}
	return nil
}

// away returns the heading opposite yaw, in (-180, 180].
func away(yaw float32) float32 {
	a := yaw + 180
	if a > 180 {
		a -= 360
	}
	return a
}

// LastThreats returns the records from the most recent assessment.
func (b *Brain) LastThreats() []threat.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]threat.Record(nil), b.lastThreats...)
}
