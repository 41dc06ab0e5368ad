// Package world describes what the agent perceives each tick: its own status,
// nearby entities and ambient danger signals.
package world

import (
	"fmt"
	"math"
	"strings"
)

// Vec3 is a continuous world position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Block returns the block coordinate containing v.
func (v Vec3) Block() BlockPos {
	return BlockPos{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}

// BlockPos is an integer block coordinate.
type BlockPos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Offset returns the position shifted by dx, dy, dz.
func (b BlockPos) Offset(dx, dy, dz int) BlockPos {
	return BlockPos{X: b.X + dx, Y: b.Y + dy, Z: b.Z + dz}
}

func (b BlockPos) String() string {
	return fmt.Sprintf("[%d, %d, %d]", b.X, b.Y, b.Z)
}

// EntityKind classifies a nearby entity.
type EntityKind uint8

const (
	EntityPlayer    EntityKind = iota
	EntityHostile              // Zombies, skeletons, spiders
	EntityExplosive            // Creepers and primed TNT
	EntityPassive              // Animals
)

// Entity is one nearby entity as reported by the sensing collaborator.
type Entity struct {
	Name        string     `json:"name"`
	Kind        EntityKind `json:"kind"`
	Distance    float64    `json:"distance"`
	HeldItem    string     `json:"held_item,omitempty"`
	Approaching bool       `json:"approaching"`
	FuseStarted bool       `json:"fuse_started,omitempty"` // Explosives only
}

// Snapshot is the complete world view for one tick.
type Snapshot struct {
	Tick        uint64   `json:"tick"`
	Position    Vec3     `json:"position"`
	Yaw         float32  `json:"yaw"`
	Pitch       float32  `json:"pitch"`
	Entities    []Entity `json:"entities"`
	Light       int      `json:"light"`    // 0–15
	DayTime     int64    `json:"day_time"` // Game ticks since world start
	Raining     bool     `json:"raining"`
	Underground bool     `json:"underground"`

	// Self status
	Health  float64 `json:"health"` // 0–20
	Hunger  int     `json:"hunger"` // 0–20, lower is hungrier
	HasFood bool    `json:"has_food"`
	Air     int     `json:"air"` // Bubbles, 0–10
	InWater bool    `json:"in_water"`

	// Mining context
	BlockAbove string `json:"block_above,omitempty"`
	MiningUp   bool   `json:"mining_up"`
}

// Sensor supplies the latest snapshot once per tick.
type Sensor interface {
	Snapshot() Snapshot
}

// Static is a Sensor that always returns the same snapshot.
type Static Snapshot

// Snapshot implements Sensor.
func (s Static) Snapshot() Snapshot { return Snapshot(s) }

// Valid reports whether the snapshot came from a real observation. The zero
// snapshot, seen before the first observation arrives, is not valid.
func (s *Snapshot) Valid() bool {
	return s.Tick > 0
}

// Players returns the nearby player entities.
func (s *Snapshot) Players() []Entity {
	var out []Entity
	for _, e := range s.Entities {
		if e.Kind == EntityPlayer {
			out = append(out, e)
		}
	}
	return out
}

// Hostiles counts nearby hostile and explosive mobs.
func (s *Snapshot) Hostiles() int {
	n := 0
	for _, e := range s.Entities {
		if e.Kind == EntityHostile || e.Kind == EntityExplosive {
			n++
		}
	}
	return n
}

// NearestExplosive returns the closest explosive entity, if any.
func (s *Snapshot) NearestExplosive() (Entity, bool) {
	var best Entity
	found := false
	for _, e := range s.Entities {
		if e.Kind != EntityExplosive {
			continue
		}
		if !found || e.Distance < best.Distance {
			best = e
			found = true
		}
	}
	return best, found
}

// Phase returns the time-of-day phase for the snapshot.
func (s *Snapshot) Phase() TimeOfDay {
	return PhaseOf(s.DayTime)
}

// DangerLevel is an ambient danger assessment from 0 to 10.
func (s *Snapshot) DangerLevel() int {
	danger := 0
	if s.Phase().Dangerous() {
		danger += 3
	}
	danger += min(s.Hostiles(), 5)
	if s.Light < 7 {
		danger += 2
	}
	if s.Raining {
		danger++
	}
	return min(danger, 10)
}

// ShouldSeekShelter reports whether conditions call for hiding.
func (s *Snapshot) ShouldSeekShelter() bool {
	return (s.Phase().Dangerous() && !s.Underground && s.Health < 14) ||
		(s.Hostiles() >= 3 && s.Health < 10)
}

// Summary renders the snapshot as a single context line.
func (s *Snapshot) Summary() string {
	var names []string
	for _, p := range s.Players() {
		names = append(names, p.Name)
	}
	players := "none"
	if len(names) > 0 {
		players = strings.Join(names, ", ")
	}
	return fmt.Sprintf("Position: %s | Time: %s | Danger: %d/10 | Hostiles: %d | Players: %s | HP: %.0f | Food: %d",
		s.Position.Block(), s.Phase(), s.DangerLevel(), s.Hostiles(), players, s.Health, s.Hunger)
}
