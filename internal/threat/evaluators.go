package threat

import (
	"fmt"
	"strings"
	"time"

	"github.com/talgya/sentinel/internal/world"
)

// NeutralTrust is the trust value of a player we know nothing about.
const NeutralTrust = 20

// sprintPerBlock is roughly how long a sprinting player takes to cover one block.
const sprintPerBlock = 200 * time.Millisecond

var (
	hazardousItems = []string{"lava_bucket", "flint_and_steel", "tnt", "fire_charge", "end_crystal", "respawn_anchor"}
	weaponItems    = []string{"diamond_sword", "netherite_sword", "iron_sword", "bow", "crossbow", "trident"}
	fallingBlocks  = []string{"gravel", "sand", "red_sand", "anvil", "dragon_egg"}
)

func containsAny(s string, set []string) bool {
	for _, v := range set {
		if strings.Contains(s, v) {
			return true
		}
	}
	return false
}

func closingTime(distance float64) time.Duration {
	return time.Duration(distance * float64(sprintPerBlock))
}

// Approach describes another player for the approach evaluator.
type Approach struct {
	Name     string
	HeldItem string
	Distance float64
	Closing  bool
	Trust    int
}

// EvaluateApproach flags players carrying hazards or weapons toward us.
func EvaluateApproach(a Approach) (Record, bool) {
	hazardous := containsAny(a.HeldItem, hazardousItems)
	armed := containsAny(a.HeldItem, weaponItems)

	switch {
	case a.Trust < -20 && hazardous && a.Closing && a.Distance < 30:
		return Record{
			Kind:         GriefingApproach,
			Severity:     Critical,
			Description:  fmt.Sprintf("%s (trust %d) closing in with %s at %dm", a.Name, a.Trust, a.HeldItem, int(a.Distance)),
			Action:       Response{Kind: PreemptiveStrike},
			TimeToImpact: closingTime(a.Distance),
		}, true

	case a.Trust < 10 && armed && a.Closing && a.Distance < 20:
		action := Response{Kind: Sprint}
		if a.Distance < 8 {
			action = Response{Kind: PreemptiveStrike}
		}
		return Record{
			Kind:         AmbushRisk,
			Severity:     High,
			Description:  fmt.Sprintf("%s approaching armed with %s", a.Name, a.HeldItem),
			Action:       action,
			TimeToImpact: closingTime(a.Distance),
		}, true

	case a.Trust == NeutralTrust && armed && a.Distance < 15:
		return Record{
			Kind:         AmbushRisk,
			Severity:     Medium,
			Description:  fmt.Sprintf("unknown player %s holding %s", a.Name, a.HeldItem),
			Action:       Response{Kind: Warn, Text: fmt.Sprintf("hey %s, what are you doing with that %s?", a.Name, a.HeldItem)},
			TimeToImpact: 5 * time.Second,
		}, true
	}
	return Record{}, false
}

// LavaDepth is the Y level below which lava pockets are common.
const LavaDepth = 11

// EvaluateMining flags digging upward into unstable or suspicious blocks.
func EvaluateMining(blockAbove string, miningUp bool, y int) (Record, bool) {
	if !miningUp {
		return Record{}, false
	}
	if containsAny(blockAbove, fallingBlocks) {
		return Record{
			Kind:         FallingBlockHazard,
			Severity:     High,
			Description:  fmt.Sprintf("%s overhead will fall when broken", blockAbove),
			Action:       Response{Kind: PlaceBlock},
			TimeToImpact: 500 * time.Millisecond,
		}, true
	}
	if (blockAbove == "stone" || blockAbove == "deepslate") && y < LavaDepth {
		return Record{
			Kind:         EnvironmentalHazard,
			Severity:     Low,
			Description:  fmt.Sprintf("possible lava behind %s at y=%d", blockAbove, y),
			Action:       Response{Kind: PlaceBlock},
			TimeToImpact: 2 * time.Second,
		}, true
	}
	return Record{}, false
}

// EvaluateStarvation maps hunger, health and food on hand to a severity.
func EvaluateStarvation(hunger int, health float64, hasFood bool) (Record, bool) {
	if hunger > 6 {
		return Record{}, false
	}
	if health < 10 && !hasFood {
		r := Record{
			Kind:         StarvationRisk,
			Severity:     High,
			Description:  fmt.Sprintf("hunger %d, health %.0f, no food", hunger, health),
			Action:       Response{Kind: EatNow},
			TimeToImpact: 10 * time.Second,
		}
		if health < 4 {
			r.Severity = Critical
			r.TimeToImpact = 2 * time.Second
		}
		return r, true
	}
	if hasFood {
		return Record{
			Kind:         StarvationRisk,
			Severity:     Medium,
			Description:  fmt.Sprintf("hunger %d, eat now", hunger),
			Action:       Response{Kind: EatNow},
			TimeToImpact: 5 * time.Second,
		}, true
	}
	return Record{}, false
}

// FuseDuration is how long a lit creeper takes to explode.
const FuseDuration = 1500 * time.Millisecond

// EvaluateExplosive flags an explosive mob that is lit or very close.
func EvaluateExplosive(distance float64, fuseStarted bool) (Record, bool) {
	if fuseStarted && distance < 5 {
		return Record{
			Kind:         ExplosiveProximity,
			Severity:     Critical,
			Description:  fmt.Sprintf("lit creeper at %dm", int(distance)),
			Action:       Response{Kind: Sprint},
			TimeToImpact: FuseDuration,
		}, true
	}
	if !fuseStarted && distance < 3 {
		return Record{
			Kind:         ExplosiveProximity,
			Severity:     High,
			Description:  "creeper very close, could ignite any moment",
			Action:       Response{Kind: Sprint},
			TimeToImpact: 3 * time.Second,
		}, true
	}
	return Record{}, false
}

// EvaluateSwarm flags being outnumbered by hostile mobs.
func EvaluateSwarm(hostiles int, health float64, dangerous bool) (Record, bool) {
	switch {
	case hostiles >= 5 || (hostiles >= 3 && health < 10):
		return Record{
			Kind:         SwarmRisk,
			Severity:     High,
			Description:  fmt.Sprintf("%d hostiles nearby, health %.0f", hostiles, health),
			Action:       Response{Kind: TowerUp},
			TimeToImpact: 5 * time.Second,
		}, true
	case hostiles >= 3 && dangerous:
		return Record{
			Kind:         SwarmRisk,
			Severity:     Medium,
			Description:  fmt.Sprintf("%d hostiles gathering in the dark", hostiles),
			Action:       Response{Kind: Avoid},
			TimeToImpact: 10 * time.Second,
		}, true
	}
	return Record{}, false
}

// bubbleDuration is how long one air bubble lasts underwater.
const bubbleDuration = 1500 * time.Millisecond

// EvaluateDrowning flags running out of air underwater.
func EvaluateDrowning(air int, inWater bool) (Record, bool) {
	if !inWater || air > 5 {
		return Record{}, false
	}
	sev := Medium
	switch {
	case air <= 1:
		sev = Critical
	case air <= 3:
		sev = High
	}
	return Record{
		Kind:         EnvironmentalHazard,
		Severity:     sev,
		Description:  fmt.Sprintf("underwater with %d air left", air),
		Action:       Response{Kind: SwimUp},
		TimeToImpact: time.Duration(air) * bubbleDuration,
	}, true
}

// TrustFunc returns the trust we hold for a named player.
type TrustFunc func(name string) int

// Assess runs every evaluator over a snapshot in a fixed order: each player
// approach, mining, starvation, explosives, swarm, drowning.
func Assess(s world.Snapshot, trust TrustFunc) []Record {
	var out []Record
	add := func(r Record, ok bool) {
		if ok {
			out = append(out, r)
		}
	}

	for _, p := range s.Players() {
		t := NeutralTrust
		if trust != nil {
			t = trust(p.Name)
		}
		add(EvaluateApproach(Approach{
			Name:     p.Name,
			HeldItem: p.HeldItem,
			Distance: p.Distance,
			Closing:  p.Approaching,
			Trust:    t,
		}))
	}
	add(EvaluateMining(s.BlockAbove, s.MiningUp, s.Position.Block().Y))
	add(EvaluateStarvation(s.Hunger, s.Health, s.HasFood))
	if e, ok := s.NearestExplosive(); ok {
		add(EvaluateExplosive(e.Distance, e.FuseStarted))
	}
	add(EvaluateSwarm(s.Hostiles(), s.Health, s.Phase().Dangerous() || s.Light < 7))
	add(EvaluateDrowning(s.Air, s.InWater))
	return out
}
