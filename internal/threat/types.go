// Package threat predicts dangers before they land. Evaluators are pure
// functions of their inputs; the Predictor keeps a short rolling history for
// accuracy bookkeeping.
package threat

import (
	"fmt"
	"time"
)

// Severity is an ordered urgency level: None < Low < Medium < High < Critical.
type Severity uint8

const (
	None Severity = iota
	Low
	Medium
	High
	Critical
)

// Rank orders severities for selection: Critical=0 … None=4.
func (s Severity) Rank() int {
	return int(Critical) - int(s)
}

// Urgent reports whether responses to s take the front of the action queue.
func (s Severity) Urgent() bool {
	return s >= High
}

func (s Severity) String() string {
	switch s {
	case None:
		return "none"
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

// Kind classifies a predicted threat.
type Kind uint8

const (
	GriefingApproach Kind = iota
	FallingBlockHazard
	ExplosiveProximity
	EnvironmentalHazard
	AmbushRisk
	SwarmRisk
	StarvationRisk
)

var kindNames = [...]string{
	"griefing_approach",
	"falling_block",
	"explosive_proximity",
	"environmental",
	"ambush",
	"swarm",
	"starvation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ResponseKind is the recommended reaction to a threat.
type ResponseKind uint8

const (
	Idle ResponseKind = iota
	PlaceBlock
	Sprint
	PreemptiveStrike
	TowerUp
	EatNow
	SwimUp
	Avoid
	Warn
)

var responseNames = [...]string{
	"idle", "place_block", "sprint", "preemptive_strike", "tower_up",
	"eat_now", "swim_up", "avoid", "warn",
}

// Response is a recommended reaction. Text is set only for Warn.
type Response struct {
	Kind ResponseKind `json:"kind"`
	Text string       `json:"text,omitempty"`
}

func (r Response) String() string {
	name := "unknown"
	if int(r.Kind) < len(responseNames) {
		name = responseNames[r.Kind]
	}
	if r.Kind == Warn {
		return fmt.Sprintf("%s(%q)", name, r.Text)
	}
	return name
}

// Record is one predicted threat.
type Record struct {
	Kind         Kind          `json:"kind"`
	Severity     Severity      `json:"severity"`
	Description  string        `json:"description"`
	Action       Response      `json:"action"`
	TimeToImpact time.Duration `json:"time_to_impact"`
}

// MostUrgent returns the record with the lowest severity rank. Ties go to the
// earliest record.
func MostUrgent(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	best := 0
	for i := 1; i < len(records); i++ {
		if records[i].Severity.Rank() < records[best].Severity.Rank() {
			best = i
		}
	}
	return records[best], true
}
