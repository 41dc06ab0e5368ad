// Package motor turns intentions into a paced stream of physical actions.
//
// Commands wait in a FIFO with an urgent front path. Each Step executes at
// most one command; timed commands occupy a single slot and block the queue
// until their countdown ends.
package motor

import (
	"fmt"

	"github.com/talgya/sentinel/internal/world"
)

// FleeTicks is how long a flee sprint lasts.
const FleeTicks = 40

// Kind identifies a motor command.
type Kind uint8

const (
	CmdChat Kind = iota
	CmdLookAt
	CmdRandomLook
	CmdJump
	CmdSprint
	CmdSneakPulse
	CmdWalkForward
	CmdFlee
	CmdGoto
	CmdWander
	CmdLog
)

var kindNames = [...]string{
	"chat", "look_at", "random_look", "jump", "sprint", "sneak_pulse",
	"walk_forward", "flee", "goto", "wander", "log",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Command is one motor instruction. Only the fields relevant to Kind are set.
type Command struct {
	Kind   Kind           `json:"kind"`
	Text   string         `json:"text,omitempty"`
	Yaw    float32        `json:"yaw,omitempty"`
	Pitch  float32        `json:"pitch,omitempty"`
	Ticks  int            `json:"ticks,omitempty"`
	Target world.BlockPos `json:"target,omitempty"`
}

func Chat(text string) Command           { return Command{Kind: CmdChat, Text: text} }
func LookAt(yaw, pitch float32) Command  { return Command{Kind: CmdLookAt, Yaw: yaw, Pitch: pitch} }
func RandomLook() Command                { return Command{Kind: CmdRandomLook} }
func Jump() Command                      { return Command{Kind: CmdJump} }
func Sprint(ticks int) Command           { return Command{Kind: CmdSprint, Ticks: ticks} }
func SneakPulse(ticks int) Command       { return Command{Kind: CmdSneakPulse, Ticks: ticks} }
func WalkForward(ticks int) Command      { return Command{Kind: CmdWalkForward, Ticks: ticks} }
func Flee(yaw float32) Command           { return Command{Kind: CmdFlee, Yaw: yaw, Ticks: FleeTicks} }
func Goto(target world.BlockPos) Command { return Command{Kind: CmdGoto, Target: target} }
func Wander() Command                    { return Command{Kind: CmdWander} }
func Log(text string) Command            { return Command{Kind: CmdLog, Text: text} }

// Timed reports whether the command occupies the active slot.
func (c Command) Timed() bool {
	switch c.Kind {
	case CmdSprint, CmdSneakPulse, CmdWalkForward, CmdFlee:
		return true
	}
	return false
}

func (c Command) String() string {
	switch c.Kind {
	case CmdChat, CmdLog:
		return fmt.Sprintf("%s(%q)", c.Kind, c.Text)
	case CmdLookAt:
		return fmt.Sprintf("look_at(%.1f, %.1f)", c.Yaw, c.Pitch)
	case CmdFlee:
		return fmt.Sprintf("flee(%.1f)", c.Yaw)
	case CmdGoto:
		return fmt.Sprintf("goto%s", c.Target)
	}
	if c.Timed() {
		return fmt.Sprintf("%s(%d)", c.Kind, c.Ticks)
	}
	return c.Kind.String()
}
