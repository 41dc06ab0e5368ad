package transport

import (
	"strings"

	"github.com/talgya/sentinel/internal/world"
)

// Frame types on the bridge socket.
const (
	TypeHello  = "hello"
	TypeAction = "action"
	TypeObs    = "obs"
	TypeChat   = "chat"
	TypeTrade  = "trade"
)

// Action names carried by TypeAction frames.
const (
	ActChat   = "chat"
	ActLook   = "look"
	ActJump   = "jump"
	ActSprint = "sprint"
	ActSneak  = "sneak"
	ActWalk   = "walk"
	ActGoto   = "goto"
)

type baseFrame struct {
	Type string `json:"type"`
}

type helloFrame struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type actionFrame struct {
	Type   string          `json:"type"`
	Action string          `json:"action"`
	Text   string          `json:"text,omitempty"`
	Yaw    float32         `json:"yaw,omitempty"`
	Pitch  float32         `json:"pitch,omitempty"`
	On     bool            `json:"on,omitempty"`
	Target *world.BlockPos `json:"target,omitempty"`
}

type obsFrame struct {
	Type string         `json:"type"`
	Obs  world.Snapshot `json:"obs"`
}

// chatFrame carries either an explicit sender and text or a raw server
// chat line such as "<Steve> hello".
type chatFrame struct {
	Type   string `json:"type"`
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text,omitempty"`
	Line   string `json:"line,omitempty"`
}

// Trade direction values.
const (
	Given    = "given"    // We handed the items over
	Received = "received" // They handed the items to us
)

// Trade reports a completed item exchange with another player.
type Trade struct {
	Type      string `json:"type"`
	Player    string `json:"player"`
	Item      string `json:"item"`
	Quantity  int    `json:"qty"`
	Direction string `json:"direction"`
	Reason    string `json:"reason,omitempty"`
}

// ParseChatLine splits a "<Name> message" line. System messages without a
// sender tag return ok == false.
func ParseChatLine(line string) (sender, text string, ok bool) {
	start := strings.IndexByte(line, '<')
	if start < 0 {
		return "", "", false
	}
	end := strings.IndexByte(line[start:], '>')
	if end < 0 {
		return "", "", false
	}
	end += start
	sender = strings.TrimSpace(line[start+1 : end])
	if sender == "" {
		return "", "", false
	}
	return sender, strings.TrimSpace(line[end+1:]), true
}
