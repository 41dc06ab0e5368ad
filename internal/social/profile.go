// Package social remembers who the agent has met and how much it trusts them.
package social

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTrust = 20 // Trust for a player met for the first time
	MaxMessages  = 5  // Messages kept per player
	chatTrust    = 1  // Trust gained per chat line
)

// Relationship is a band of trust.
type Relationship uint8

const (
	Stranger Relationship = iota
	Acquaintance
	Friend
	BestFriend
	Rival
	Enemy
)

var relationshipNames = [...]string{"stranger", "acquaintance", "friend", "best_friend", "rival", "enemy"}

func (r Relationship) String() string {
	if int(r) < len(relationshipNames) {
		return relationshipNames[r]
	}
	return "unknown"
}

// RelationshipFor maps a trust level to its band.
func RelationshipFor(trust int) Relationship {
	switch {
	case trust < 0:
		return Enemy
	case trust < 10:
		return Rival
	case trust < 30:
		return Stranger
	case trust < 50:
		return Acquaintance
	case trust < 80:
		return Friend
	}
	return BestFriend
}

// Style is how the agent should sound when replying.
type Style uint8

const (
	Friendly Style = iota
	Casual
	Cautious
	Cold
	Hostile
)

func (s Style) String() string {
	switch s {
	case Friendly:
		return "friendly"
	case Casual:
		return "casual"
	case Cautious:
		return "cautious"
	case Cold:
		return "cold"
	case Hostile:
		return "hostile"
	}
	return "unknown"
}

// Profile is what the agent knows about one player.
type Profile struct {
	Name         string       `json:"name"`
	Trust        int          `json:"trust"`
	TimesMet     int          `json:"times_met"`
	LastSeen     time.Time    `json:"last_seen"`
	Relationship Relationship `json:"relationship"`
	LastMessages []string     `json:"last_messages,omitempty"`
	Notes        []string     `json:"notes,omitempty"`
}

func (p *Profile) clone() Profile {
	c := *p
	c.LastMessages = append([]string(nil), p.LastMessages...)
	c.Notes = append([]string(nil), p.Notes...)
	return c
}

// Book holds every known profile. It is safe for concurrent use.
type Book struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	now      func() time.Time
}

// NewBook creates an empty profile book.
func NewBook() *Book {
	return &Book{profiles: make(map[string]*Profile), now: time.Now}
}

func (b *Book) getOrCreate(name string) *Profile {
	p, ok := b.profiles[name]
	if !ok {
		p = &Profile{Name: name, Trust: DefaultTrust, Relationship: RelationshipFor(DefaultTrust)}
		b.profiles[name] = p
	}
	return p
}

// RecordInteraction notes a meeting and shifts trust by delta.
func (b *Book) RecordInteraction(name string, delta int) Profile {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.getOrCreate(name)
	p.TimesMet++
	p.LastSeen = b.now()
	p.Trust = max(-100, min(100, p.Trust+delta))
	p.Relationship = RelationshipFor(p.Trust)
	return p.clone()
}

// RecordMessage stores a chat line from name and counts it as a friendly
// interaction.
func (b *Book) RecordMessage(name, msg string) Profile {
	b.mu.Lock()
	p := b.getOrCreate(name)
	p.LastMessages = append(p.LastMessages, msg)
	if len(p.LastMessages) > MaxMessages {
		p.LastMessages = append([]string(nil), p.LastMessages[len(p.LastMessages)-MaxMessages:]...)
	}
	b.mu.Unlock()

	return b.RecordInteraction(name, chatTrust)
}

// AddNote attaches a remark to name's profile.
func (b *Book) AddNote(name, note string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.getOrCreate(name)
	p.Notes = append(p.Notes, note)
}

// Trust returns the trust held for name, DefaultTrust for unknown players.
func (b *Book) Trust(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.profiles[name]; ok {
		return p.Trust
	}
	return DefaultTrust
}

// Profile returns a copy of name's profile.
func (b *Book) Profile(name string) (Profile, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[name]
	if !ok {
		return Profile{}, false
	}
	return p.clone(), true
}

// StyleFor picks a reply style from the relationship. Unknown players get
// a cautious reply.
func (b *Book) StyleFor(name string) Style {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.profiles[name]
	if !ok {
		return Cautious
	}
	switch p.Relationship {
	case BestFriend:
		return Friendly
	case Friend, Acquaintance:
		return Casual
	case Rival:
		return Cold
	case Enemy:
		return Hostile
	}
	return Cautious
}

// ShouldWarn reports whether name is trusted enough to be warned of danger.
func (b *Book) ShouldWarn(name string) bool {
	return b.Trust(name) > 10
}

// Profiles returns copies of all profiles sorted by name.
func (b *Book) Profiles() []Profile {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Profile, 0, len(b.profiles))
	for _, p := range b.profiles {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Restore replaces the book's contents. Relationships are rederived from
// trust.
func (b *Book) Restore(profiles []Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.profiles = make(map[string]*Profile, len(profiles))
	for _, p := range profiles {
		c := p.clone()
		c.Trust = max(-100, min(100, c.Trust))
		c.Relationship = RelationshipFor(c.Trust)
		b.profiles[c.Name] = &c
	}
}

// Summary lists up to ten players, most trusted first.
func (b *Book) Summary() string {
	ps := b.Profiles()
	if len(ps) == 0 {
		return "I don't know anyone yet."
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Trust > ps[j].Trust })

	lines := make([]string, 0, 10)
	for _, p := range ps {
		if len(lines) == 10 {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s (%s, trust %d, met %dx)", p.Name, p.Relationship, p.Trust, p.TimesMet))
	}
	return strings.Join(lines, "\n")
}
