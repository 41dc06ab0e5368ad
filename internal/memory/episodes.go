// Package memory keeps the agent's episodic and spatial memory: what
// happened and where things are.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/talgya/sentinel/internal/world"
)

// MaxEpisodes bounds the episode stream.
const MaxEpisodes = 500

// Episode records a notable experience.
type Episode struct {
	At          time.Time       `json:"at"`
	Tick        uint64          `json:"tick"`
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
	Location    *world.BlockPos `json:"location,omitempty"`
	Players     []string        `json:"players,omitempty"`
	Impact      int             `json:"impact"` // -5 (terrible) to +5 (amazing)
}

// Importance is how strongly the episode resists eviction.
func (e Episode) Importance() int {
	if e.Impact < 0 {
		return -e.Impact
	}
	return e.Impact
}

// Place is a remembered location.
type Place struct {
	Name         string         `json:"name"`
	Kind         string         `json:"kind"`
	Pos          world.BlockPos `json:"pos"`
	Notes        string         `json:"notes,omitempty"`
	DiscoveredAt time.Time      `json:"discovered_at"`
}

// Snapshot is the persisted form of a Store.
type Snapshot struct {
	Episodes []Episode       `json:"episodes"`
	Places   []Place         `json:"places"`
	Home     *world.BlockPos `json:"home,omitempty"`
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	episodes []Episode
	places   []Place
	home     *world.BlockPos
	now      func() time.Time
}

// NewStore creates an empty memory.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Add appends an episode. When the stream is full the least important
// episode is replaced, but only by something more important.
func (s *Store) Add(e Episode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.At.IsZero() {
		e.At = s.now()
	}
	e.Impact = max(-5, min(5, e.Impact))

	if len(s.episodes) < MaxEpisodes {
		s.episodes = append(s.episodes, e)
		return
	}

	minIdx := 0
	for i := 1; i < len(s.episodes); i++ {
		if s.episodes[i].Importance() < s.episodes[minIdx].Importance() {
			minIdx = i
		}
	}
	if e.Importance() > s.episodes[minIdx].Importance() {
		s.episodes = append(s.episodes[:minIdx], s.episodes[minIdx+1:]...)
		s.episodes = append(s.episodes, e)
	}
}

// Recent returns up to n episodes, newest first.
func (s *Store) Recent(n int) []Episode {
	s.mu.Lock()
	defer s.mu.Unlock()

	n = min(n, len(s.episodes))
	out := make([]Episode, 0, n)
	for i := len(s.episodes) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.episodes[i])
	}
	return out
}

// Important returns up to n episodes by importance, most important first.
func (s *Store) Important(n int) []Episode {
	s.mu.Lock()
	sorted := append([]Episode(nil), s.episodes...)
	s.mu.Unlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Importance() > sorted[j].Importance()
	})
	return sorted[:min(n, len(sorted))]
}

// Len is the number of stored episodes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.episodes)
}

// Remember stores a place, updating it if the name is already known.
func (s *Store) Remember(p Place) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.places {
		if s.places[i].Name == p.Name {
			s.places[i].Pos = p.Pos
			s.places[i].Notes = p.Notes
			return
		}
	}
	if p.DiscoveredAt.IsZero() {
		p.DiscoveredAt = s.now()
	}
	s.places = append(s.places, p)
}

// SetHome records the home base.
func (s *Store) SetHome(pos world.BlockPos) {
	s.mu.Lock()
	h := pos
	s.home = &h
	s.mu.Unlock()

	s.Remember(Place{Name: "home", Kind: "home", Pos: pos, Notes: "main base"})
}

// Home returns the home base, if set.
func (s *Store) Home() (world.BlockPos, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.home == nil {
		return world.BlockPos{}, false
	}
	return *s.home, true
}

// Nearest returns the closest remembered place of the given kind.
func (s *Store) Nearest(from world.BlockPos, kind string) (Place, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best Place
	bestDist := -1
	for _, p := range s.places {
		if p.Kind != kind {
			continue
		}
		dx, dy, dz := p.Pos.X-from.X, p.Pos.Y-from.Y, p.Pos.Z-from.Z
		d := dx*dx + dy*dy + dz*dz
		if bestDist < 0 || d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, bestDist >= 0
}

// Snapshot captures the store for persistence.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Episodes: append([]Episode(nil), s.episodes...),
		Places:   append([]Place(nil), s.places...),
	}
	if s.home != nil {
		h := *s.home
		snap.Home = &h
	}
	return snap
}

// Restore replaces the store's contents, keeping the newest MaxEpisodes.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eps := snap.Episodes
	if len(eps) > MaxEpisodes {
		eps = eps[len(eps)-MaxEpisodes:]
	}
	s.episodes = append([]Episode(nil), eps...)
	s.places = append([]Place(nil), snap.Places...)
	s.home = nil
	if snap.Home != nil {
		h := *snap.Home
		s.home = &h
	}
}

// Summary renders the n most recent episodes for a language-model context.
func (s *Store) Summary(n int) string {
	recent := s.Recent(n)
	if len(recent) == 0 {
		return "Nothing interesting has happened yet."
	}
	lines := make([]string, len(recent))
	for i, e := range recent {
		mark := ""
		switch {
		case e.Impact > 2:
			mark = " (great)"
		case e.Impact < -2:
			mark = " (awful)"
		}
		lines[i] = fmt.Sprintf("[%s] %s%s", e.At.Format("15:04"), e.Description, mark)
	}
	return strings.Join(lines, "\n")
}
