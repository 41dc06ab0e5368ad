package persistence

import (
	"time"

	"github.com/talgya/sentinel/internal/goals"
	"github.com/talgya/sentinel/internal/ledger"
	"github.com/talgya/sentinel/internal/memory"
	"github.com/talgya/sentinel/internal/social"
)

// State is everything the agent carries across restarts.
type State struct {
	SavedAt     time.Time               `json:"saved_at"`
	Goals       goals.State             `json:"goals"`
	Ledger      map[string]ledger.Entry `json:"ledger"`
	TotalTrades int                     `json:"total_trades"`
	Profiles    []social.Profile        `json:"profiles"`
	Memory      memory.Snapshot         `json:"memory"`
}
