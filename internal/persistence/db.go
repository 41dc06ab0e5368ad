// Package persistence provides SQLite-based agent state storage plus
// compressed archive snapshots.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/sentinel/internal/goals"
	"github.com/talgya/sentinel/internal/ledger"
	"github.com/talgya/sentinel/internal/memory"
	"github.com/talgya/sentinel/internal/social"
	"github.com/talgya/sentinel/internal/world"
)

// Meta keys.
const (
	metaSavedAt     = "saved_at"
	metaActiveGoal  = "active_goal"
	metaCompleted   = "goals_completed"
	metaFailed      = "goals_failed"
	metaTotalTrades = "total_trades"
	metaHome        = "home"
)

// DB wraps a SQLite connection for agent state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		priority INTEGER NOT NULL,
		status INTEGER NOT NULL,
		goal_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		counterparty TEXT PRIMARY KEY,
		credit_score INTEGER NOT NULL,
		trade_count INTEGER NOT NULL,
		entry_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profiles (
		name TEXT PRIMARY KEY,
		trust INTEGER NOT NULL,
		profile_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS episodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		impact INTEGER NOT NULL,
		episode_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS places (
		name TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		place_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goals_seq ON goals(seq);
	CREATE INDEX IF NOT EXISTS idx_episodes_kind ON episodes(kind);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveState performs a full replace of all agent state in one transaction.
func (db *DB) SaveState(st State) error {
	slog.Info("saving agent state",
		"goals", len(st.Goals.Goals),
		"counterparties", len(st.Ledger),
		"profiles", len(st.Profiles),
		"episodes", len(st.Memory.Episodes),
	)

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"goals", "ledger_entries", "profiles", "episodes", "places"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := saveGoals(tx, st.Goals.Goals); err != nil {
		return fmt.Errorf("save goals: %w", err)
	}
	if err := saveLedger(tx, st.Ledger); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	if err := saveProfiles(tx, st.Profiles); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}
	if err := saveMemory(tx, st.Memory); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}

	savedAt := st.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	home := ""
	if st.Memory.Home != nil {
		b, _ := json.Marshal(st.Memory.Home)
		home = string(b)
	}
	meta := map[string]string{
		metaSavedAt:     savedAt.UTC().Format(time.RFC3339Nano),
		metaActiveGoal:  st.Goals.Active,
		metaCompleted:   strconv.Itoa(st.Goals.Completed),
		metaFailed:      strconv.Itoa(st.Goals.Failed),
		metaTotalTrades: strconv.Itoa(st.TotalTrades),
		metaHome:        home,
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO agent_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("agent state saved")
	return nil
}

func saveGoals(tx *sqlx.Tx, list []goals.Goal) error {
	stmt, err := tx.Preparex(`INSERT INTO goals
		(id, seq, name, priority, status, goal_json)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, g := range list {
		data, err := json.Marshal(g)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(g.ID, i, g.Name, int(g.Priority), int(g.Status), string(data)); err != nil {
			return fmt.Errorf("insert goal %s: %w", g.ID, err)
		}
	}
	return nil
}

func saveLedger(tx *sqlx.Tx, entries map[string]ledger.Entry) error {
	for cp, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO ledger_entries
			(counterparty, credit_score, trade_count, entry_json)
			VALUES (?, ?, ?, ?)`,
			cp, e.CreditScore, e.TradeCount, string(data),
		)
		if err != nil {
			return fmt.Errorf("insert ledger entry %s: %w", cp, err)
		}
	}
	return nil
}

func saveProfiles(tx *sqlx.Tx, profiles []social.Profile) error {
	for _, p := range profiles {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT INTO profiles (name, trust, profile_json) VALUES (?, ?, ?)",
			p.Name, p.Trust, string(data)); err != nil {
			return fmt.Errorf("insert profile %s: %w", p.Name, err)
		}
	}
	return nil
}

func saveMemory(tx *sqlx.Tx, snap memory.Snapshot) error {
	for _, e := range snap.Episodes {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT INTO episodes (tick, kind, impact, episode_json) VALUES (?, ?, ?, ?)",
			int64(e.Tick), e.Kind, e.Impact, string(data)); err != nil {
			return fmt.Errorf("insert episode: %w", err)
		}
	}
	for _, p := range snap.Places {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT INTO places (name, kind, place_json) VALUES (?, ?, ?)",
			p.Name, p.Kind, string(data)); err != nil {
			return fmt.Errorf("insert place %s: %w", p.Name, err)
		}
	}
	return nil
}

// HasState reports whether a previous save exists.
func (db *DB) HasState() bool {
	_, err := db.GetMeta(metaSavedAt)
	return err == nil
}

// LoadState reads the last saved state.
func (db *DB) LoadState() (State, error) {
	var st State

	savedAt, err := db.GetMeta(metaSavedAt)
	if err != nil {
		return st, fmt.Errorf("load meta: %w", err)
	}
	st.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
	st.Goals.Active, _ = db.GetMeta(metaActiveGoal)
	st.Goals.Completed = db.metaInt(metaCompleted)
	st.Goals.Failed = db.metaInt(metaFailed)
	st.TotalTrades = db.metaInt(metaTotalTrades)

	if st.Goals.Goals, err = loadJSON[goals.Goal](db, "SELECT goal_json FROM goals ORDER BY seq"); err != nil {
		return st, fmt.Errorf("load goals: %w", err)
	}

	var rows []struct {
		Counterparty string `db:"counterparty"`
		EntryJSON    string `db:"entry_json"`
	}
	if err := db.conn.Select(&rows, "SELECT counterparty, entry_json FROM ledger_entries"); err != nil {
		return st, fmt.Errorf("load ledger: %w", err)
	}
	st.Ledger = make(map[string]ledger.Entry, len(rows))
	for _, r := range rows {
		var e ledger.Entry
		if err := json.Unmarshal([]byte(r.EntryJSON), &e); err != nil {
			return st, fmt.Errorf("decode ledger entry %s: %w", r.Counterparty, err)
		}
		st.Ledger[r.Counterparty] = e
	}

	if st.Profiles, err = loadJSON[social.Profile](db, "SELECT profile_json FROM profiles ORDER BY name"); err != nil {
		return st, fmt.Errorf("load profiles: %w", err)
	}
	if st.Memory.Episodes, err = loadJSON[memory.Episode](db, "SELECT episode_json FROM episodes ORDER BY id"); err != nil {
		return st, fmt.Errorf("load episodes: %w", err)
	}
	if st.Memory.Places, err = loadJSON[memory.Place](db, "SELECT place_json FROM places ORDER BY name"); err != nil {
		return st, fmt.Errorf("load places: %w", err)
	}
	if home, err := db.GetMeta(metaHome); err == nil && home != "" {
		var pos world.BlockPos
		if err := json.Unmarshal([]byte(home), &pos); err == nil {
			st.Memory.Home = &pos
		}
	}

	slog.Info("agent state loaded",
		"goals", len(st.Goals.Goals),
		"counterparties", len(st.Ledger),
		"profiles", len(st.Profiles),
		"episodes", len(st.Memory.Episodes),
	)
	return st, nil
}

func loadJSON[T any](db *DB, query string) ([]T, error) {
	var raw []string
	if err := db.conn.Select(&raw, query); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal([]byte(r), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SaveMeta stores a key-value pair in agent metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO agent_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns sql.ErrNoRows.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM agent_meta WHERE key = ?", key)
	return value, err
}

func (db *DB) metaInt(key string) int {
	v, err := db.GetMeta(key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("read meta", "key", key, "error", err)
		}
		return 0
	}
	n, _ := strconv.Atoi(v)
	return n
}
