package persistence

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/talgya/sentinel/internal/goals"
	"github.com/talgya/sentinel/internal/ledger"
	"github.com/talgya/sentinel/internal/memory"
	"github.com/talgya/sentinel/internal/social"
	"github.com/talgya/sentinel/internal/world"
)

func sampleState() State {
	s := goals.NewScheduler()
	s.Seed()
	s.SelectNext()

	l := ledger.New(ledger.NewValues(nil))
	l.RecordGift("Steve", "iron_ingot", 3, "tools")
	l.RecordLoan("Alex", "bread", 2, "hungry")

	b := social.NewBook()
	b.RecordInteraction("Steve", 5)
	b.RecordMessage("Steve", "hi")

	m := memory.NewStore()
	m.Add(memory.Episode{Tick: 40, Kind: "server_join", Description: "joined", Impact: 1})
	m.SetHome(world.BlockPos{X: 10, Y: 64, Z: -3})

	return State{
		SavedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Goals:       s.State(),
		Ledger:      l.Entries(),
		TotalTrades: l.TotalTrades(),
		Profiles:    b.Profiles(),
		Memory:      m.Snapshot(),
	}
}

func checkState(t *testing.T, want, got State) {
	t.Helper()
	if !got.SavedAt.Equal(want.SavedAt) {
		t.Errorf("SavedAt = %v, want %v", got.SavedAt, want.SavedAt)
	}
	if len(got.Goals.Goals) != len(want.Goals.Goals) || got.Goals.Active != want.Goals.Active {
		t.Fatalf("goals = %d active %q, want %d active %q",
			len(got.Goals.Goals), got.Goals.Active, len(want.Goals.Goals), want.Goals.Active)
	}
	for i := range want.Goals.Goals {
		if got.Goals.Goals[i].Name != want.Goals.Goals[i].Name {
			t.Errorf("goal %d = %q, want %q", i, got.Goals.Goals[i].Name, want.Goals.Goals[i].Name)
		}
	}
	if e := got.Ledger["Steve"]; len(e.OwedToUs) != 1 || e.OwedToUs[0].Quantity != 3 {
		t.Errorf("Steve entry = %+v", e)
	}
	if e := got.Ledger["Alex"]; len(e.WeOwe) != 1 {
		t.Errorf("Alex entry = %+v", e)
	}
	if len(got.Profiles) != 1 || got.Profiles[0].Trust != want.Profiles[0].Trust {
		t.Errorf("profiles = %+v", got.Profiles)
	}
	if len(got.Memory.Episodes) != 1 || got.Memory.Home == nil || got.Memory.Home.X != 10 {
		t.Errorf("memory = %+v", got.Memory)
	}
	if len(got.Memory.Places) != 1 || got.Memory.Places[0].Name != "home" {
		t.Errorf("places = %+v", got.Memory.Places)
	}
}

func TestSaveLoadState(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "sentinel.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if db.HasState() {
		t.Fatal("fresh database reports state")
	}
	want := sampleState()
	if err := db.SaveState(want); err != nil {
		t.Fatal(err)
	}
	if !db.HasState() {
		t.Fatal("HasState false after save")
	}
	got, err := db.LoadState()
	if err != nil {
		t.Fatal(err)
	}
	checkState(t, want, got)

	// A second save fully replaces the first.
	want.Profiles = nil
	if err := db.SaveState(want); err != nil {
		t.Fatal(err)
	}
	got, _ = db.LoadState()
	if len(got.Profiles) != 0 {
		t.Errorf("profiles survived a replace: %+v", got.Profiles)
	}
}

func TestRestoreIntoSubsystems(t *testing.T) {
	st := sampleState()
	s := goals.NewScheduler()
	s.Restore(st.Goals)
	if g, ok := s.Active(); !ok || g.Name != "Survive the first night" {
		t.Errorf("active = %+v, %v", g, ok)
	}
	l := ledger.New(ledger.NewValues(nil))
	l.Restore(st.Ledger, st.TotalTrades)
	if d := l.EvaluateRequest("Steve", "diamond", 1); d.Verdict == ledger.Cautious {
		t.Error("restored counterparty treated as unknown")
	}
}

func TestMeta(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.GetMeta("missing"); err == nil {
		t.Error("missing key returned no error")
	}
	if err := db.SaveMeta("server", "play.example.net"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.GetMeta("server"); err != nil || v != "play.example.net" {
		t.Errorf("GetMeta = %q, %v", v, err)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := sampleState()

	path, err := Export(dir, "Sentinel", want)
	if err != nil {
		t.Fatal(err)
	}
	latest, err := Latest(dir)
	if err != nil || latest != path {
		t.Errorf("Latest = %q, %v, want %q", latest, err, path)
	}

	hdr, got, err := Import(path)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Agent != "Sentinel" || hdr.Version != archiveVersion {
		t.Errorf("header = %+v", hdr)
	}
	checkState(t, want, got)
}

func TestLatestEmpty(t *testing.T) {
	if p, err := Latest(t.TempDir()); err != nil || p != "" {
		t.Errorf("Latest = %q, %v", p, err)
	}
}

func TestAutosaver(t *testing.T) {
	if _, err := NewAutosaver("not a schedule", func() error { return nil }); err == nil {
		t.Error("invalid spec accepted")
	}

	var saves atomic.Int32
	a, err := NewAutosaver("@every 1s", func() error {
		saves.Add(1)
		return errors.New("disk full")
	})
	if err != nil {
		t.Fatal(err)
	}
	a.Start()
	deadline := time.Now().Add(5 * time.Second)
	for saves.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	a.Stop()

	if saves.Load() == 0 || a.Runs() == 0 {
		t.Error("autosave never ran")
	}
}
