package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/talgya/sentinel/internal/config"
	"github.com/talgya/sentinel/internal/entropy"
	"github.com/talgya/sentinel/internal/goals"
	"github.com/talgya/sentinel/internal/ledger"
	"github.com/talgya/sentinel/internal/motor"
	"github.com/talgya/sentinel/internal/threat"
	"github.com/talgya/sentinel/internal/world"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	return nil
}

func (r *recorder) Chat(text string) error           { return r.add("chat %s", text) }
func (r *recorder) SetLook(yaw, pitch float32) error { return r.add("look %.0f %.0f", yaw, pitch) }
func (r *recorder) Jump() error                      { return r.add("jump") }
func (r *recorder) SetSprint(on bool) error          { return r.add("sprint %v", on) }
func (r *recorder) SetSneak(on bool) error           { return r.add("sneak %v", on) }
func (r *recorder) Walk(on bool) error               { return r.add("walk %v", on) }
func (r *recorder) BeginGoto(t world.BlockPos) error { return r.add("goto %v", t) }

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type sensor struct {
	mu   sync.Mutex
	snap world.Snapshot
}

func (s *sensor) Snapshot() world.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *sensor) set(snap world.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
	block   chan struct{}
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, user)
	return f.reply, f.err
}

func testConfig() config.BrainConfig {
	return config.BrainConfig{MaxReplyLen: 250, ThreatCooldownTicks: 20}
}

func newTestBrain(cfg config.BrainConfig) (*Brain, *recorder) {
	b := New(Options{Name: "Sentinel", Persona: "a test player", Config: cfg})
	rec := &recorder{}
	b.Motor = motor.NewQueue(rec, entropy.NewSeeded(1), motor.FidgetConfig{Cap: 5})
	b.rng = entropy.Constant(0.99)
	return b, rec
}

// drain steps the queue until it has been idle for a while and returns the
// commands it dequeued.
func drain(q *motor.Queue) []motor.Command {
	var out []motor.Command
	for i := 0; i < 500; i++ {
		if cmd, ok := q.Step(); ok {
			out = append(out, cmd)
		}
	}
	return out
}

func safeSnapshot(tick uint64) world.Snapshot {
	return world.Snapshot{
		Tick: tick, Health: 20, Hunger: 20, HasFood: true, Air: 10,
		DayTime: 1000, Light: 15,
	}
}

func TestTickSelectsGoal(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	b.Goals.Seed()

	b.Tick(1)
	g, ok := b.Goals.Active()
	if !ok || g.Name != "Survive the first night" {
		t.Fatalf("active = %+v, %v", g, ok)
	}
	b.Tick(2)
	if g2, _ := b.Goals.Active(); g2.ID != g.ID || g2.Attempts != 1 {
		t.Errorf("active goal changed or retried: %+v", g2)
	}
}

func TestNoSensorSkipsThreats(t *testing.T) {
	b, rec := newTestBrain(testConfig())
	for tick := uint64(1); tick <= 5; tick++ {
		b.Tick(tick)
	}
	if len(b.LastThreats()) != 0 || len(rec.list()) != 0 {
		t.Errorf("threats = %v, calls = %v", b.LastThreats(), rec.list())
	}
}

func TestCriticalThreatPreemptsThenResolves(t *testing.T) {
	b, rec := newTestBrain(testConfig())
	sens := &sensor{}
	b.Sensor = sens

	danger := safeSnapshot(1)
	danger.Yaw = 90
	danger.Entities = []world.Entity{{Name: "creeper", Kind: world.EntityExplosive, Distance: 2, FuseStarted: true}}
	sens.set(danger)

	b.Tick(1)
	g, ok := b.Goals.Active()
	if !ok || g.Name != "Emergency: explosive_proximity" || g.Priority != goals.Critical {
		t.Fatalf("active = %+v, %v", g, ok)
	}
	calls := rec.list()
	if len(calls) != 2 || calls[0] != "look -90 0" || calls[1] != "sprint true" {
		t.Errorf("flee calls = %v", calls)
	}
	if !b.Status().Emergency {
		t.Error("status does not report the emergency")
	}

	hurt := safeSnapshot(2)
	hurt.Health = 12
	sens.set(hurt)
	for tick := uint64(2); tick <= 21; tick++ {
		b.Tick(tick)
	}

	if _, ok := b.Goals.Active(); ok {
		t.Error("emergency goal still active after the threat cleared")
	}
	if completed, _ := b.Goals.Stats(); completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}
	if got := b.Threats.Accuracy(); got != 1 {
		t.Errorf("accuracy = %v, want 1 after the blast landed", got)
	}
	kinds := map[string]bool{}
	for _, e := range b.Memory.Recent(10) {
		kinds[e.Kind] = true
	}
	if !kinds["danger"] || !kinds["survived"] {
		t.Errorf("episodes = %v", b.Memory.Recent(10))
	}
}

func TestThreatCooldown(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	snap := safeSnapshot(1)
	snap.Hunger = 4 // Medium starvation, has food
	b.Sensor = world.Static(snap)

	var logged int
	for tick := uint64(1); tick <= 45; tick++ {
		b.Tick(tick)
	}
	for _, r := range b.Threats.Recent() {
		if r.Kind == threat.StarvationRisk {
			logged++
		}
	}
	if logged == 0 {
		t.Fatal("starvation never predicted")
	}
	if got := b.Motor.Stats().Executed; got != 3 {
		t.Errorf("executed %d eat commands over 45 ticks, want 3 (ticks 1, 21, 41)", got)
	}
}

func TestUrgentResponsesGoFirst(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	b.Motor.Queue(motor.Chat("hello"))

	b.enqueue([]threat.Record{
		{Kind: threat.SwarmRisk, Severity: threat.Medium, Action: threat.Response{Kind: threat.Avoid}},
		{Kind: threat.AmbushRisk, Severity: threat.High, Description: "armed", Action: threat.Response{Kind: threat.PreemptiveStrike}},
		{Kind: threat.ExplosiveProximity, Severity: threat.Critical, Action: threat.Response{Kind: threat.Sprint}},
	}, world.Snapshot{})

	var kinds []motor.Kind
	for _, c := range drain(b.Motor) {
		kinds = append(kinds, c.Kind)
	}
	want := []motor.Kind{motor.CmdFlee, motor.CmdLookAt, motor.CmdJump, motor.CmdLog, motor.CmdChat, motor.CmdFlee}
	if fmt.Sprint(kinds) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", kinds, want)
	}
}

func TestUrgentTiesKeepAssessmentOrder(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	b.enqueue([]threat.Record{
		{Kind: threat.GriefingApproach, Severity: threat.Critical, Action: threat.Response{Kind: threat.Warn, Text: "first"}},
		{Kind: threat.StarvationRisk, Severity: threat.Critical, Action: threat.Response{Kind: threat.Warn, Text: "second"}},
	}, world.Snapshot{})

	cmds := drain(b.Motor)
	if len(cmds) != 2 || cmds[0].Text != "first" || cmds[1].Text != "second" {
		t.Errorf("cmds = %v", cmds)
	}
}

func TestAway(t *testing.T) {
	for yaw, want := range map[float32]float32{0: 180, 90: -90, -90: 90, 180: 0, -180: 0} {
		if got := away(yaw); got != want {
			t.Errorf("away(%v) = %v, want %v", yaw, got, want)
		}
	}
}

func TestHandleChatRepliesInBackground(t *testing.T) {
	b, rec := newTestBrain(testConfig())
	fake := &fakeLLM{reply: "<Sentinel> sure, what do you need"}
	b.LLM = fake

	b.HandleChat("Steve", "hey Sentinel can you help")
	b.Wait()

	drain(b.Motor)
	if calls := rec.list(); len(calls) != 1 || calls[0] != "chat sure, what do you need" {
		t.Errorf("calls = %v", calls)
	}
	if len(fake.prompts) != 1 || !strings.Contains(fake.prompts[0], "<Steve> hey Sentinel can you help") {
		t.Errorf("prompts = %v", fake.prompts)
	}
	chat := b.RecentChat(5)
	if len(chat) != 2 || chat[1] != "<Sentinel> sure, what do you need" {
		t.Errorf("chat history = %v", chat)
	}
	if p, ok := b.Social.Profile("Steve"); !ok || p.TimesMet != 1 {
		t.Errorf("profile = %+v, %v", p, ok)
	}
}

func TestHandleChatFailureIsDropped(t *testing.T) {
	b, rec := newTestBrain(testConfig())
	b.LLM = &fakeLLM{err: errors.New("quota")}

	b.HandleChat("Steve", "hi")
	b.Wait()
	drain(b.Motor)
	if len(rec.list()) != 0 {
		t.Errorf("calls = %v", rec.list())
	}
}

func TestHandleChatIgnoresSelfAndSilence(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	fake := &fakeLLM{reply: "x"}
	b.LLM = fake

	b.HandleChat("Sentinel", "hello")
	b.HandleChat("Steve", "nice weather today")
	b.Wait()

	if len(fake.prompts) != 0 {
		t.Errorf("replied to %v", fake.prompts)
	}
	if _, ok := b.Social.Profile("Sentinel"); ok {
		t.Error("own message recorded as a player")
	}
}

func TestTradeRequestOfflineUsesLedger(t *testing.T) {
	b, rec := newTestBrain(testConfig())
	b.Ledger.RecordGift("Steve", "iron_ingot", 4, "tools")
	b.Ledger.RecordGift("Steve", "iron_ingot", 4, "more tools")

	b.HandleChat("Steve", "can i have 2 diamonds?")
	drain(b.Motor)

	calls := rec.list()
	if len(calls) != 1 || !strings.Contains(calls[0], "you still owe me 8 items") {
		t.Errorf("calls = %v", calls)
	}
}

func TestReplyCooldownAndRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.ReplyCooldown = 5 * time.Second
	b, _ := newTestBrain(cfg)
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }
	fake := &fakeLLM{reply: "ok"}
	b.LLM = fake

	b.HandleChat("Steve", "help")
	b.HandleChat("Alex", "help")
	b.Wait()
	if len(fake.prompts) != 1 {
		t.Fatalf("replies inside cooldown = %d, want 1", len(fake.prompts))
	}

	cfg.ReplyCooldown = 0
	cfg.ChatPerMinute = 1
	b.SetConfig(cfg)
	b.HandleChat("Steve", "help")
	b.HandleChat("Steve", "help")
	b.HandleChat("Alex", "help")
	b.Wait()
	if len(fake.prompts) != 3 {
		t.Errorf("prompts = %d, want 3 (second Steve message limited)", len(fake.prompts))
	}
}

func TestSlowModelNeverBlocksTick(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	fake := &fakeLLM{reply: "late", block: make(chan struct{})}
	b.LLM = fake

	b.HandleChat("Steve", "hey")
	done := make(chan struct{})
	go func() {
		for tick := uint64(1); tick <= 100; tick++ {
			b.Tick(tick)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ticks stalled behind a pending reply")
	}

	b.Stop()
	b.Wait()
	if b.Motor.Len() != 0 {
		t.Error("cancelled reply was queued")
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	var ran atomic.Bool
	b.Dispatch("boom", func(context.Context) { panic("kaboom") })
	b.Dispatch("fine", func(context.Context) { ran.Store(true) })
	b.Wait()
	if !ran.Load() {
		t.Error("second task did not run")
	}
}

func TestSaveEveryNReplies(t *testing.T) {
	cfg := testConfig()
	cfg.SaveEvery = 2
	b, _ := newTestBrain(cfg)
	var saves atomic.Int32
	b.Save = func() error { saves.Add(1); return nil }
	b.LLM = &fakeLLM{reply: "yo"}

	for i := 0; i < 5; i++ {
		b.HandleChat("Steve", "hey")
		b.Wait()
	}
	if got := saves.Load(); got != 2 {
		t.Errorf("saves = %d, want 2", got)
	}
}

func TestHandleTrade(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	b.HandleTrade("Steve", "iron_ingot", 3, true, "lent for tools")
	b.HandleTrade("Steve", "iron_ingot", 3, false, "")

	e, _ := b.Ledger.Entry("Steve")
	if len(e.OwedToUs) != 1 || !e.OwedToUs[0].Paid {
		t.Errorf("debt not settled: %+v", e.OwedToUs)
	}
	if p, _ := b.Social.Profile("Steve"); p.Trust != 24 || len(p.Notes) != 1 {
		t.Errorf("profile = %+v", p)
	}

	b.HandleTrade("Alex", "bread", 2, false, "")
	if e, _ := b.Ledger.Entry("Alex"); e.Received["bread"] != 2 {
		t.Errorf("Alex entry = %+v", e)
	}
	if d := b.Ledger.EvaluateRequest("Steve", "diamond", 1); d.Verdict == ledger.Refuse {
		t.Errorf("refused after repayment: %+v", d)
	}
	if e, _ := b.Ledger.Entry("Steve"); e.CreditScore != 15 {
		t.Errorf("credit = %d, want 15", e.CreditScore)
	}
}

func TestStateRestore(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	b.Goals.Seed()
	b.Tick(1)
	b.HandleTrade("Steve", "diamond", 1, true, "")
	b.HandleChat("Steve", "thanks")

	st := b.State()
	r, _ := newTestBrain(testConfig())
	r.Restore(st)

	if g, ok := r.Goals.Active(); !ok || g.Name != "Survive the first night" {
		t.Errorf("restored active = %+v, %v", g, ok)
	}
	if _, ok := r.Ledger.Entry("Steve"); !ok {
		t.Error("ledger not restored")
	}
	if r.Social.Trust("Steve") != b.Social.Trust("Steve") {
		t.Error("trust not restored")
	}
	if r.Memory.Len() != b.Memory.Len() {
		t.Errorf("episodes = %d, want %d", r.Memory.Len(), b.Memory.Len())
	}
}

func TestDetectTradeRequest(t *testing.T) {
	tests := []struct {
		text string
		item string
		qty  int
		ok   bool
	}{
		{"can i have 3 diamonds?", "diamond", 3, true},
		{"Got any IRON", "iron_ingot", 1, true},
		{"lend me a golden apple pls", "enchanted_golden_apple", 1, true},
		{"trade you 16x cobble", "cobblestone", 16, true},
		{"need some stuff", "item", 1, true},
		{"give me 922337203685477581 diamonds", "diamond", MaxRequestQty, true},
		{"give me 99999999999999999999999 iron", "iron_ingot", MaxRequestQty, true},
		{"give me -5 iron", "iron_ingot", 1, true},
		{"nice base", "", 0, false},
	}
	for _, tt := range tests {
		item, qty, ok := DetectTradeRequest(tt.text)
		if item != tt.item || qty != tt.qty || ok != tt.ok {
			t.Errorf("DetectTradeRequest(%q) = %q, %d, %v", tt.text, item, qty, ok)
		}
	}
}

func TestBoredomMakesUpGoal(t *testing.T) {
	b, rec := newTestBrain(testConfig())

	for tick := uint64(1); tick < BoredomTicks; tick++ {
		b.Tick(tick)
	}
	if n := len(b.Goals.Snapshot()); n != 0 {
		t.Fatalf("%d goals before boredom set in", n)
	}

	b.Tick(BoredomTicks)
	snap := b.Goals.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("goals = %d, want 1", len(snap))
	}
	if snap[0].Name != "Open a trading shop" || snap[0].Priority != goals.Background {
		t.Errorf("made-up goal = %+v", snap[0])
	}

	b.Tick(BoredomTicks + 1)
	if g, ok := b.Goals.Active(); !ok || g.ID != snap[0].ID {
		t.Errorf("made-up goal not selected: %+v, %v", g, ok)
	}
	drain(b.Motor)
	found := false
	for _, c := range rec.list() {
		if c == "chat hmm you know what, gonna be the official merchant of this server" {
			found = true
		}
	}
	if !found {
		t.Errorf("no chat line announcing the idea: %v", rec.list())
	}

	// Idle again, but still inside the cooldown.
	b.Goals.Complete()
	tick := uint64(BoredomTicks + 2)
	for ; tick < 2*BoredomTicks+10; tick++ {
		b.Tick(tick)
	}
	if n := len(b.Goals.Snapshot()); n != 1 {
		t.Fatalf("goals = %d during cooldown, want 1", n)
	}

	b.mu.Lock()
	b.lastDream = time.Now().Add(-DreamCooldown - time.Minute)
	b.mu.Unlock()
	b.Tick(tick)
	if n := len(b.Goals.Snapshot()); n != 2 {
		t.Errorf("goals = %d after cooldown, want 2", n)
	}
	if st := b.Status(); st.Dreams != 2 {
		t.Errorf("dreams = %d, want 2", st.Dreams)
	}
}

func TestDreamFollowsMood(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	d, ok := b.dream(Scared)
	if !ok || d.idea != "Build an obsidian bunker" {
		t.Errorf("dream(Scared) = %+v, %v", d, ok)
	}
	for _, mood := range []Mood{Chill, Hyped, Grumpy, Focused, Scared, Annoyed, Generous, Suspicious} {
		d, _ := b.dream(mood)
		if !d.anyMood && d.mood != mood {
			t.Errorf("dream(%v) picked %q meant for %v", mood, d.idea, d.mood)
		}
	}
}

func TestMoodColorsPromptAndSettles(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	b.rng = entropy.Constant(0.1)
	b.feel(Scared, 0.9)

	mood := b.chatContext("Steve", "hi", "").Mood
	if !strings.Contains(mood, "scared, jumpy (90%)") || !strings.Contains(mood, "Sound urgent") {
		t.Errorf("mood prompt = %q", mood)
	}

	for tick := uint64(1); tick <= 100*TicksPerSecond; tick++ {
		b.Tick(tick)
	}
	if m, _ := b.Mood(); m != Chill {
		t.Errorf("mood after 100s = %v, want chill", m)
	}
}

func TestMoodEvents(t *testing.T) {
	b, _ := newTestBrain(testConfig())
	b.HandleChat("Alex", "nice weather")
	if m, _ := b.Mood(); m != Suspicious {
		t.Errorf("after meeting a stranger mood = %v, want suspicious", m)
	}
	b.HandleTrade("Alex", "bread", 2, true, "hungry")
	if m, _ := b.Mood(); m != Generous {
		t.Errorf("after giving mood = %v, want generous", m)
	}
}
