// Package brain is the orchestrator. Each tick it schedules goals, reacts to
// predicted threats and steps the action queue; chat replies run in the
// background and never hold up a tick.
package brain

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/talgya/sentinel/internal/config"
	"github.com/talgya/sentinel/internal/entropy"
	"github.com/talgya/sentinel/internal/goals"
	"github.com/talgya/sentinel/internal/ledger"
	"github.com/talgya/sentinel/internal/memory"
	"github.com/talgya/sentinel/internal/motor"
	"github.com/talgya/sentinel/internal/ratelimit"
	"github.com/talgya/sentinel/internal/social"
	"github.com/talgya/sentinel/internal/threat"
	"github.com/talgya/sentinel/internal/world"
)

const (
	// TicksPerSecond is the engine rate the brain is tuned for.
	TicksPerSecond = 20

	backgroundTimeout = 45 * time.Second
	chatHistoryCap    = 20
	chatHistoryDrop   = 10
	emergencyPrefix   = "Emergency: "
)

// Completer produces text for a prompt. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Options configures a Brain.
type Options struct {
	Name      string
	Persona   string
	MaxTokens int
	Config    config.BrainConfig
}

// Brain wires the subsystems together. The exported collaborators may be
// replaced after New and before the first Tick.
type Brain struct {
	Goals   *goals.Scheduler
	Threats *threat.Predictor
	Ledger  *ledger.Ledger
	Motor   *motor.Queue
	Social  *social.Book
	Memory  *memory.Store

	Sensor world.Sensor // Nil disables threat assessment
	LLM    Completer    // Nil answers trade requests with canned remarks only
	Save   func() error // Called every SaveEvery replies

	name      string
	persona   string
	maxTokens int
	rng       entropy.Source
	now       func() time.Time

	mu          sync.Mutex
	cfg         config.BrainConfig
	limiter     *ratelimit.Limiter
	tick        uint64
	lastReply   time.Time
	replies     int
	cooldowns   map[threat.Kind]uint64
	emergency   bool
	emergencyAt uint64
	lastThreats []threat.Record
	prevHealth  float64
	urgentSeen  bool
	chat        []string
	mood        moodState
	idleTicks   uint64
	lastDream   time.Time
	dreams      int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a brain with fresh subsystems and no sensor or text model.
func New(opts Options) *Brain {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 150
	}
	return &Brain{
		Goals:     goals.NewScheduler(),
		Threats:   threat.NewPredictor(),
		Ledger:    ledger.New(ledger.NewValues(nil)),
		Motor:     motor.NewQueue(nil, nil, motor.DefaultFidget()),
		Social:    social.NewBook(),
		Memory:    memory.NewStore(),
		name:      opts.Name,
		persona:   opts.Persona,
		maxTokens: opts.MaxTokens,
		rng:       entropy.Crypto{},
		now:       time.Now,
		cfg:       opts.Config,
		limiter:   ratelimit.New(opts.Config.ChatPerMinute, time.Minute),
		cooldowns: make(map[threat.Kind]uint64),
		mood:      newMoodState(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Name is the agent's in-game name.
func (b *Brain) Name() string { return b.name }

// SetConfig applies new tuning. Safe to call while ticking.
func (b *Brain) SetConfig(cfg config.BrainConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cfg.ChatPerMinute != b.cfg.ChatPerMinute {
		b.limiter = ratelimit.New(cfg.ChatPerMinute, time.Minute)
	}
	b.cfg = cfg
}

func (b *Brain) config() config.BrainConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// Tick runs one decision cycle: goals, threats, then one motor step.
func (b *Brain) Tick(tick uint64) {
	b.mu.Lock()
	b.tick = tick
	b.mu.Unlock()

	var snap world.Snapshot
	if b.Sensor != nil {
		snap = b.Sensor.Snapshot()
	}

	b.scheduleGoals(tick)
	if snap.Valid() {
		b.react(tick, snap)
	}
	b.Motor.UpdateContext(snap.Position, snap.Yaw, snap.Pitch, len(snap.Players()) > 0)
	b.Motor.Step()
}

func (b *Brain) scheduleGoals(tick uint64) {
	if tick%TicksPerSecond == 0 {
		if n := b.Goals.AbandonOverdue(b.now()); n > 0 {
			slog.Info("abandoned overdue goals", "count", n)
		}
		b.mu.Lock()
		b.mood.settle()
		b.mu.Unlock()
	}
	if _, ok := b.Goals.Active(); ok {
		b.resetIdle()
		return
	}
	g, ok := b.Goals.SelectNext()
	if !ok {
		b.idle(tick)
		return
	}
	b.resetIdle()
	slog.Info("goal selected", "goal", g.Name, "priority", g.Priority, "attempt", g.Attempts)
	b.Motor.Queue(motor.Log("working on: " + g.Name))
	if strings.Contains(strings.ToLower(g.Name), "mine") {
		b.feel(Focused, 0.6)
	}
}

// Minute runs housekeeping that does not need tick resolution.
func (b *Brain) Minute() {
	b.mu.Lock()
	limiter := b.limiter
	b.mu.Unlock()
	if n := limiter.Cleanup(); n > 0 {
		slog.Debug("chat limiter cleanup", "removed", n)
	}
	slog.Debug("brain status", "threats", b.Threats.Summary(), "queue", b.Motor.Len())
}

// Dispatch runs fn in a detached goroutine with a bounded context. Panics
// are logged and swallowed; the caller never waits.
func (b *Brain) Dispatch(name string, fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background task panicked", "task", name, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(b.ctx, backgroundTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// Stop cancels background work in flight.
func (b *Brain) Stop() {
	b.cancel()
}

// Wait blocks until all dispatched work has returned.
func (b *Brain) Wait() {
	b.wg.Wait()
}

func (b *Brain) currentTick() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tick
}

func (b *Brain) save() {
	if b.Save == nil {
		return
	}
	if err := b.Save(); err != nil {
		slog.Warn("save failed", "error", err)
	}
}
