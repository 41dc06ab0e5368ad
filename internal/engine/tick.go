// Package engine provides the fixed-rate tick loop that drives the agent.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TickSchedule defines when each layer runs relative to the tick counter.
const (
	TicksPerSecond = 20
	TicksPerMinute = 60 * TicksPerSecond
)

// Engine drives the agent forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Interval time.Duration // Tick interval (default 50ms)

	// Callbacks for each tick layer, populated during setup.
	OnTick   func(tick uint64) // Every tick
	OnSecond func(tick uint64) // Every 20 ticks
	OnMinute func(tick uint64) // Every 1200 ticks

	running  atomic.Bool
	overruns atomic.Uint64
	stopOnce sync.Once
	stop     chan struct{}
}

// NewEngine creates an engine ticking at TicksPerSecond.
func NewEngine() *Engine {
	return &Engine{
		Interval: time.Second / TicksPerSecond,
		stop:     make(chan struct{}),
	}
}

// Run starts the tick loop. Blocks until Stop is called. A tick that runs
// over its interval is logged and the next one starts immediately; missed
// ticks are not replayed.
func (e *Engine) Run() {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("engine started", "tick", e.Tick, "interval", e.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-e.stop:
			slog.Info("engine stopped", "tick", e.Tick, "overruns", e.overruns.Load())
			return
		case <-timer.C:
		}

		start := time.Now()
		e.step()

		elapsed := time.Since(start)
		if elapsed > e.Interval {
			if e.overruns.Add(1)%100 == 1 {
				slog.Warn("tick overran", "tick", e.Tick, "elapsed", elapsed, "interval", e.Interval)
			}
			elapsed = e.Interval
		}
		timer.Reset(e.Interval - elapsed)
	}
}

// Stop halts the tick loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Running reports whether Run is executing.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Overruns counts ticks that took longer than the interval.
func (e *Engine) Overruns() uint64 {
	return e.overruns.Load()
}

// step advances the engine by one tick.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.Tick%TicksPerSecond == 0 && e.OnSecond != nil {
		e.OnSecond(e.Tick)
	}
	if e.Tick%TicksPerMinute == 0 && e.OnMinute != nil {
		e.OnMinute(e.Tick)
	}
}

// Uptime returns a human-readable duration for a tick count.
func Uptime(tick uint64) string {
	secs := tick / TicksPerSecond
	return fmt.Sprintf("%dh%02dm%02ds", secs/3600, secs/60%60, secs%60)
}
