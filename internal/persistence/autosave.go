package persistence

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Autosaver runs a save function on a cron schedule.
type Autosaver struct {
	cron *cron.Cron
	id   cron.EntryID
	save func() error
	runs atomic.Int64
}

// NewAutosaver schedules save with spec, which accepts standard five-field
// expressions and descriptors such as "@every 5m".
func NewAutosaver(spec string, save func() error) (*Autosaver, error) {
	a := &Autosaver{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		save: save,
	}
	id, err := a.cron.AddFunc(spec, a.run)
	if err != nil {
		return nil, fmt.Errorf("autosave schedule %q: %w", spec, err)
	}
	a.id = id
	return a, nil
}

// Start begins the schedule in the background.
func (a *Autosaver) Start() {
	a.cron.Start()
	slog.Info("autosave scheduled", "next", a.Next())
}

// Stop halts the schedule and waits for a running save to finish.
func (a *Autosaver) Stop() {
	<-a.cron.Stop().Done()
}

// Next returns when the next save is due.
func (a *Autosaver) Next() time.Time {
	return a.cron.Entry(a.id).Next
}

// Runs is the number of saves attempted so far.
func (a *Autosaver) Runs() int {
	return int(a.runs.Load())
}

func (a *Autosaver) run() {
	a.runs.Add(1)
	start := time.Now()
	if err := a.save(); err != nil {
		slog.Error("autosave failed", "error", err)
		return
	}
	slog.Debug("autosave complete", "took", time.Since(start))
}
