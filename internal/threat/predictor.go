package threat

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
)

const (
	historyCap  = 10
	historyDrop = 5
)

// Predictor keeps recent predictions and how many proved right.
type Predictor struct {
	mu      sync.Mutex
	history []Record
	made    int
	correct int
}

// NewPredictor creates an empty predictor.
func NewPredictor() *Predictor {
	return &Predictor{}
}

// Record adds a prediction to the history. When the history exceeds its cap
// the oldest entries are dropped in bulk.
func (p *Predictor) Record(r Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.made++
	p.history = append(p.history, r)
	if len(p.history) > historyCap {
		p.history = append(p.history[:0:0], p.history[historyDrop:]...)
	}
	slog.Debug("threat predicted", "kind", r.Kind, "severity", r.Severity, "action", r.Action, "desc", r.Description)
}

// RecordCorrect marks one prediction as confirmed.
func (p *Predictor) RecordCorrect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.correct++
}

// Accuracy is the fraction of predictions confirmed correct.
func (p *Predictor) Accuracy() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accuracy()
}

func (p *Predictor) accuracy() float64 {
	return float64(p.correct) / float64(max(p.made, 1))
}

// Recent returns a copy of the rolling history, oldest first.
func (p *Predictor) Recent() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Record(nil), p.history...)
}

// MostUrgent returns the most urgent prediction in the history.
func (p *Predictor) MostUrgent() (Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return MostUrgent(p.history)
}

// Summary describes prediction activity for a language-model context.
func (p *Predictor) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("Predictions: %d recent | %s total | accuracy %.0f%%",
		len(p.history), humanize.Comma(int64(p.made)), p.accuracy()*100)
}
