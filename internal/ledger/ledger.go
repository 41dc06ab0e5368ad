// Package ledger keeps a per-counterparty account of debts, favors and
// credit, and decides how to answer requests for items.
package ledger

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Ledger is safe for concurrent use.
type Ledger struct {
	mu          sync.Mutex
	entries     map[string]*Entry
	values      Values
	totalTrades int
	now         func() time.Time
}

// New creates an empty ledger using the given price table.
func New(values Values) *Ledger {
	if values == nil {
		values = NewValues(nil)
	}
	return &Ledger{
		entries: make(map[string]*Entry),
		values:  values,
		now:     time.Now,
	}
}

func (l *Ledger) entry(cp string) *Entry {
	e, ok := l.entries[cp]
	if !ok {
		e = newEntry()
		l.entries[cp] = e
	}
	return e
}

// RecordGift records that we gave cp an item; cp now owes it back.
func (l *Ledger) RecordGift(cp, item string, qty int, reason string) {
	if qty <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.entry(cp)
	e.Given[item] += qty
	e.OwedToUs = append(e.OwedToUs, Debt{Item: item, Quantity: qty, CreatedAt: now, Reason: reason})
	e.recompute(now)
	slog.Info("ledger gift", "to", cp, "item", item, "qty", qty, "reason", reason, "credit", e.CreditScore)
}

// RecordReceived records that cp gave us an item. Debts we owe cp for that
// item are paid off in order while the quantity covers each in full.
func (l *Ledger) RecordReceived(cp, item string, qty int) {
	if qty <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.entry(cp)
	e.Received[item] += qty
	settle(e.WeOwe, item, qty)
	e.TradeCount++
	l.totalTrades++
	e.recompute(now)
	slog.Info("ledger received", "from", cp, "item", item, "qty", qty, "credit", e.CreditScore)
}

// RecordLoan records that cp lent us an item; we now owe it back.
func (l *Ledger) RecordLoan(cp, item string, qty int, reason string) {
	if qty <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.entry(cp)
	e.Received[item] += qty
	e.WeOwe = append(e.WeOwe, Debt{Item: item, Quantity: qty, CreatedAt: now, Reason: reason})
	e.recompute(now)
}

// RecordRepayment records cp returning items they owe us. Debts are settled
// with the same whole-debt rule as RecordReceived.
func (l *Ledger) RecordRepayment(cp, item string, qty int) {
	if qty <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.entry(cp)
	e.Received[item] += qty
	settle(e.OwedToUs, item, qty)
	e.TradeCount++
	l.totalTrades++
	e.recompute(now)
	slog.Info("ledger repayment", "from", cp, "item", item, "qty", qty, "credit", e.CreditScore)
}

// RecordFavor notes a service. Positive weight means cp owes us.
func (l *Ledger) RecordFavor(cp, description string, weight int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.entry(cp)
	e.Favors = append(e.Favors, Favor{Description: description, Weight: weight, At: now})
	e.recompute(now)
}

// Entry returns a copy of cp's account.
func (l *Ledger) Entry(cp string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[cp]
	if !ok {
		return Entry{}, false
	}
	e.recompute(l.now())
	return e.clone(), true
}

// Entries returns copies of all accounts, keyed by counterparty.
func (l *Ledger) Entries() map[string]Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make(map[string]Entry, len(l.entries))
	for cp, e := range l.entries {
		e.recompute(now)
		out[cp] = e.clone()
	}
	return out
}

// Restore replaces all accounts. Credit scores are recomputed rather than
// trusted from the input.
func (l *Ledger) Restore(entries map[string]Entry, totalTrades int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.entries = make(map[string]*Entry, len(entries))
	for cp, e := range entries {
		c := e.clone()
		c.recompute(now)
		l.entries[cp] = &c
	}
	l.totalTrades = totalTrades
}

// TotalTrades is the number of completed exchanges across all accounts.
func (l *Ledger) TotalTrades() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalTrades
}

// Value returns the price of one unit of item.
func (l *Ledger) Value(item string) int {
	return l.values.Of(item)
}

// Summary describes all accounts for a language-model context.
func (l *Ledger) Summary() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	names := make([]string, 0, len(l.entries))
	for cp := range l.entries {
		names = append(names, cp)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "Total trades: %d\n", l.totalTrades)
	for _, cp := range names {
		e := l.entries[cp]
		e.recompute(now)

		balance := "even"
		switch n := e.NetBalance(); {
		case n > 0:
			balance = fmt.Sprintf("owes us %d items", n)
		case n < 0:
			balance = fmt.Sprintf("we owe %d items", -n)
		}
		fmt.Fprintf(&b, "  %s: %s, credit %d", cp, balance, e.CreditScore)
		if oldest, ok := oldestUnpaid(e.OwedToUs); ok {
			fmt.Fprintf(&b, ", oldest debt %s", humanize.RelTime(oldest, now, "ago", "from now"))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func oldestUnpaid(debts []Debt) (time.Time, bool) {
	var oldest time.Time
	found := false
	for _, d := range debts {
		if d.Paid {
			continue
		}
		if !found || d.CreatedAt.Before(oldest) {
			oldest = d.CreatedAt
			found = true
		}
	}
	return oldest, found
}
