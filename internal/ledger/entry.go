package ledger

import (
	"maps"
	"time"
)

// OldDebtAge is how long a debt stays unpaid before it counts as old. The
// comparison is on the exact duration, so a debt is old as soon as it is a
// moment past 24h rather than after 25 whole hours.
const OldDebtAge = 24 * time.Hour

// Debt is a quantity of an item owed by one side to the other.
type Debt struct {
	Item      string    `json:"item"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	Reason    string    `json:"reason,omitempty"`
	Paid      bool      `json:"paid"`
}

// Favor is a non-item service. Positive weight means they owe us.
type Favor struct {
	Description string    `json:"description"`
	Weight      int       `json:"weight"`
	At          time.Time `json:"at"`
}

// Entry is the account kept for one counterparty.
type Entry struct {
	OwedToUs    []Debt         `json:"owed_to_us"`
	WeOwe       []Debt         `json:"we_owe"`
	Favors      []Favor        `json:"favors"`
	Given       map[string]int `json:"given"`
	Received    map[string]int `json:"received"`
	CreditScore int            `json:"credit_score"`
	TradeCount  int            `json:"trade_count"`
}

func newEntry() *Entry {
	return &Entry{Given: map[string]int{}, Received: map[string]int{}}
}

// CreditScore computes a counterparty's credit from the debts they owe us:
// paid*5 - unpaid*3 - old*10, clamped to [-100, 100]. An old unpaid debt is
// penalized both by quantity and by age.
func CreditScore(owedToUs []Debt, now time.Time) int {
	paid, unpaid, old := 0, 0, 0
	for _, d := range owedToUs {
		if d.Paid {
			paid += d.Quantity
			continue
		}
		unpaid += d.Quantity
		if now.Sub(d.CreatedAt) > OldDebtAge {
			old++
		}
	}
	return max(-100, min(100, paid*5-unpaid*3-old*10))
}

func (e *Entry) recompute(now time.Time) {
	e.CreditScore = CreditScore(e.OwedToUs, now)
}

// Unpaid returns the total quantity and count of unpaid debts owed to us.
func (e *Entry) Unpaid() (quantity, count int) {
	for _, d := range e.OwedToUs {
		if !d.Paid {
			quantity += d.Quantity
			count++
		}
	}
	return quantity, count
}

// NetBalance is unpaid quantity owed to us minus unpaid quantity we owe.
// Positive means they owe us more.
func (e *Entry) NetBalance() int {
	owed, _ := e.Unpaid()
	for _, d := range e.WeOwe {
		if !d.Paid {
			owed -= d.Quantity
		}
	}
	return owed
}

// Unreturned is how many of item we gave beyond what came back.
func (e *Entry) Unreturned(item string) int {
	return max(0, e.Given[item]-e.Received[item])
}

// settle marks unpaid debts of item as paid, in order, while the remaining
// quantity covers each debt in full. Debts are never split.
func settle(debts []Debt, item string, qty int) {
	remaining := qty
	for i := range debts {
		d := &debts[i]
		if d.Paid || d.Item != item {
			continue
		}
		if remaining >= d.Quantity {
			remaining -= d.Quantity
			d.Paid = true
		}
	}
}

func (e *Entry) clone() Entry {
	c := *e
	c.OwedToUs = append([]Debt(nil), e.OwedToUs...)
	c.WeOwe = append([]Debt(nil), e.WeOwe...)
	c.Favors = append([]Favor(nil), e.Favors...)
	c.Given = maps.Clone(e.Given)
	c.Received = maps.Clone(e.Received)
	if c.Given == nil {
		c.Given = map[string]int{}
	}
	if c.Received == nil {
		c.Received = map[string]int{}
	}
	return c
}
