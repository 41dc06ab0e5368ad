package ledger

import (
	"fmt"
	"strings"
)

// Verdict is the ledger's answer to a request.
type Verdict uint8

const (
	Accept Verdict = iota
	Refuse
	Negotiate
	Cautious
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Refuse:
		return "refuse"
	case Negotiate:
		return "negotiate"
	case Cautious:
		return "cautious"
	}
	return "unknown"
}

// Decision is a verdict plus a remark suitable for chat.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	Remark  string  `json:"remark"`
}

// EvaluateRequest decides whether to hand cp qty of item.
func (l *Ledger) EvaluateRequest(cp, item string, qty int) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[cp]
	if !ok {
		return Decision{Cautious, "never traded with you before"}
	}
	e.recompute(l.now())

	unpaidQty, unpaidCount := e.Unpaid()
	if e.CreditScore < -20 {
		return Decision{Refuse, fmt.Sprintf("you still owe me %d items, pay up first", unpaidQty)}
	}
	if unpaidCount > 2 {
		return Decision{Negotiate, fmt.Sprintf("I gave you %d things and got nothing back, bring something first", unpaidCount)}
	}

	value := l.worth(item, qty)
	switch {
	case value > RichThreshold:
		return Decision{Negotiate, fmt.Sprintf("%s x%d is expensive, what do you have to trade?", item, qty)}
	case value == 0:
		return Decision{Accept, "take it, that's worth nothing anyway"}
	case e.CreditScore > 30:
		return Decision{Accept, "here you go, you're good people"}
	}
	return Decision{Negotiate, "depends, what do I get in return?"}
}

// worth is the value of qty items, saturated just past RichThreshold so an
// absurd quantity cannot overflow into a small or negative total.
func (l *Ledger) worth(item string, qty int) int {
	v := l.values.Of(item)
	if v <= 0 || qty <= 0 {
		return 0
	}
	if qty > RichThreshold/v {
		return RichThreshold + 1
	}
	return v * qty
}

// FindTradeOpportunity proposes a trade when we hold what cp needs and cp
// holds something worth more than 3. It returns false for unknown or
// untrustworthy counterparties.
func (l *Ledger) FindTradeOpportunity(cp, theyNeed string, weHave, theyHave []string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[cp]
	if !ok {
		return "", false
	}
	e.recompute(l.now())
	if e.CreditScore < -10 {
		return "", false
	}

	have := false
	for _, it := range weHave {
		if strings.Contains(it, theyNeed) {
			have = true
			break
		}
	}
	if !have {
		return "", false
	}
	for _, it := range theyHave {
		if l.values.known(it) > 3 {
			return fmt.Sprintf("hey %s, looks like you need %s. I'll do it for 1 %s, deal?", cp, theyNeed, it), true
		}
	}
	return "", false
}
