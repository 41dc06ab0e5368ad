package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/talgya/sentinel/internal/entropy"
	"github.com/talgya/sentinel/internal/ledger"
	"github.com/talgya/sentinel/internal/llm"
	"github.com/talgya/sentinel/internal/memory"
	"github.com/talgya/sentinel/internal/motor"
	"github.com/talgya/sentinel/internal/social"
)

// MaxRequestQty caps a quantity read from chat: a full inventory of stacks.
const MaxRequestQty = 36 * 64

var tradeKeywords = []string{
	"give me", "can i have", "can i get", "lend", "borrow", "trade",
	"need some", "spare", "got any", "have any",
}

// itemWords maps chat words to ledger item names. Longer phrases come first
// so "golden apple" is not read as gold.
var itemWords = []struct{ word, item string }{
	{"golden apple", "enchanted_golden_apple"},
	{"netherite", "netherite_ingot"},
	{"diamond", "diamond"},
	{"emerald", "emerald"},
	{"iron", "iron_ingot"},
	{"gold", "gold_ingot"},
	{"redstone", "redstone"},
	{"coal", "coal"},
	{"bread", "bread"},
	{"porkchop", "cooked_porkchop"},
	{"food", "bread"},
	{"totem", "totem_of_undying"},
	{"elytra", "elytra"},
	{"cobble", "cobblestone"},
	{"wood", "oak_log"},
	{"log", "oak_log"},
}

// replyTriggers are words that make the agent chime in regardless of mood.
var replyTriggers = map[string]bool{
	"lag": true, "bot": true, "farm": true, "mine": true, "build": true,
	"help": true, "diamond": true, "diamonds": true, "redstone": true,
	"base": true, "hi": true, "hey": true, "hello": true, "sup": true,
	"died": true, "anyone": true,
}

// DetectTradeRequest reports whether text asks for items, and which. The
// quantity is the first number in the message, 1 when there is none, capped
// at MaxRequestQty. An unrecognized item is reported as "item".
func DetectTradeRequest(text string) (item string, qty int, ok bool) {
	lower := strings.ToLower(text)
	for _, kw := range tradeKeywords {
		if strings.Contains(lower, kw) {
			ok = true
			break
		}
	}
	if !ok {
		return "", 0, false
	}

	item = "item"
	for _, w := range itemWords {
		if strings.Contains(lower, w.word) {
			item = w.item
			break
		}
	}
	qty = 1
	for _, f := range strings.Fields(lower) {
		n, err := strconv.Atoi(strings.Trim(f, "x?!.,"))
		if errors.Is(err, strconv.ErrRange) && n > 0 {
			err = nil
		}
		if err == nil && n > 0 {
			qty = min(n, MaxRequestQty)
			break
		}
	}
	return item, qty, true
}

func hasTrigger(text string) bool {
	for _, f := range strings.Fields(strings.ToLower(text)) {
		if replyTriggers[strings.Trim(f, "?!.,:;")] {
			return true
		}
	}
	return false
}

// HandleChat reacts to a chat line from sender. Bookkeeping happens inline;
// the reply itself, if any, is produced in the background.
func (b *Brain) HandleChat(sender, text string) {
	sender = strings.TrimSpace(sender)
	if sender == "" || strings.EqualFold(sender, b.name) {
		return
	}
	tick := b.currentTick()

	prof := b.Social.RecordMessage(sender, text)
	if prof.TimesMet == 1 {
		b.feel(Suspicious, 0.4)
		b.Memory.Add(memory.Episode{
			Tick:        tick,
			Kind:        "met_player",
			Description: "met " + sender + " for the first time",
			Players:     []string{sender},
			Impact:      1,
		})
	}
	b.pushChat(sender, text)

	var (
		decision *ledger.Decision
		hint     string
	)
	if item, qty, ok := DetectTradeRequest(text); ok {
		d := b.Ledger.EvaluateRequest(sender, item, qty)
		decision = &d
		if d.Verdict == ledger.Refuse {
			b.feel(Annoyed, 0.6)
		}
		hint = fmt.Sprintf("TRADE REQUEST: %s wants %d %s. Your ledger says %s: %s", sender, qty, item, d.Verdict, d.Remark)
		slog.Info("trade request", "player", sender, "item", item, "qty", qty, "verdict", d.Verdict)
	}

	mentioned := b.name != "" && strings.Contains(strings.ToLower(text), strings.ToLower(b.name))
	if decision == nil && !b.wantsToReply(sender, text, mentioned) {
		return
	}

	b.mu.Lock()
	limiter := b.limiter
	b.mu.Unlock()
	if !limiter.Allow(sender) {
		slog.Debug("chat reply rate limited", "player", sender)
		return
	}
	if !b.takeReplySlot() {
		return
	}

	if b.LLM == nil {
		if decision != nil {
			b.sendReply(decision.Remark)
		}
		return
	}

	system, user := llm.BuildChatPrompt(b.chatContext(sender, text, hint))
	b.Dispatch("chat reply", func(ctx context.Context) {
		raw, err := b.LLM.Complete(ctx, system, user, b.maxTokens)
		if err != nil {
			slog.Warn("chat reply failed", "player", sender, "error", err)
			return
		}
		b.sendReply(raw)
	})
}

// wantsToReply applies the reply policy: mentions and trigger words always
// get an answer, otherwise the relationship decides.
func (b *Brain) wantsToReply(sender, text string, mentioned bool) bool {
	if mentioned || hasTrigger(text) {
		return true
	}
	switch b.Social.StyleFor(sender) {
	case social.Friendly:
		return true
	case social.Casual:
		return entropy.Chance(b.rng, 0.6)
	case social.Cautious:
		return entropy.Chance(b.rng, 0.3)
	}
	return false
}

// takeReplySlot enforces the global reply cooldown.
func (b *Brain) takeReplySlot() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if !b.lastReply.IsZero() && now.Sub(b.lastReply) < b.cfg.ReplyCooldown {
		return false
	}
	b.lastReply = now
	return true
}

func (b *Brain) sendReply(raw string) {
	cfg := b.config()
	text := llm.CleanReply(raw, b.name, cfg.MaxReplyLen)
	if text == "" {
		return
	}
	b.Motor.Queue(motor.Chat(text))
	b.pushChat(b.name, text)

	b.mu.Lock()
	b.replies++
	due := cfg.SaveEvery > 0 && b.replies%cfg.SaveEvery == 0
	b.mu.Unlock()
	if due {
		b.Dispatch("save", func(context.Context) { b.save() })
	}
}

func (b *Brain) pushChat(sender, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chat = append(b.chat, fmt.Sprintf("<%s> %s", sender, text))
	if len(b.chat) > chatHistoryCap {
		b.chat = append([]string(nil), b.chat[chatHistoryDrop:]...)
	}
}

// RecentChat returns up to n chat lines, oldest first.
func (b *Brain) RecentChat(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := max(0, len(b.chat)-n)
	return append([]string(nil), b.chat[start:]...)
}

func (b *Brain) chatContext(sender, text, hint string) llm.ChatContext {
	relationship := sender + " is a stranger. This is the first time you talk."
	if p, ok := b.Social.Profile(sender); ok && p.TimesMet > 1 {
		relationship = fmt.Sprintf("Relationship with %s: %s (trust %d). Met %dx.", sender, p.Relationship, p.Trust, p.TimesMet)
		if len(p.Notes) > 0 {
			relationship += " Notes: " + strings.Join(p.Notes, "; ")
		}
	}
	relationship += " Reply style: " + b.Social.StyleFor(sender).String()

	world := "No observation yet."
	if b.Sensor != nil {
		if snap := b.Sensor.Snapshot(); snap.Valid() {
			world = snap.Summary()
		}
	}

	b.mu.Lock()
	mood := b.mood
	b.mu.Unlock()

	return llm.ChatContext{
		BotName:      b.name,
		Persona:      b.persona,
		Mood:         mood.prompt(b.rng.Float()),
		Sender:       sender,
		Message:      text,
		World:        world,
		Goals:        b.Goals.Summary(),
		Memory:       b.Memory.Summary(3),
		Relationship: relationship,
		Social:       b.Social.Summary(),
		Ledger:       b.Ledger.Summary(),
		TradeHint:    hint,
		Threats:      b.Threats.Summary(),
		RecentChat:   b.RecentChat(10),
	}
}

// HandleTrade books a completed exchange. given is true when we handed the
// items over. Items received settle what they owe us first; otherwise they
// count against what we owe them.
func (b *Brain) HandleTrade(player, item string, qty int, given bool, reason string) {
	if player == "" || qty <= 0 {
		return
	}
	tick := b.currentTick()
	if given {
		b.Ledger.RecordGift(player, item, qty, reason)
		b.Social.RecordInteraction(player, 1)
		b.feel(Generous, 0.5)
		slog.Info("gave items", "player", player, "item", item, "qty", qty)
		return
	}

	if owesUs(b.Ledger, player, item) {
		b.Ledger.RecordRepayment(player, item, qty)
		b.Social.AddNote(player, fmt.Sprintf("paid back %d %s", qty, item))
	} else {
		b.Ledger.RecordReceived(player, item, qty)
	}
	b.Social.RecordInteraction(player, 3)
	b.Memory.Add(memory.Episode{
		Tick:        tick,
		Kind:        "trade",
		Description: fmt.Sprintf("%s gave me %d %s", player, qty, item),
		Players:     []string{player},
		Impact:      2,
	})
	slog.Info("received items", "player", player, "item", item, "qty", qty)
}

func owesUs(l *ledger.Ledger, player, item string) bool {
	e, ok := l.Entry(player)
	if !ok {
		return false
	}
	for _, d := range e.OwedToUs {
		if !d.Paid && d.Item == item {
			return true
		}
	}
	return false
}
