package llm

import (
	"fmt"
	"strings"
)

// ChatContext is everything the reply prompt is built from. Each summary
// field is pre-rendered by the owning subsystem.
type ChatContext struct {
	BotName      string
	Persona      string
	Mood         string // How the agent feels, plus any tone instruction
	Sender       string
	Message      string
	World        string
	Goals        string
	Memory       string
	Relationship string
	Social       string
	Ledger       string
	TradeHint    string
	Threats      string
	RecentChat   []string // Oldest first
}

// BuildChatPrompt returns the system and user prompts for a chat reply.
func BuildChatPrompt(c ChatContext) (system, user string) {
	system = fmt.Sprintf(`You are %s, a player on a Minecraft survival server. You are %s.
Reply the way a real player types in chat: one short line, lowercase is fine, no emojis, no narration.
Never reveal that you are a bot or an AI. Keep replies under 200 characters.`, c.BotName, c.Persona)
	if c.Mood != "" {
		system += "\nYour mood right now: " + c.Mood
	}

	chat := "No recent messages."
	if len(c.RecentChat) > 0 {
		chat = strings.Join(c.RecentChat, "\n")
	}

	var b strings.Builder
	section := func(title string, lines ...string) {
		fmt.Fprintf(&b, "=== %s ===\n", title)
		for _, l := range lines {
			if l = strings.TrimSpace(l); l != "" {
				b.WriteString(l)
				b.WriteByte('\n')
			}
		}
		b.WriteByte('\n')
	}
	section("CURRENT STATE", c.World, c.Goals, c.Threats, c.Memory)
	section("SOCIAL", c.Relationship, c.Social)
	section("DEBTS AND FAVORS", c.Ledger, c.TradeHint)
	section("RECENT CHAT", chat)
	fmt.Fprintf(&b, "=== REPLY TO ===\n<%s> %s", c.Sender, c.Message)
	return system, b.String()
}

// CleanReply turns raw model output into one chat line of at most maxLen
// runes. It strips wrapping quotes and a leading speaker tag. An empty
// result means there is nothing worth sending.
func CleanReply(raw, botName string, maxLen int) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	for _, prefix := range []string{"<" + botName + ">", botName + ":"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	if r := []rune(s); maxLen > 0 && len(r) > maxLen {
		s = string(r[:maxLen])
	}
	return s
}
