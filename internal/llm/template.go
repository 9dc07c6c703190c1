package llm

import (
	"fmt"
	"strings"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string
	Content string
}

// ChatTemplate renders a conversation into the single prompt string a
// completion endpoint expects.
type ChatTemplate string

const (
	// TemplateMistral follows the Mistral instruct format, where the system
	// message is folded into the first user turn.
	TemplateMistral ChatTemplate = "mistral"
	TemplatePlain   ChatTemplate = "plain"
)

func ParseChatTemplate(name string) (ChatTemplate, error) {
	switch ChatTemplate(name) {
	case TemplateMistral, TemplatePlain:
		return ChatTemplate(name), nil
	}
	return "", fmt.Errorf("unknown chat template %q", name)
}

func (t ChatTemplate) Render(messages []Message) string {
	var system []string
	var turns []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m.Content)
	}

	if t == TemplatePlain {
		return strings.Join(append(system, turns...), "\n\n")
	}

	var b strings.Builder
	for i, turn := range turns {
		if i == 0 && len(system) > 0 {
			turn = strings.Join(system, "\n\n") + "\n\n" + turn
		}
		b.WriteString("[INST] ")
		b.WriteString(turn)
		b.WriteString(" [/INST]")
	}
	return b.String()
}
