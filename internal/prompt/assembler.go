package prompt

import (
	"fmt"
	"strings"

	"github.com/caldershaw/ragd/internal/ai"
	"github.com/caldershaw/ragd/internal/model"
	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
)

const defaultSystemPrompt = "You are a helpful assistant. Answer the user's question using the provided context. " +
	"If the context does not contain the answer, say so instead of guessing."

const chainOfThoughtAddendum = "Think through the problem step by step before giving the final answer."

// Options bound the assembled prompt. Zero values fall back to sane
// defaults except MaxChars, where zero means unbounded.
type Options struct {
	HistoryWindow int
	MaxChars      int
	SystemPrompt  string
}

type Input struct {
	UserMessage    string
	History        []model.ConversationTurn
	Snippets       []model.RetrievedSnippet
	ChainOfThought bool
}

// Assemble builds the message list sent to the model: system prompt, an
// optional reasoning addendum, retrieved context, the trailing window of
// history oldest first, and the user's message last. When the character
// budget is exceeded, history is dropped oldest first; if the prompt still
// does not fit with no history at all, ErrPromptTooLarge is returned.
func Assemble(in Input, opts Options) ([]ai.Message, error) {
	if strings.TrimSpace(in.UserMessage) == "" {
		return nil, apperrors.ErrInvalid
	}
	window := opts.HistoryWindow
	if window <= 0 {
		window = 10
	}

	var fixed []ai.Message
	system := opts.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	fixed = append(fixed, ai.Message{Role: model.RoleSystem, Content: system})
	if in.ChainOfThought {
		fixed = append(fixed, ai.Message{Role: model.RoleSystem, Content: chainOfThoughtAddendum})
	}
	if contextBlock := renderContext(in.Snippets); contextBlock != "" {
		fixed = append(fixed, ai.Message{Role: model.RoleSystem, Content: contextBlock})
	}
	userMsg := ai.Message{Role: model.RoleUser, Content: in.UserMessage}

	history := in.History
	if len(history) > window {
		history = history[len(history)-window:]
	}

	budget := opts.MaxChars
	fixedChars := messageChars(fixed) + len([]rune(userMsg.Content))
	if budget > 0 && fixedChars > budget {
		return nil, fmt.Errorf("%w: prompt needs %d chars, budget is %d",
			apperrors.ErrPromptTooLarge, fixedChars, budget)
	}
	if budget > 0 {
		remaining := budget - fixedChars
		for len(history) > 0 {
			historyChars := 0
			for _, turn := range history {
				historyChars += len([]rune(turn.Content))
			}
			if historyChars <= remaining {
				break
			}
			history = history[1:]
		}
	}

	messages := make([]ai.Message, 0, len(fixed)+len(history)+1)
	messages = append(messages, fixed...)
	for _, turn := range history {
		messages = append(messages, ai.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, userMsg)
	return messages, nil
}

func renderContext(snippets []model.RetrievedSnippet) string {
	if len(snippets) == 0 {
		return ""
	}
	parts := make([]string, 0, len(snippets))
	for _, sn := range snippets {
		parts = append(parts, sn.Content)
	}
	return "Context:\n\n" + strings.Join(parts, "\n\n")
}

func messageChars(messages []ai.Message) int {
	total := 0
	for _, m := range messages {
		total += len([]rune(m.Content))
	}
	return total
}
