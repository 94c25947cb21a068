package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caldershaw/ragd/internal/model"
	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
)

func TestAssembleOrdering(t *testing.T) {
	messages, err := Assemble(Input{
		UserMessage: "what is the capital of france?",
		History: []model.ConversationTurn{
			{Role: model.RoleUser, Content: "hello"},
			{Role: model.RoleAssistant, Content: "hi there"},
		},
		Snippets: []model.RetrievedSnippet{
			{DocumentID: "d1", Content: "Paris is the capital of France."},
			{DocumentID: "d2", Content: "France is in Europe."},
		},
	}, Options{HistoryWindow: 10})
	require.NoError(t, err)
	require.Len(t, messages, 5)

	require.Equal(t, model.RoleSystem, messages[0].Role)
	require.Equal(t, model.RoleSystem, messages[1].Role)
	require.True(t, strings.HasPrefix(messages[1].Content, "Context:"))
	require.Contains(t, messages[1].Content, "Paris is the capital of France.\n\nFrance is in Europe.")
	require.Equal(t, model.RoleUser, messages[2].Role)
	require.Equal(t, "hello", messages[2].Content)
	require.Equal(t, model.RoleAssistant, messages[3].Role)
	require.Equal(t, model.RoleUser, messages[4].Role)
	require.Equal(t, "what is the capital of france?", messages[4].Content)
}

func TestAssembleNoContextBlockWhenEmpty(t *testing.T) {
	messages, err := Assemble(Input{UserMessage: "hi"}, Options{})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	for _, m := range messages {
		require.False(t, strings.HasPrefix(m.Content, "Context:"))
	}
}

func TestAssembleChainOfThought(t *testing.T) {
	messages, err := Assemble(Input{UserMessage: "hi", ChainOfThought: true}, Options{})
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, chainOfThoughtAddendum, messages[1].Content)
}

func TestAssembleHistoryWindow(t *testing.T) {
	var history []model.ConversationTurn
	for i := 0; i < 12; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		history = append(history, model.ConversationTurn{Role: role, Content: strings.Repeat("x", i+1)})
	}
	messages, err := Assemble(Input{UserMessage: "q", History: history}, Options{HistoryWindow: 10})
	require.NoError(t, err)
	// system + 10 history + user
	require.Len(t, messages, 12)
	// the two oldest turns were cut
	require.Equal(t, strings.Repeat("x", 3), messages[1].Content)
}

func TestAssembleBudgetDropsOldestHistoryFirst(t *testing.T) {
	history := []model.ConversationTurn{
		{Role: model.RoleUser, Content: strings.Repeat("a", 300)},
		{Role: model.RoleAssistant, Content: strings.Repeat("b", 300)},
		{Role: model.RoleUser, Content: strings.Repeat("c", 50)},
	}
	budget := len(defaultSystemPrompt) + 1 + 50 + 10
	messages, err := Assemble(Input{UserMessage: "q", History: history}, Options{
		HistoryWindow: 10,
		MaxChars:      budget,
	})
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, strings.Repeat("c", 50), messages[1].Content)
}

func TestAssemblePromptTooLarge(t *testing.T) {
	_, err := Assemble(Input{UserMessage: strings.Repeat("q", 200)}, Options{MaxChars: 100})
	require.ErrorIs(t, err, apperrors.ErrPromptTooLarge)
}

func TestAssembleEmptyMessage(t *testing.T) {
	_, err := Assemble(Input{UserMessage: "   "}, Options{})
	require.ErrorIs(t, err, apperrors.ErrInvalid)
}

func TestAssembleCustomSystemPrompt(t *testing.T) {
	messages, err := Assemble(Input{UserMessage: "hi"}, Options{SystemPrompt: "be terse"})
	require.NoError(t, err)
	require.Equal(t, "be terse", messages[0].Content)
}
