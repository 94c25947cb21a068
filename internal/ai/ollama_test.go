package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOllamaChat(t *testing.T) {
	var gotReq ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: Message{Role: "assistant", Content: " the answer "},
			Done:    true,
		})
	}))
	defer srv.Close()

	provider, err := NewProvider("ollama", map[string]interface{}{"base_url": srv.URL})
	require.NoError(t, err)

	temp := 0.2
	answer, err := provider.Chat(context.Background(), "llama3",
		[]Message{{Role: "user", Content: "q"}}, ChatOptions{Temperature: &temp})
	require.NoError(t, err)
	require.Equal(t, "the answer", answer)
	require.Equal(t, "llama3", gotReq.Model)
	require.False(t, gotReq.Stream)
	require.EqualValues(t, 0.2, gotReq.Options["temperature"])
}

func TestOllamaChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Stream)
		enc := json.NewEncoder(w)
		enc.Encode(ollamaChatResponse{Message: Message{Content: "hel"}})
		enc.Encode(ollamaChatResponse{Message: Message{Content: "lo"}})
		enc.Encode(ollamaChatResponse{Done: true})
	}))
	defer srv.Close()

	provider, err := NewProvider("ollama", map[string]interface{}{"base_url": srv.URL})
	require.NoError(t, err)

	var tokens []string
	answer, err := provider.ChatStream(context.Background(), "llama3",
		[]Message{{Role: "user", Content: "q"}}, ChatOptions{}, func(tok string) {
			tokens = append(tokens, tok)
		})
	require.NoError(t, err)
	require.Equal(t, "hello", answer)
	require.Equal(t, []string{"hel", "lo"}, tokens)
}

func TestOllamaChatStreamBadChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json\n"))
	}))
	defer srv.Close()

	provider, err := NewProvider("ollama", map[string]interface{}{"base_url": srv.URL})
	require.NoError(t, err)

	_, err = provider.ChatStream(context.Background(), "m", nil, ChatOptions{}, nil)
	require.Error(t, err)
}

func TestOllamaChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	provider, err := NewProvider("ollama", map[string]interface{}{"base_url": srv.URL})
	require.NoError(t, err)

	_, err = provider.Chat(context.Background(), "missing", nil, ChatOptions{})
	require.ErrorContains(t, err, "model not found")
}

func TestOllamaListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[{"name":"llama3"},{"name":"nomic-embed-text"}]}`))
	}))
	defer srv.Close()

	provider, err := NewProvider("ollama", map[string]interface{}{"base_url": srv.URL})
	require.NoError(t, err)

	models, err := provider.ListModels(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"llama3", "nomic-embed-text"}, models)
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "some text", req.Input)
		w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer srv.Close()

	provider, err := NewEmbedProvider("ollama", map[string]interface{}{"base_url": srv.URL})
	require.NoError(t, err)

	vec, err := provider.Embed(context.Background(), "nomic-embed-text", "some text", TaskTypeQuery)
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllamaDefaultBaseURL(t *testing.T) {
	provider, err := NewProvider("ollama", nil)
	require.NoError(t, err)
	require.Equal(t, "ollama", provider.Name())
}
