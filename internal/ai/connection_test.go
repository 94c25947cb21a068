package ai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
)

type scriptedProvider struct {
	listErr   error
	chatErr   error
	answer    string
	tokens    []string
	chatDelay time.Duration
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, error) {
	if p.chatDelay > 0 {
		select {
		case <-time.After(p.chatDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if p.chatErr != nil {
		return "", p.chatErr
	}
	return p.answer, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, model string, messages []Message, opts ChatOptions, onToken func(string)) (string, error) {
	full := ""
	for _, tok := range p.tokens {
		if p.chatDelay > 0 {
			select {
			case <-time.After(p.chatDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		full += tok
		onToken(tok)
	}
	if p.chatErr != nil {
		return "", p.chatErr
	}
	return full, nil
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]string, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return []string{"m"}, nil
}

var scriptedCreates atomic.Int64

// current clears any test provider installed by a previous case
var scriptedCurrent atomic.Pointer[scriptedProvider]

func init() {
	Register("scripted", func(args interface{}) (IProvider, error) {
		scriptedCreates.Add(1)
		if p := scriptedCurrent.Load(); p != nil {
			return p, nil
		}
		return &scriptedProvider{}, nil
	})
}

func newScriptedConnection(t *testing.T, p *scriptedProvider) *Connection {
	t.Helper()
	scriptedCurrent.Store(p)
	t.Cleanup(func() { scriptedCurrent.Store(nil) })
	conn, err := NewConnection(ConnectionConfig{
		Provider:   "scripted",
		Model:      "m",
		Timeout:    200 * time.Millisecond,
		StreamIdle: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	return conn
}

func TestEnsureConnectionHealthy(t *testing.T) {
	conn := newScriptedConnection(t, &scriptedProvider{})
	require.True(t, conn.EnsureConnection(context.Background()))
}

func TestEnsureConnectionRecreatesAfterProbeFailure(t *testing.T) {
	p := &scriptedProvider{listErr: errors.New("gone")}
	conn := newScriptedConnection(t, p)
	before := scriptedCreates.Load()
	require.False(t, conn.EnsureConnection(context.Background()))
	require.Equal(t, before+1, scriptedCreates.Load())
}

func TestEnsureConnectionRecreatesAfterRequestError(t *testing.T) {
	p := &scriptedProvider{chatErr: errors.New("boom")}
	conn := newScriptedConnection(t, p)

	_, err := conn.Chat(context.Background(), []Message{{Role: "user", Content: "q"}})
	require.ErrorIs(t, err, apperrors.ErrInference)

	// probe succeeds, but the broken flag forces a new handle anyway
	before := scriptedCreates.Load()
	require.False(t, conn.EnsureConnection(context.Background()))
	require.Equal(t, before+1, scriptedCreates.Load())
}

func TestChatSuccess(t *testing.T) {
	conn := newScriptedConnection(t, &scriptedProvider{answer: "hi"})
	answer, err := conn.Chat(context.Background(), []Message{{Role: "user", Content: "q"}})
	require.NoError(t, err)
	require.Equal(t, "hi", answer)
}

func TestChatTimeout(t *testing.T) {
	conn := newScriptedConnection(t, &scriptedProvider{chatDelay: time.Second})
	_, err := conn.Chat(context.Background(), []Message{{Role: "user", Content: "q"}})
	require.ErrorIs(t, err, apperrors.ErrInferenceTimeout)
}

func TestStreamChatForwardsTokens(t *testing.T) {
	conn := newScriptedConnection(t, &scriptedProvider{tokens: []string{"a", "b", "c"}})
	var got []string
	answer, err := conn.StreamChat(context.Background(), nil, func(tok string) {
		got = append(got, tok)
	})
	require.NoError(t, err)
	require.Equal(t, "abc", answer)
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestStreamChatIdleTimeout(t *testing.T) {
	conn := newScriptedConnection(t, &scriptedProvider{
		tokens:    []string{"a"},
		chatDelay: time.Second,
	})
	_, err := conn.StreamChat(context.Background(), nil, func(string) {})
	require.ErrorIs(t, err, apperrors.ErrInferenceTimeout)
}
