package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/caldershaw/ragd/internal/ai"
	"github.com/caldershaw/ragd/internal/model"
	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
	"github.com/caldershaw/ragd/internal/prompt"
	"github.com/caldershaw/ragd/internal/retrieval"
)

type Retriever interface {
	Retrieve(ctx context.Context, queryTexts []string, filters map[string]interface{}) (*retrieval.Result, error)
}

type Inference interface {
	EnsureConnection(ctx context.Context) bool
	Chat(ctx context.Context, messages []ai.Message) (string, error)
	StreamChat(ctx context.Context, messages []ai.Message, onToken func(string)) (string, error)
}

type ConversationLog interface {
	Ensure(ctx context.Context, id string, firstMessage string) (string, error)
	Append(ctx context.Context, id string, turn *model.ConversationTurn) error
	History(ctx context.Context, id string, limit int) ([]model.ConversationTurn, error)
}

type ChatConfig struct {
	HistoryWindow  int
	MaxPromptChars int
	SystemPrompt   string
}

type ChatRequest struct {
	ConversationID string                 `json:"conversation_id"`
	Message        string                 `json:"message"`
	Filters        map[string]interface{} `json:"filters"`
	ChainOfThought bool                   `json:"chain_of_thought"`
}

type ChatResponse struct {
	ConversationID string                   `json:"conversation_id"`
	Answer         string                   `json:"answer"`
	Sources        []model.RetrievedSnippet `json:"sources"`
	RetrievalMs    int64                    `json:"retrieval_ms"`
	CacheHit       bool                     `json:"cache_hit"`
}

// ChatService drives one question through the full pipeline: retrieval,
// prompt assembly, generation and history persistence.
type ChatService struct {
	retriever Retriever
	inference Inference
	history   ConversationLog
	cfg       ChatConfig
}

func NewChatService(retriever Retriever, inference Inference, history ConversationLog, cfg ChatConfig) *ChatService {
	return &ChatService{retriever: retriever, inference: inference, history: history, cfg: cfg}
}

type pipelineState struct {
	conversationID string
	history        []model.ConversationTurn
	result         *retrieval.Result
	messages       []ai.Message
}

// prepare runs everything up to the model call. History is read before the
// user turn is appended so the prompt does not carry the new message twice.
func (s *ChatService) prepare(ctx context.Context, req *ChatRequest) (*pipelineState, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.Join(apperrors.ErrInvalid, errors.New("message is required"))
	}
	s.inference.EnsureConnection(ctx)
	conversationID, err := s.history.Ensure(ctx, req.ConversationID, req.Message)
	if err != nil {
		return nil, err
	}
	past, err := s.history.History(ctx, conversationID, s.cfg.HistoryWindow)
	if err != nil {
		return nil, err
	}

	result, err := s.retriever.Retrieve(ctx, []string{req.Message}, req.Filters)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// an unreachable index degrades to answering without context
		logutil.GetLogger(ctx).Warn("retrieval failed, answering without context",
			zap.String("conversation_id", conversationID), zap.Error(err))
		result = &retrieval.Result{}
	}

	messages, err := prompt.Assemble(prompt.Input{
		UserMessage:    req.Message,
		History:        past,
		Snippets:       result.Snippets,
		ChainOfThought: req.ChainOfThought,
	}, prompt.Options{
		HistoryWindow: s.cfg.HistoryWindow,
		MaxChars:      s.cfg.MaxPromptChars,
		SystemPrompt:  s.cfg.SystemPrompt,
	})
	if err != nil {
		return nil, err
	}
	return &pipelineState{
		conversationID: conversationID,
		history:        past,
		result:         result,
		messages:       messages,
	}, nil
}

func (s *ChatService) Answer(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	state, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	answer, err := s.inference.Chat(ctx, state.messages)
	if err != nil {
		return nil, err
	}
	s.persistExchange(ctx, state.conversationID, req.Message, answer, state.result.Snippets)
	return &ChatResponse{
		ConversationID: state.conversationID,
		Answer:         answer,
		Sources:        state.result.Snippets,
		RetrievalMs:    state.result.TimingMs,
		CacheHit:       state.result.CacheHit,
	}, nil
}

// AnswerStream streams tokens through onToken and persists the exchange only
// once the stream completes. An aborted or failed stream leaves no partial
// assistant turn behind.
func (s *ChatService) AnswerStream(ctx context.Context, req *ChatRequest, onToken func(string)) (*ChatResponse, error) {
	state, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	answer, err := s.inference.StreamChat(ctx, state.messages, onToken)
	if err != nil {
		return nil, err
	}
	s.persistExchange(ctx, state.conversationID, req.Message, answer, state.result.Snippets)
	return &ChatResponse{
		ConversationID: state.conversationID,
		Answer:         answer,
		Sources:        state.result.Snippets,
		RetrievalMs:    state.result.TimingMs,
		CacheHit:       state.result.CacheHit,
	}, nil
}

// persistExchange appends the user and assistant turns. A write failure is
// retried once and then logged; the caller still gets the answer.
func (s *ChatService) persistExchange(ctx context.Context, conversationID, question, answer string, sources []model.RetrievedSnippet) {
	// the answer was already produced, so a cancelled request context must
	// not abort the write
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	now := time.Now()
	turns := []*model.ConversationTurn{
		{Role: model.RoleUser, Content: question, CreatedAt: now},
		{Role: model.RoleAssistant, Content: answer, CreatedAt: now, Sources: sources},
	}
	for _, turn := range turns {
		err := s.history.Append(writeCtx, conversationID, turn)
		if err != nil {
			err = s.history.Append(writeCtx, conversationID, turn)
		}
		if err != nil {
			logutil.GetLogger(ctx).Error("persist conversation turn failed",
				zap.String("conversation_id", conversationID),
				zap.String("role", turn.Role), zap.Error(err))
			return
		}
	}
}
