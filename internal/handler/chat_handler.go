package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/caldershaw/ragd/internal/pkg/errcode"
	rerr "github.com/caldershaw/ragd/internal/pkg/errors"
	"github.com/caldershaw/ragd/internal/pkg/response"
	"github.com/caldershaw/ragd/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, rerr.ErrInvalid)
		return
	}
	resp, err := h.chat.Answer(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}

// ChatStream answers over server-sent events: a "token" event per chunk,
// one "sources" event, then "done". Failures become a terminal "error"
// event, since the status line is committed once streaming starts.
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, rerr.ErrInvalid)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	resp, err := h.chat.AnswerStream(c.Request.Context(), &req, func(token string) {
		c.SSEvent("token", token)
		c.Writer.Flush()
	})
	if err != nil {
		h.streamError(c, err)
		return
	}
	c.SSEvent("sources", gin.H{
		"conversation_id": resp.ConversationID,
		"sources":         resp.Sources,
		"retrieval_ms":    resp.RetrievalMs,
		"cache_hit":       resp.CacheHit,
	})
	c.SSEvent("done", gin.H{"conversation_id": resp.ConversationID})
	c.Writer.Flush()
}

func (h *ChatHandler) streamError(c *gin.Context, err error) {
	logutil.GetLogger(c.Request.Context()).Error("chat stream failed", zap.Error(err))
	code := appErr.ErrInternal
	message := "internal error"
	switch {
	case errors.Is(err, rerr.ErrInvalid):
		code, message = appErr.ErrInvalid, err.Error()
	case errors.Is(err, rerr.ErrPromptTooLarge):
		code, message = appErr.ErrPromptTooLarge, err.Error()
	case errors.Is(err, rerr.ErrInferenceTimeout):
		code, message = appErr.ErrInferenceTimeout, "inference timed out"
	case errors.Is(err, rerr.ErrInference):
		code, message = appErr.ErrInferenceFailed, "inference failed"
	case errors.Is(err, rerr.ErrAIUnavailable):
		code, message = appErr.ErrAIUnavailable, "ai backend unavailable"
	}
	c.SSEvent("error", gin.H{"code": code, "message": message})
	c.Writer.Flush()
}
