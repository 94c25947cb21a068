package handler

import (
	"github.com/gin-gonic/gin"

	rerr "github.com/caldershaw/ragd/internal/pkg/errors"
	"github.com/caldershaw/ragd/internal/pkg/response"
	"github.com/caldershaw/ragd/internal/service"
)

type ConversationHandler struct {
	conversations *service.ConversationStore
	export        *service.ExportService
}

func NewConversationHandler(conversations *service.ConversationStore, export *service.ExportService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, export: export}
}

func (h *ConversationHandler) List(c *gin.Context) {
	summaries, err := h.conversations.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"conversations": summaries})
}

func (h *ConversationHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		handleError(c, rerr.ErrInvalid)
		return
	}
	conv, err := h.conversations.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, conv)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		handleError(c, rerr.ErrInvalid)
		return
	}
	if err := h.conversations.Clear(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}

func (h *ConversationHandler) DeleteAll(c *gin.Context) {
	if err := h.conversations.ClearAll(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}

func (h *ConversationHandler) Export(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		handleError(c, rerr.ErrInvalid)
		return
	}
	result, err := h.export.Export(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
