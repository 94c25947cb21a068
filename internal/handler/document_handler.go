package handler

import (
	"github.com/gin-gonic/gin"

	rerr "github.com/caldershaw/ragd/internal/pkg/errors"
	"github.com/caldershaw/ragd/internal/pkg/response"
	"github.com/caldershaw/ragd/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func (h *DocumentHandler) Add(c *gin.Context) {
	var req service.DocumentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, rerr.ErrInvalid)
		return
	}
	chunks, err := h.documents.Add(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"chunks": chunks})
}

func (h *DocumentHandler) AddBulk(c *gin.Context) {
	var req struct {
		Documents []service.DocumentInput `json:"documents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, rerr.ErrInvalid)
		return
	}
	chunks, err := h.documents.AddBulk(c.Request.Context(), req.Documents)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": len(req.Documents), "chunks": chunks})
}

func (h *DocumentHandler) DeleteAll(c *gin.Context) {
	if err := h.documents.DeleteAll(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}

func (h *DocumentHandler) Count(c *gin.Context) {
	count, err := h.documents.Count(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"count": count})
}
