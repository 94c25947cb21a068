package handler

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/caldershaw/ragd/internal/pkg/response"
)

type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(c *gin.Context) {
	dbOK := true
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		dbOK = false
	}
	response.Success(c, gin.H{"status": "ok", "database": dbOK})
}
