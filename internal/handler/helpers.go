package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/caldershaw/ragd/internal/middleware"
	appErr "github.com/caldershaw/ragd/internal/pkg/errcode"
	rerr "github.com/caldershaw/ragd/internal/pkg/errors"
	"github.com/caldershaw/ragd/internal/pkg/response"
)

func getClientID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextClientIDKey)
	clientID, _ := value.(string)
	return clientID
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("client_id", getClientID(c)),
		zap.Error(err))
	switch {
	case errors.Is(err, rerr.ErrUnauthorized):
		response.Error(c, appErr.ErrUnauthorized, "unauthorized")
	case errors.Is(err, rerr.ErrNotFound):
		response.Error(c, appErr.ErrNotFound, "not found")
	case errors.Is(err, rerr.ErrInvalid):
		response.Error(c, appErr.ErrInvalid, err.Error())
	case errors.Is(err, rerr.ErrPromptTooLarge):
		response.Error(c, appErr.ErrPromptTooLarge, err.Error())
	case errors.Is(err, rerr.ErrInferenceTimeout):
		response.Error(c, appErr.ErrInferenceTimeout, "inference timed out")
	case errors.Is(err, rerr.ErrInference):
		response.Error(c, appErr.ErrInferenceFailed, "inference failed")
	case errors.Is(err, rerr.ErrAIUnavailable):
		response.Error(c, appErr.ErrAIUnavailable, "ai backend unavailable")
	case errors.Is(err, rerr.ErrIndexUnavailable):
		response.Error(c, appErr.ErrIndexUnavailable, "vector index unavailable")
	case errors.Is(err, context.Canceled):
		// client went away, nothing useful to write
	default:
		response.Error(c, appErr.ErrInternal, "internal error")
	}
}
