package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/ai"
	"github.com/xxxsen/studymate/internal/middleware"
	"github.com/xxxsen/studymate/internal/pkg/errcode"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, detail(err, appErr.ErrUnauthorized, "invalid credentials"))
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, detail(err, appErr.ErrInvalid, "invalid request"))
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, detail(err, appErr.ErrConflict, "conflict"))
	case errors.Is(err, appErr.ErrNotReady):
		response.Error(c, errcode.ErrNotReady, "document not found or not processed")
	case errors.Is(err, appErr.ErrUnsupported):
		response.Error(c, errcode.ErrUnsupportedFile, "only pdf, txt and md files are allowed")
	case errors.Is(err, appErr.ErrTooLarge):
		response.Error(c, errcode.ErrFileTooLarge, "file too large")
	case errors.Is(err, ai.ErrRateLimited):
		response.Error(c, errcode.ErrTooMany, "ai quota exceeded, try again later")
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai not configured")
	case errors.Is(err, ai.ErrMalformedOutput):
		response.Error(c, errcode.ErrAIMalformed, "ai returned unusable content, try again")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

// detail returns the text a service attached to a sentinel error, or
// fallback when there is none.
func detail(err, sentinel error, fallback string) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if idx := strings.Index(msg, prefix); idx >= 0 {
		return msg[idx+len(prefix):]
	}
	return fallback
}

func queryUint(c *gin.Context, key string, def, max uint) uint {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return def
	}
	if max > 0 && uint(v) > max {
		return max
	}
	return uint(v)
}

func requestBaseURL(c *gin.Context) string {
	proto := c.GetHeader("X-Forwarded-Proto")
	if proto == "" {
		if c.Request.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return proto + "://" + host
}
