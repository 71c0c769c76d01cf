package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dashboard/internal/attendance"
	"dashboard/internal/auth"
	"dashboard/internal/backend"
	"dashboard/internal/roster"
	"dashboard/internal/validation"
)

// statusClientClosed is logged when the caller went away mid-request.
const statusClientClosed = 499

// fail writes the JSON error response for err. A backend 401 also ends the
// caller's session.
func (h *Handler) fail(c *gin.Context, err error) {
	var verr validation.Errors
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please correct the highlighted fields", "fields": verr})
		return
	case errors.Is(err, attendance.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": "A newer request for this course replaced this one"})
		return
	case errors.Is(err, roster.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Import job not found"})
		return
	case errors.Is(err, backend.ErrNoIdentity):
		c.JSON(http.StatusBadGateway, gin.H{"error": backend.MsgNoIdentity})
		return
	case errors.Is(err, context.Canceled):
		c.AbortWithStatus(statusClientClosed)
		return
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": backend.MsgNetwork})
		return
	}

	be, ok := backend.AsError(err)
	if !ok {
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": backend.MsgUnexpected})
		return
	}

	switch be.Kind {
	case backend.KindUnauthorized:
		if s, ok := auth.Current(c); ok {
			if cerr := h.Sessions.Clear(c.Request.Context(), s.ID, "backend rejected token"); cerr != nil {
				h.Log.Warn("clear session failed", zap.String("session_id", s.ID), zap.Error(cerr))
			}
		}
		auth.Reject(c, roster.MsgSessionGone)
	case backend.KindTransport:
		c.JSON(http.StatusBadGateway, gin.H{"error": be.Message})
	case backend.KindServer:
		status := be.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": be.Message})
	default:
		h.Log.Error("backend call failed", zap.String("op", be.Op), zap.Error(be.Err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": be.Message})
	}
}

// courseID parses the :id path parameter.
func courseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid course id"})
		return 0, false
	}
	return id, true
}
