package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/yikoni/docbase/internal/middleware"
	appErr "github.com/yikoni/docbase/internal/pkg/errors"
	"github.com/yikoni/docbase/internal/pkg/errcode"
	"github.com/yikoni/docbase/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErr.ErrInvalid
	}
	return id, nil
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	switch {
	case appErr.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case appErr.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case appErr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
	case appErr.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case appErr.IsAlreadyInFlight(err):
		response.Error(c, errcode.ErrAlreadyInFlight, "document is already being processed")
	case appErr.IsConflict(err):
		response.Error(c, errcode.ErrConflict, "conflict")
	case appErr.Is(err, appErr.ErrTransientProvider):
		response.Error(c, errcode.ErrProviderUnavailable, "embedding provider unavailable")
	case appErr.Is(err, appErr.ErrPermanentContent):
		response.Error(c, errcode.ErrInvalidContent, "content rejected by provider")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
