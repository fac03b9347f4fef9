// Package handlers implements the gin handlers of the synastry API.  Every
// body is wrapped in common.APIResponse; application errors are mapped to
// HTTP statuses through their error code.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
	"github.com/turtacn/Synastry-Intelligence/pkg/types/common"
)

func respond[T any](c *gin.Context, status int, data T) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = middleware.RequestIDFrom(c)
	c.JSON(status, resp)
}

// respondError writes the error envelope.  Server-side failures are masked
// with the default message for their code; the cause is attached to the gin
// context for the request logger.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown || code == errors.CodeOK {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	msg := err.Error()
	var ae *errors.AppError
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	if status >= http.StatusInternalServerError {
		msg = errors.DefaultMessageForCode(code)
	}
	_ = c.Error(err)

	resp := common.NewErrorResponse(string(code), msg)
	resp.RequestID = middleware.RequestIDFrom(c)
	c.AbortWithStatusJSON(status, resp)
}

// bindJSON decodes the body into dst, reporting malformed input as a bad
// request.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "malformed request body"))
		return false
	}
	return true
}
