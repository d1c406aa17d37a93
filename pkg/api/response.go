// Package api exposes the change pipeline over HTTP. Handlers are a thin
// boundary: they validate input, call the orchestrator, and translate the
// pipeline error taxonomy into status codes.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fabricfleet/portctl/pkg/util"
)

// Response is the standard API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo carries structured error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   &ErrorInfo{Code: "INVALID_REQUEST", Message: message},
	})
}

func forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Response{
		Success: false,
		Error:   &ErrorInfo{Code: "PERMISSION_DENIED", Message: message},
	})
}

// fail maps a pipeline error onto an HTTP status and envelope. The failing
// stage, when known, is included so callers can tell a pre-check veto from
// an apply failure.
func fail(c *gin.Context, err error) {
	info := &ErrorInfo{Code: "INTERNAL", Message: err.Error()}
	status := http.StatusInternalServerError

	var stageErr *util.StageError
	if errors.As(err, &stageErr) {
		info.Stage = stageErr.Stage
	}

	switch {
	case errors.Is(err, util.ErrValidationFailed):
		status = http.StatusBadRequest
		info.Code = "INVALID_REQUEST"
	case errors.Is(err, util.ErrUnsafe):
		status = http.StatusConflict
		info.Code = "UNSAFE_TO_CONFIGURE"
	case errors.Is(err, util.ErrNotFound):
		status = http.StatusNotFound
		info.Code = "NOT_FOUND"
	case errors.Is(err, util.ErrUnreachable):
		status = http.StatusBadGateway
		info.Code = "DEVICE_UNREACHABLE"
	case errors.Is(err, util.ErrTimeout):
		status = http.StatusGatewayTimeout
		info.Code = "DEVICE_TIMEOUT"
	case errors.Is(err, util.ErrRejected):
		status = http.StatusBadGateway
		info.Code = "DEVICE_REJECTED"
	case errors.Is(err, util.ErrStoreCorruption):
		info.Code = "STORE_CORRUPTION"
	}

	c.JSON(status, Response{Success: false, Error: info})
}
