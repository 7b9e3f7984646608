package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"souschef/platform"
	"souschef/service"
)

var logger = platform.Logger

// respondError writes the JSON error for err. Unknown errors are logged with
// the request id and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	status, message := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("[%s] %s %s failed: %s", c.GetString("requestId"), c.Request.Method, c.FullPath(), err)
	} else {
		logger.Warnf("[%s] %s %s rejected: %s", c.GetString("requestId"), c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func mapServiceError(err error) (int, string) {
	var ve *service.ValidationError
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.As(err, &fieldErrs):
		return http.StatusBadRequest, bindingMessage(fieldErrs[0])
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "Please login first"
	case errors.Is(err, service.ErrChatAccessDenied):
		return http.StatusForbidden, "Unauthorized: Chat access denied"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict, "Already exists"
	case errors.Is(err, service.ErrDecisionConflict):
		return http.StatusConflict, "This proposal was already decided differently"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondBindError answers a failed ShouldBind*. Malformed bodies get a
// generic message; validator failures name the first offending field.
func respondBindError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		respondError(c, err)
		return
	}
	logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
}

func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "uuid":
		return fmt.Sprintf("%s must be a valid ID", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s items", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
