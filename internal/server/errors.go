package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Skufu/medintake/internal/docqa"
	"github.com/Skufu/medintake/internal/intake"
	"github.com/Skufu/medintake/internal/llm"
	"github.com/Skufu/medintake/internal/logger"
	"github.com/Skufu/medintake/internal/summary"
)

// Error codes returned in the "code" field.
const (
	CodeInvalidPayload   = "invalid_payload"
	CodeValidationFailed = "validation_failed"
	CodeNotFound         = "session_not_found"
	CodeNoDocument       = "no_document"
	CodeSessionReset     = "session_reset"
	CodeNoFacts          = "no_facts"
	CodeTooLarge         = "payload_too_large"
	CodeLLMUnavailable   = "llm_unavailable"
	CodeTimeout          = "timeout"
	CodeInternal         = "internal_error"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

// respondError maps service errors onto HTTP responses.
func respondError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, intake.ErrSessionNotFound):
		abort(c, http.StatusNotFound, CodeNotFound, "session not found")
	case errors.Is(err, intake.ErrEmptyAnswer),
		errors.Is(err, intake.ErrInvalidReference),
		errors.Is(err, intake.ErrEmptyDocument):
		abort(c, http.StatusUnprocessableEntity, CodeValidationFailed, err.Error())
	case errors.Is(err, summary.ErrNoFacts):
		abort(c, http.StatusUnprocessableEntity, CodeNoFacts, err.Error())
	case errors.Is(err, intake.ErrSessionReset):
		abort(c, http.StatusConflict, CodeSessionReset, "session was reset during the request")
	case errors.Is(err, docqa.ErrNoDocument):
		abort(c, http.StatusConflict, CodeNoDocument, "No document uploaded yet.")
	case errors.As(err, &tooLarge):
		abort(c, http.StatusRequestEntityTooLarge, CodeTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, llm.ErrBackend):
		abort(c, http.StatusBadGateway, CodeLLMUnavailable, "language model request failed")
	case errors.Is(err, context.DeadlineExceeded):
		abort(c, http.StatusGatewayTimeout, CodeTimeout, "request timed out")
	default:
		logger.Log.WithField("path", c.FullPath()).Errorf("unhandled error: %v", err)
		abort(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// bindJSON decodes and validates the body into dst, writing the error
// response itself and returning false on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, err)
			return false
		}
		abort(c, http.StatusBadRequest, CodeInvalidPayload, "invalid payload")
		return false
	}
	return validateStruct(c, dst)
}

func validateStruct(c *gin.Context, dst any) bool {
	err := validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		abort(c, http.StatusBadRequest, CodeInvalidPayload, err.Error())
		return false
	}

	fields := make(map[string]string, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := describe(fe)
		fields[fe.Field()] = msg
		msgs = append(msgs, msg)
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"error":  strings.Join(msgs, "; "),
		"code":   CodeValidationFailed,
		"fields": fields,
	})
	return false
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}
