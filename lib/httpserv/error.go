package httpserv

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Simha-Reddy/SSVF-VetConnect/lib/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrorWithCode is an error that carries the HTTP status code it should be reported with.
type ErrorWithCode struct {
	Message    string
	StatusCode int
}

func (e ErrorWithCode) Error() string {
	return e.Message
}

// NewErrorWithCode constructs a new ErrorWithCode
func NewErrorWithCode(message string, statusCode int) error {
	return &ErrorWithCode{
		Message:    message,
		StatusCode: statusCode,
	}
}

func BadRequest(msg string, args ...any) error {
	return NewErrorWithCode(fmt.Sprintf(msg, args...), http.StatusBadRequest)
}

func Unauthorized(msg string, args ...any) error {
	return NewErrorWithCode(fmt.Sprintf(msg, args...), http.StatusUnauthorized)
}

func Forbidden(msg string, args ...any) error {
	return NewErrorWithCode(fmt.Sprintf(msg, args...), http.StatusForbidden)
}

func NotFound(msg string, args ...any) error {
	return NewErrorWithCode(fmt.Sprintf(msg, args...), http.StatusNotFound)
}

// StatusCode returns the HTTP status code for the given error.
// Errors that don't carry a status code are internal errors.
func StatusCode(err error) int {
	var errorWithCode *ErrorWithCode
	if errors.As(err, &errorWithCode) && errorWithCode.StatusCode > 0 {
		return errorWithCode.StatusCode
	}
	return http.StatusInternalServerError
}

// WriteError writes the error as JSON response: {"error": "<message>"}.
// Messages of internal errors are not returned to the client; they're logged with an ID that is returned instead.
func WriteError(ctx context.Context, httpResponse http.ResponseWriter, desc string, err error) {
	statusCode := StatusCode(err)
	if statusCode >= http.StatusInternalServerError {
		errorID := uuid.NewString()
		log.Error().Ctx(ctx).Err(err).Str(logging.FieldErrorID, errorID).Msgf("%s failed", desc)
		WriteJSON(httpResponse, statusCode, map[string]string{
			"error": fmt.Sprintf("%s failed (id=%s)", desc, errorID),
		})
		return
	}
	log.Info().Ctx(ctx).Err(err).Int(logging.FieldStatus, statusCode).Msgf("%s rejected", desc)
	WriteJSON(httpResponse, statusCode, map[string]string{
		"error": err.Error(),
	})
}
