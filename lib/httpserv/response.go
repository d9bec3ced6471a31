package httpserv

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// maxRequestBodySize limits the JSON request bodies the API accepts.
const maxRequestBodySize = 1024 * 1024

func WriteJSON(httpResponse http.ResponseWriter, statusCode int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to marshal response body of type %T", body)
		httpResponse.WriteHeader(http.StatusInternalServerError)
		return
	}
	httpResponse.Header().Set("Content-Type", "application/json")
	httpResponse.WriteHeader(statusCode)
	if _, err := httpResponse.Write(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

// ReadJSON decodes the request body into target. Malformed bodies are reported as a bad request.
func ReadJSON(httpRequest *http.Request, target any) error {
	data, err := io.ReadAll(io.LimitReader(httpRequest.Body, maxRequestBodySize))
	if err != nil {
		return BadRequest("unable to read request body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return BadRequest("invalid request body: %s", jsonErrorMessage(err))
	}
	return nil
}

func jsonErrorMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %s has wrong type", typeErr.Field)
	}
	return err.Error()
}
