package recordclient

import (
	"net/http"

	"github.com/Simha-Reddy/SSVF-VetConnect/lib/logging"
	"github.com/rs/zerolog/log"
)

// LoggingTransportDecorator logs every outgoing FHIR request. Query strings are stripped, since they contain ICNs.
type LoggingTransportDecorator struct {
	RoundTripper http.RoundTripper
}

func (d LoggingTransportDecorator) RoundTrip(request *http.Request) (*http.Response, error) {
	response, err := d.RoundTripper.RoundTrip(request)
	if err != nil {
		log.Warn().Ctx(request.Context()).Err(err).Msgf("FHIR request failed: %s %s", request.Method, logging.SanitizeURL(request.URL))
	} else {
		log.Debug().Ctx(request.Context()).Int(logging.FieldStatus, response.StatusCode).
			Msgf("FHIR request: %s %s", request.Method, logging.SanitizeURL(request.URL))
	}
	return response, err
}
