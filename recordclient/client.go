//go:generate mockgen -destination=./client_mock.go -package=recordclient -source=client.go Client

// Package recordclient reads a subject's clinical records from the remote FHIR API on behalf of the subject,
// using the access token the subject granted through the consent flow.
package recordclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/logging"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/metrics"
	"github.com/rs/zerolog/log"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// Client reads subject records from the FHIR API. Every call takes the subject's access token.
// Non-2xx responses are returned as *Failure.
type Client interface {
	// Patient reads the subject's demographics.
	Patient(ctx context.Context, accessToken string, subjectID string) (*fhir.Patient, error)
	// Appointments searches the subject's appointments matching the given date filter.
	Appointments(ctx context.Context, accessToken string, subjectID string, filter DateFilter) ([]Appointment, error)
	// PractitionerRoles searches the practitioner roles (care team members) of the subject.
	PractitionerRoles(ctx context.Context, accessToken string, subjectID string) ([]fhir.PractitionerRole, error)
}

// Appointment holds the Appointment elements the summary shows. Codes are kept as sent, so an appointment with
// a status or participant code unknown to the R4 value sets is still returned. A missing status is empty.
type Appointment struct {
	Id          *string                `json:"id,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Description *string                `json:"description,omitempty"`
	Start       *string                `json:"start,omitempty"`
	ServiceType []fhir.CodeableConcept `json:"serviceType,omitempty"`
	ReasonCode  []fhir.CodeableConcept `json:"reasonCode,omitempty"`
}

// DateFilter is a FHIR date search predicate, e.g. lt2024-01-01T00:00:00Z.
type DateFilter struct {
	Prefix  string
	Instant time.Time
}

// Before matches appointments before the given instant.
func Before(instant time.Time) DateFilter {
	return DateFilter{Prefix: "lt", Instant: instant}
}

// OnOrAfter matches appointments on or after the given instant.
func OnOrAfter(instant time.Time) DateFilter {
	return DateFilter{Prefix: "ge", Instant: instant}
}

func (f DateFilter) String() string {
	return f.Prefix + f.Instant.UTC().Format(time.RFC3339)
}

// Failure is returned when the FHIR API responds with a non-2xx status.
type Failure struct {
	StatusCode int
	Body       []byte
}

func (f *Failure) Error() string {
	return fmt.Sprintf("FHIR API responded with status %d", f.StatusCode)
}

// IsUnauthorized reports whether err is a Failure caused by an invalid or expired access token.
func IsUnauthorized(err error) bool {
	var failure *Failure
	return errors.As(err, &failure) && failure.StatusCode == http.StatusUnauthorized
}

type Config struct {
	// BaseURL is the base URL of the FHIR API, e.g. https://sandbox-api.va.gov/services/fhir/v0/r4
	BaseURL string        `koanf:"baseurl"`
	Timeout time.Duration `koanf:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "https://sandbox-api.va.gov/services/fhir/v0/r4",
		Timeout: 30 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("fhir.baseurl is required")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || !parsed.IsAbs() {
		return fmt.Errorf("fhir.baseurl must be an absolute URL: %s", c.BaseURL)
	}
	return nil
}

var _ Client = &FHIRClient{}

// FHIRClient is the Client for a FHIR R4 REST API.
type FHIRClient struct {
	baseURL   *url.URL
	transport http.RoundTripper
	timeout   time.Duration
}

func New(config Config) (*FHIRClient, error) {
	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid FHIR base URL: %w", err)
	}
	return &FHIRClient{
		baseURL: baseURL,
		transport: otelhttp.NewTransport(LoggingTransportDecorator{RoundTripper: http.DefaultTransport},
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return "fhir." + r.Method
			})),
		timeout: config.Timeout,
	}, nil
}

func (c *FHIRClient) Patient(ctx context.Context, accessToken string, subjectID string) (*fhir.Patient, error) {
	var result fhir.Patient
	err := c.do(ctx, accessToken, "Patient", func(client fhirclient.Client) error {
		return client.ReadWithContext(ctx, "Patient/"+url.PathEscape(subjectID), &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *FHIRClient) Appointments(ctx context.Context, accessToken string, subjectID string, filter DateFilter) ([]Appointment, error) {
	var bundle fhir.Bundle
	err := c.do(ctx, accessToken, "Appointment", func(client fhirclient.Client) error {
		return client.SearchWithContext(ctx, "Appointment", url.Values{
			"patient": []string{subjectID},
			"date":    []string{filter.String()},
		}, &bundle)
	})
	if err != nil {
		return nil, err
	}
	return entries[Appointment](ctx, bundle, "Appointment"), nil
}

func (c *FHIRClient) PractitionerRoles(ctx context.Context, accessToken string, subjectID string) ([]fhir.PractitionerRole, error) {
	var bundle fhir.Bundle
	err := c.do(ctx, accessToken, "PractitionerRole", func(client fhirclient.Client) error {
		return client.SearchWithContext(ctx, "PractitionerRole", url.Values{
			"patient": []string{subjectID},
		}, &bundle)
	})
	if err != nil {
		return nil, err
	}
	return entries[fhir.PractitionerRole](ctx, bundle, "PractitionerRole"), nil
}

// do executes a FHIR call with a client that authenticates with the given access token,
// turning non-2xx responses into a *Failure.
func (c *FHIRClient) do(ctx context.Context, accessToken string, resourceType string, call func(client fhirclient.Client) error) error {
	var failure *Failure
	config := fhirclient.DefaultConfig()
	config.UsePostSearch = false
	config.DefaultOptions = []fhirclient.Option{
		fhirclient.RequestHeaders(map[string][]string{
			"Cache-Control": {"no-cache"},
		}),
	}
	config.Non2xxStatusHandler = func(response *http.Response, responseBody []byte) {
		failure = &Failure{StatusCode: response.StatusCode, Body: responseBody}
		log.Warn().Ctx(ctx).
			Str(logging.FieldResourceType, resourceType).
			Int(logging.FieldStatus, response.StatusCode).
			Msgf("Non-2xx status code from FHIR API (%s %s)", response.Request.Method, logging.SanitizeURL(response.Request.URL))
		log.Debug().Ctx(ctx).Msgf("FHIR API response body: %s", string(responseBody))
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.transport,
		},
		Timeout: c.timeout,
	}
	err := call(fhirclient.New(c.baseURL, httpClient, &config))
	switch {
	case failure != nil:
		metrics.UpstreamRequests.WithLabelValues(resourceType, strconv.Itoa(failure.StatusCode)).Inc()
		return failure
	case err != nil:
		metrics.UpstreamRequests.WithLabelValues(resourceType, "error").Inc()
		return fmt.Errorf("%s request failed: %w", resourceType, err)
	}
	metrics.UpstreamRequests.WithLabelValues(resourceType, "200").Inc()
	return nil
}

// entries unmarshals the resources of a search result bundle. Entries that can't be parsed are skipped.
func entries[T any](ctx context.Context, bundle fhir.Bundle, resourceType string) []T {
	result := make([]T, 0, len(bundle.Entry))
	for i, entry := range bundle.Entry {
		if entry.Resource == nil {
			continue
		}
		var resource T
		if err := json.Unmarshal(entry.Resource, &resource); err != nil {
			log.Warn().Ctx(ctx).Err(err).Str(logging.FieldResourceType, resourceType).Msgf("Skipping unparsable search result entry (index=%d)", i)
			continue
		}
		result = append(result, resource)
	}
	return result
}
