package test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupHAPI starts a HAPI FHIR R4 server and returns its FHIR base URL. The container is removed when the test ends.
func SetupHAPI(t *testing.T) *url.URL {
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "hapiproject/hapi:v7.2.0",
		ExposedPorts: []string{"8080/tcp"},
		Env: map[string]string{
			"hapi.fhir.fhir_version":              "R4",
			"hapi.fhir.allow_external_references": "true",
			"hapi.fhir.client_id_strategy":        "ANY",
		},
		WaitingFor: wait.ForHTTP("/fhir/Patient").WithStartupTimeout(2 * time.Minute),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			panic(err)
		}
	})
	endpoint, err := container.Endpoint(ctx, "http")
	require.NoError(t, err)
	u, err := url.Parse(endpoint)
	require.NoError(t, err)
	return u.JoinPath("fhir")
}

// PutResource stores a resource on the FHIR server at the given path (e.g. Patient/123), creating or replacing it.
func PutResource(t *testing.T, fhirBaseURL *url.URL, path string, resource any) {
	t.Helper()
	client := fhirclient.New(fhirBaseURL, http.DefaultClient, nil)
	require.NoError(t, client.Update(path, resource, nil))
}
