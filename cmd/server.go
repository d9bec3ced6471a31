package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Simha-Reddy/SSVF-VetConnect/assignment"
	"github.com/Simha-Reddy/SSVF-VetConnect/casenotes"
	"github.com/Simha-Reddy/SSVF-VetConnect/dashboard"
	"github.com/Simha-Reddy/SSVF-VetConnect/healthcheck"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/metrics"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/otel"
	"github.com/Simha-Reddy/SSVF-VetConnect/portal"
	"github.com/Simha-Reddy/SSVF-VetConnect/recordclient"
	"github.com/Simha-Reddy/SSVF-VetConnect/session"
	"github.com/Simha-Reddy/SSVF-VetConnect/storage"
	"github.com/Simha-Reddy/SSVF-VetConnect/summary"
	"github.com/Simha-Reddy/SSVF-VetConnect/tokenstore"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	shutdownTimeout   = 10 * time.Second
	tokenCallTimeout  = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Start runs the server until ctx is cancelled or the process receives SIGINT or SIGTERM.
func Start(ctx context.Context, config Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := otel.Initialize(ctx, config.OpenTelemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down tracer provider")
		}
	}()

	// Set up dependencies
	db, err := storage.Open(ctx, config.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	assignments := assignment.NewStore(db)
	if err := assignment.Seed(ctx, assignments, config.Seed.File); err != nil {
		return fmt.Errorf("failed to seed assignments: %w", err)
	}
	tokens := tokenstore.NewStore(db)
	records, err := recordclient.New(config.FHIR)
	if err != nil {
		return fmt.Errorf("failed to create FHIR client: %w", err)
	}
	sessions, err := session.NewManager(config.Session)
	if err != nil {
		return err
	}
	tokenHTTPClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   tokenCallTimeout,
	}
	var refresher summary.CredentialRefresher
	if config.Summary.RefreshOnUnauthorized {
		refresher = tokenstore.NewRefresher(tokens, config.OAuth.OAuth2Config(), tokenHTTPClient)
	}
	engine := assignment.NewEngine(assignments, tokens, records)

	// Register services
	services := []Service{
		healthcheck.New(db),
		portal.New(config.OAuth, tokenHTTPClient, sessions, tokens, assignments, engine),
		dashboard.New(config.Login, sessions, assignments, engine, tokens, summary.NewAggregator(records, refresher), casenotes.NewStore(db)),
	}
	httpHandler := http.NewServeMux()
	for _, service := range services {
		service.RegisterHandlers(httpHandler)
	}
	httpHandler.Handle("GET /metrics", metrics.Handler())
	if config.Frontend.Dir != "" {
		log.Info().Msgf("Serving frontend from %s", config.Frontend.Dir)
		httpHandler.Handle("GET /", http.FileServer(http.Dir(config.Frontend.Dir)))
	}

	// Start HTTP server
	server := &http.Server{
		Addr:              config.Public.Address,
		Handler:           withBasePath(config.Public.ParseURL(), httpHandler),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
		return nil
	}
}

// withBasePath serves the handler under the path of the public URL, for deployments behind a reverse proxy
// that doesn't strip it.
func withBasePath(publicURL *url.URL, handler http.Handler) http.Handler {
	basePath := strings.TrimSuffix(publicURL.Path, "/")
	if basePath == "" {
		return handler
	}
	return http.StripPrefix(basePath, handler)
}

type Service interface {
	RegisterHandlers(mux *http.ServeMux)
}
