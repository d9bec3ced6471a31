package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/Simha-Reddy/SSVF-VetConnect/assignment"
	"github.com/Simha-Reddy/SSVF-VetConnect/dashboard"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/must"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/otel"
	"github.com/Simha-Reddy/SSVF-VetConnect/portal"
	"github.com/Simha-Reddy/SSVF-VetConnect/recordclient"
	"github.com/Simha-Reddy/SSVF-VetConnect/session"
	"github.com/Simha-Reddy/SSVF-VetConnect/storage"
	"github.com/Simha-Reddy/SSVF-VetConnect/summary"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

const envPrefix = "VETCONNECT_"

type Config struct {
	// Public holds the configuration for the public interface.
	Public  InterfaceConfig `koanf:"public"`
	Storage storage.Config  `koanf:"storage"`
	// OAuth holds the client registration at the authorization server of the FHIR API.
	OAuth    portal.Config         `koanf:"oauth"`
	FHIR     recordclient.Config   `koanf:"fhir"`
	Session  session.Config        `koanf:"session"`
	Seed     assignment.SeedConfig `koanf:"seed"`
	Frontend FrontendConfig        `koanf:"frontend"`
	Login    dashboard.LoginConfig `koanf:"login"`
	Summary  summary.Config        `koanf:"summary"`
	LogLevel zerolog.Level         `koanf:"loglevel"`
	// StrictMode refuses configurations that are only fit for local development,
	// e.g. a generated session secret or session cookies sent over plain HTTP.
	StrictMode bool `koanf:"strictmode"`
	// OpenTelemetry holds the configuration for observability
	OpenTelemetry otel.Config `koanf:"opentelemetry"`
}

func (c Config) Validate() error {
	if c.Public.URL == "" {
		return errors.New("public base URL is not configured")
	}
	if _, err := url.Parse(c.Public.URL); err != nil {
		return errors.New("invalid public base URL")
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage configuration: %w", err)
	}
	if err := c.OAuth.Validate(); err != nil {
		return fmt.Errorf("invalid OAuth configuration: %w", err)
	}
	if err := c.FHIR.Validate(); err != nil {
		return fmt.Errorf("invalid FHIR configuration: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("invalid session configuration: %w", err)
	}
	if err := c.Login.Validate(); err != nil {
		return fmt.Errorf("invalid login configuration: %w", err)
	}
	if err := c.Frontend.Validate(); err != nil {
		return fmt.Errorf("invalid frontend configuration: %w", err)
	}
	if err := c.OpenTelemetry.Validate(); err != nil {
		return fmt.Errorf("invalid OpenTelemetry configuration: %w", err)
	}
	if c.StrictMode {
		if c.Session.Secret == "" {
			return errors.New("session.secret is required in strict mode")
		}
		if !c.Session.Secure {
			return errors.New("session.secure can't be disabled in strict mode")
		}
	}
	return nil
}

// InterfaceConfig holds the configuration for an HTTP interface.
type InterfaceConfig struct {
	// Address holds the address to listen on.
	Address string `koanf:"address"`
	// URL holds the base URL of the interface.
	// Set it in case the service is behind a reverse proxy that maps it to a different URL than root (/).
	URL string `koanf:"url"`
}

// ParseURL returns the parsed base URL. It panics on an invalid URL, so only call it after Validate.
func (i InterfaceConfig) ParseURL() *url.URL {
	return must.ParseURL(i.URL)
}

// FrontendConfig configures the static web pages (portal and dashboard) served at the root.
type FrontendConfig struct {
	// Dir is the directory containing the pages. If empty, no pages are served.
	Dir string `koanf:"dir"`
}

func (c FrontendConfig) Validate() error {
	if c.Dir == "" {
		return nil
	}
	info, err := os.Stat(c.Dir)
	if err != nil {
		return fmt.Errorf("frontend.dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("frontend.dir is not a directory: %s", c.Dir)
	}
	return nil
}

// LoadConfig loads the configuration from the environment. Variables in a .env file in the working directory
// are loaded first, but don't override variables already set.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	result := DefaultConfig()
	err := loadConfigInto(&result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func loadConfigInto(target any) error {
	k := koanf.New(".")
	err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key string, value string) (string, interface{}) {
		key = strings.Replace(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", ".", -1)
		if len(value) == 0 {
			return key, nil
		}
		sliceValues := splitWithEscaping(value, ",", "\\")
		for i, s := range sliceValues {
			sliceValues[i] = strings.TrimSpace(s)
		}
		var parsedValue any = sliceValues
		if len(sliceValues) == 1 {
			parsedValue = sliceValues[0]
		}
		return key, parsedValue
	}), nil)
	if err != nil {
		return err
	}
	return k.Unmarshal("", target)
}

func splitWithEscaping(s, separator, escape string) []string {
	s = strings.ReplaceAll(s, escape+separator, "\x00")
	tokens := strings.Split(s, separator)
	for i, token := range tokens {
		tokens[i] = strings.ReplaceAll(token, "\x00", separator)
	}
	return tokens
}

// DefaultConfig returns sensible, but not complete, default configuration values.
// At least the OAuth client ID must be set.
func DefaultConfig() Config {
	return Config{
		LogLevel:   zerolog.InfoLevel,
		StrictMode: true,
		Public: InterfaceConfig{
			Address: ":5000",
			URL:     "/",
		},
		Storage:       storage.DefaultConfig(),
		OAuth:         portal.DefaultConfig(),
		FHIR:          recordclient.DefaultConfig(),
		Session:       session.DefaultConfig(),
		Login:         dashboard.DefaultLoginConfig(),
		Summary:       summary.DefaultConfig(),
		OpenTelemetry: otel.DefaultConfig(),
	}
}
