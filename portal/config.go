package portal

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
)

// Config configures the OAuth2 authorization code flow through which subjects grant consent.
type Config struct {
	ClientID     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
	RedirectURI  string `koanf:"redirecturi"`
	AuthURL      string `koanf:"authurl"`
	TokenURL     string `koanf:"tokenurl"`
	// Audience is sent as aud parameter in the authorization request.
	Audience string   `koanf:"audience"`
	Scopes   []string `koanf:"scopes"`
}

func DefaultConfig() Config {
	return Config{
		RedirectURI: "http://127.0.0.1:5000/oauth/callback",
		AuthURL:     "https://sandbox-api.va.gov/oauth2/health/v1/authorization",
		TokenURL:    "https://sandbox-api.va.gov/oauth2/health/v1/token",
		Audience:    "https://sandbox-api.va.gov/oauth2/authorization",
		Scopes: []string{
			"launch/patient",
			"patient/Patient.read",
			"patient/Appointment.read",
			"patient/PractitionerRole.read",
			"patient/Location.read",
			"openid",
			"profile",
		},
	}
}

func (c Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("oauth.clientid is required")
	}
	for name, value := range map[string]string{
		"oauth.redirecturi": c.RedirectURI,
		"oauth.authurl":     c.AuthURL,
		"oauth.tokenurl":    c.TokenURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil || !parsed.IsAbs() {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}
	return nil
}

// OAuth2Config returns the client configuration for the authorization server.
func (c Config) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
