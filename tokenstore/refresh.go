package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Refresher exchanges a subject's stored refresh token for a new credential at the authorization server's token endpoint.
type Refresher struct {
	store      *Store
	config     *oauth2.Config
	httpClient *http.Client
}

// ErrNoRefreshToken is returned when a refresh is requested for a subject that has no stored refresh token.
var ErrNoRefreshToken = errors.New("subject has no refresh token")

// NewRefresher creates a Refresher. If httpClient is nil, http.DefaultClient is used to call the token endpoint.
func NewRefresher(store *Store, config *oauth2.Config, httpClient *http.Client) *Refresher {
	return &Refresher{store: store, config: config, httpClient: httpClient}
}

// Exchange calls the token endpoint with the refresh_token grant. It doesn't touch the store.
// If the authorization server doesn't rotate the refresh token, the given one is returned as refresh token.
func (r *Refresher) Exchange(ctx context.Context, refreshToken string) (*Credential, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}
	token, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	result := Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if result.RefreshToken == "" {
		result.RefreshToken = refreshToken
	}
	return &result, nil
}

// Refresh exchanges the subject's stored refresh token for a new credential and stores it.
// On failure the stored credential is left untouched.
func (r *Refresher) Refresh(ctx context.Context, subjectID string) (*Credential, error) {
	current, err := r.store.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	result, err := r.Exchange(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := r.store.Put(ctx, subjectID, *result); err != nil {
		return nil, err
	}
	log.Debug().Ctx(ctx).Msg("Refreshed subject access token")
	return result, nil
}
