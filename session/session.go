// Package session issues and verifies the signed, expiring session cookies that identify the caller of a request:
// either a logged-in case worker or a subject who just completed the consent flow.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"
)

const (
	caseWorkerCookieName = "cw_session"
	subjectCookieName    = "subject_session"
	nextCookieName       = "next"
	issuer               = "ssvf-vetconnect"
	nextCookieLifetime   = 10 * time.Minute
)

const (
	kindCaseWorker = "case_worker"
	kindSubject    = "subject"
)

type Config struct {
	// Secret is used to sign session tokens. If empty, a random secret is generated at startup,
	// meaning sessions don't survive a restart.
	Secret   string        `koanf:"secret"`
	Lifetime time.Duration `koanf:"lifetime"`
	// Secure marks session cookies as Secure (HTTPS only).
	Secure bool `koanf:"secure"`
}

func DefaultConfig() Config {
	return Config{
		Lifetime: 8 * time.Hour,
		Secure:   true,
	}
}

func (c Config) Validate() error {
	if c.Lifetime <= 0 {
		return errors.New("session.lifetime must be positive")
	}
	return nil
}

// CaseWorker identifies a logged-in case worker.
type CaseWorker struct {
	ID       int    `json:"id"`
	AgencyID int    `json:"agency_id"`
	Username string `json:"username"`
}

// Subject identifies a subject that granted consent, together with the credential obtained from the consent flow.
type Subject struct {
	ICN          string
	AccessToken  string
	RefreshToken string
}

type claims struct {
	Kind     string `json:"kind"`
	AgencyID int    `json:"agency_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// Manager creates and verifies session cookies. Subject credentials never leave the server:
// the subject cookie only carries a token ID that refers to them.
type Manager struct {
	key      []byte
	signer   jose.Signer
	lifetime time.Duration
	secure   bool
	subjects *ttlcache.Cache[string, Subject]
	now      func() time.Time
}

func NewManager(config Config) (*Manager, error) {
	secret := []byte(config.Secret)
	if len(secret) == 0 {
		log.Warn().Msg("No session secret configured, generating a random one. Sessions won't survive a restart.")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}
	key := sha256.Sum256(secret)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: key[:]}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return nil, fmt.Errorf("unable to create session token signer: %w", err)
	}
	return &Manager{
		key:      key[:],
		signer:   signer,
		lifetime: config.Lifetime,
		secure:   config.Secure,
		subjects: ttlcache.New[string, Subject](ttlcache.WithTTL[string, Subject](config.Lifetime)),
		now:      time.Now,
	}, nil
}

// CreateCaseWorker sets the case-worker session cookie.
func (m *Manager) CreateCaseWorker(response http.ResponseWriter, caseWorker CaseWorker) error {
	token, err := m.sign(strconv.Itoa(caseWorker.ID), claims{
		Kind:     kindCaseWorker,
		AgencyID: caseWorker.AgencyID,
		Username: caseWorker.Username,
	}, uuid.NewString())
	if err != nil {
		return err
	}
	m.setCookie(response, caseWorkerCookieName, token, m.now().Add(m.lifetime))
	return nil
}

// CaseWorker returns the case worker identified by the request's session cookie,
// or nil if there's no valid case-worker session.
func (m *Manager) CaseWorker(request *http.Request) *CaseWorker {
	standard, custom := m.verify(request, caseWorkerCookieName, kindCaseWorker)
	if standard == nil {
		return nil
	}
	id, err := strconv.Atoi(standard.Subject)
	if err != nil {
		return nil
	}
	return &CaseWorker{
		ID:       id,
		AgencyID: custom.AgencyID,
		Username: custom.Username,
	}
}

// DestroyCaseWorker clears the case-worker session cookie.
func (m *Manager) DestroyCaseWorker(response http.ResponseWriter) {
	m.setCookie(response, caseWorkerCookieName, "", m.now().Add(-time.Minute))
}

// CreateSubject stores the subject's credential server-side and sets the subject session cookie.
func (m *Manager) CreateSubject(response http.ResponseWriter, subject Subject) error {
	m.subjects.DeleteExpired()
	tokenID := uuid.NewString()
	token, err := m.sign(subject.ICN, claims{Kind: kindSubject}, tokenID)
	if err != nil {
		return err
	}
	m.subjects.Set(tokenID, subject, ttlcache.DefaultTTL)
	m.setCookie(response, subjectCookieName, token, m.now().Add(m.lifetime))
	return nil
}

// Subject returns the subject identified by the request's session cookie,
// or nil if there's no valid subject session.
func (m *Manager) Subject(request *http.Request) *Subject {
	standard, _ := m.verify(request, subjectCookieName, kindSubject)
	if standard == nil {
		return nil
	}
	item := m.subjects.Get(standard.ID)
	if item == nil {
		return nil
	}
	result := item.Value()
	if result.ICN != standard.Subject {
		return nil
	}
	return &result
}

// DestroySubject discards the subject's server-side credential (if any) and clears the subject session cookie.
func (m *Manager) DestroySubject(response http.ResponseWriter, request *http.Request) {
	if standard, _ := m.verify(request, subjectCookieName, kindSubject); standard != nil {
		m.subjects.Delete(standard.ID)
	}
	m.setCookie(response, subjectCookieName, "", m.now().Add(-time.Minute))
}

// SetNext remembers where to send the subject after the consent flow. Only relative paths are accepted.
func (m *Manager) SetNext(response http.ResponseWriter, next string) {
	if !IsRelativePath(next) {
		return
	}
	m.setCookie(response, nextCookieName, next, m.now().Add(nextCookieLifetime))
}

// Next returns the remembered post-consent path and clears it, or returns an empty string.
func (m *Manager) Next(response http.ResponseWriter, request *http.Request) string {
	cookie, err := request.Cookie(nextCookieName)
	if err != nil {
		return ""
	}
	m.setCookie(response, nextCookieName, "", m.now().Add(-time.Minute))
	if !IsRelativePath(cookie.Value) {
		return ""
	}
	return cookie.Value
}

// IsRelativePath reports whether the given redirect target stays on this host.
func IsRelativePath(path string) bool {
	if len(path) == 0 || path[0] != '/' {
		return false
	}
	// Protocol-relative URLs (//host) and backslash variants browsers normalize to them
	return len(path) == 1 || (path[1] != '/' && path[1] != '\\')
}

func (m *Manager) sign(subject string, custom claims, tokenID string) (string, error) {
	now := m.now()
	standard := jwt.Claims{
		Issuer:    issuer,
		Subject:   subject,
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(m.lifetime)),
	}
	token, err := jwt.Signed(m.signer).Claims(standard).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("unable to sign session token: %w", err)
	}
	return token, nil
}

func (m *Manager) verify(request *http.Request, cookieName string, kind string) (*jwt.Claims, *claims) {
	cookie, err := request.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	token, err := jwt.ParseSigned(cookie.Value, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		log.Debug().Err(err).Msg("Invalid session token")
		return nil, nil
	}
	var standard jwt.Claims
	var custom claims
	if err := token.Claims(m.key, &standard, &custom); err != nil {
		log.Debug().Err(err).Msg("Session token signature verification failed")
		return nil, nil
	}
	if err := standard.ValidateWithLeeway(jwt.Expected{Issuer: issuer, Time: m.now()}, 0); err != nil {
		log.Debug().Err(err).Msg("Session token rejected")
		return nil, nil
	}
	if custom.Kind != kind {
		return nil, nil
	}
	return &standard, &custom
}

func (m *Manager) setCookie(response http.ResponseWriter, name string, value string, expires time.Time) {
	http.SetCookie(response, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}
