// Package portal serves the subject-facing API: the OAuth2 consent flow, choosing a case worker and revoking access.
package portal

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Simha-Reddy/SSVF-VetConnect/assignment"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/httpserv"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/logging"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/metrics"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/otel"
	"github.com/Simha-Reddy/SSVF-VetConnect/session"
	"github.com/Simha-Reddy/SSVF-VetConnect/tokenstore"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const defaultConsentRedirect = "/approval_success.html"

// patientContextParameter is the token response parameter that carries the subject's ICN.
const patientContextParameter = "patient"

type Service struct {
	oauth       *oauth2.Config
	audience    string
	httpClient  *http.Client
	sessions    *session.Manager
	tokens      *tokenstore.Store
	assignments *assignment.Store
	engine      *assignment.Engine
}

// New creates the portal service. httpClient is used to call the token endpoint.
func New(config Config, httpClient *http.Client, sessions *session.Manager, tokens *tokenstore.Store,
	assignments *assignment.Store, engine *assignment.Engine) *Service {
	return &Service{
		oauth:       config.OAuth2Config(),
		audience:    config.Audience,
		httpClient:  httpClient,
		sessions:    sessions,
		tokens:      tokens,
		assignments: assignments,
		engine:      engine,
	}
}

func (s *Service) RegisterHandlers(mux *http.ServeMux) {
	httpserv.RegisterRoutes(mux,
		httpserv.Route{Method: http.MethodGet, Path: "/login", Handler: s.handleLogin, Middleware: instrumented("portal.login")},
		httpserv.Route{Method: http.MethodGet, Path: "/oauth/callback", Handler: s.handleCallback, Middleware: instrumented("portal.callback")},
		httpserv.Route{Method: http.MethodPost, Path: "/api/assign_veteran", Handler: s.handleAssign, Middleware: instrumented("portal.assign")},
		httpserv.Route{Method: http.MethodPost, Path: "/api/revoke", Handler: s.handleRevoke, Middleware: instrumented("portal.revoke")},
		httpserv.Route{Method: http.MethodGet, Path: "/api/agencies", Handler: s.handleListAgencies, Middleware: instrumented("portal.agencies")},
		httpserv.Route{Method: http.MethodGet, Path: "/api/case_managers", Handler: s.handleListCaseWorkers, Middleware: instrumented("portal.case_managers")},
	)
}

func instrumented(operation string) func(http.HandlerFunc) http.HandlerFunc {
	return httpserv.Chain(metrics.Instrument(operation), otel.HandlerWithTracing(operation))
}

// handleLogin starts the consent flow by redirecting the subject to the authorization server.
func (s *Service) handleLogin(response http.ResponseWriter, request *http.Request) {
	if next := request.URL.Query().Get("next"); next != "" {
		s.sessions.SetNext(response, next)
	}
	// TODO: verify state in the callback, it's currently only sent
	authURL := s.oauth.AuthCodeURL(uuid.NewString(), oauth2.SetAuthURLParam("aud", s.audience))
	http.Redirect(response, request, authURL, http.StatusFound)
}

// handleCallback exchanges the authorization code for the subject's credential and stores it.
func (s *Service) handleCallback(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	code := request.URL.Query().Get("code")
	if code == "" {
		httpserv.WriteError(ctx, response, "OAuth callback", httpserv.BadRequest("No code provided"))
		return
	}
	token, err := s.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, s.httpClient), code)
	if err != nil {
		log.Warn().Ctx(ctx).Err(err).Msg("OAuth code exchange failed")
		httpserv.WriteError(ctx, response, "OAuth code exchange", httpserv.NewErrorWithCode("token exchange failed", http.StatusBadGateway))
		return
	}
	icn, _ := token.Extra(patientContextParameter).(string)
	if icn == "" {
		httpserv.WriteError(ctx, response, "OAuth callback", httpserv.BadRequest("No patient context provided"))
		return
	}
	if err := s.tokens.Put(ctx, icn, tokenstore.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}); err != nil {
		httpserv.WriteError(ctx, response, "OAuth callback", err)
		return
	}
	if err := s.sessions.CreateSubject(response, session.Subject{
		ICN:          icn,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}); err != nil {
		httpserv.WriteError(ctx, response, "OAuth callback", err)
		return
	}
	log.Info().Ctx(ctx).Msg("Subject granted consent")
	next := s.sessions.Next(response, request)
	if next == "" {
		next = defaultConsentRedirect
	}
	http.Redirect(response, request, next, http.StatusFound)
}

func (s *Service) handleAssign(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	subject := s.sessions.Subject(request)
	if subject == nil {
		httpserv.WriteError(ctx, response, "Assign veteran", httpserv.Unauthorized("Veteran not logged in"))
		return
	}
	var body assignment.AssignRequest
	if err := httpserv.ReadJSON(request, &body); err != nil {
		httpserv.WriteError(ctx, response, "Assign veteran", err)
		return
	}
	message, err := s.engine.Assign(ctx, subject, body)
	if err != nil {
		httpserv.WriteError(ctx, response, "Assign veteran", err)
		return
	}
	httpserv.WriteJSON(response, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
	})
}

// handleRevoke removes the subject's stored credential and ends the subject session.
// Without a subject session it does nothing.
func (s *Service) handleRevoke(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	if subject := s.sessions.Subject(request); subject != nil {
		if err := s.tokens.Remove(ctx, subject.ICN); err != nil {
			httpserv.WriteError(ctx, response, "Revoke access", err)
			return
		}
		log.Info().Ctx(ctx).Msg("Subject revoked access")
	}
	s.sessions.DestroySubject(response, request)
	httpserv.WriteJSON(response, http.StatusOK, map[string]string{
		"message": "Access revoked.",
	})
}

func (s *Service) handleListAgencies(response http.ResponseWriter, request *http.Request) {
	agencies, err := s.assignments.Agencies(request.Context())
	if err != nil {
		httpserv.WriteError(request.Context(), response, "List agencies", err)
		return
	}
	httpserv.WriteJSON(response, http.StatusOK, agencies)
}

func (s *Service) handleListCaseWorkers(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	agencyIDParam := request.URL.Query().Get("agency_id")
	if agencyIDParam == "" {
		httpserv.WriteError(ctx, response, "List case managers", httpserv.BadRequest("Missing agency ID"))
		return
	}
	agencyID, err := strconv.Atoi(agencyIDParam)
	if err != nil {
		httpserv.WriteError(ctx, response, "List case managers", httpserv.BadRequest("Invalid agency ID"))
		return
	}
	caseWorkers, err := s.assignments.CaseWorkers(ctx, agencyID)
	if errors.Is(err, assignment.ErrAgencyNotFound) {
		httpserv.WriteError(ctx, response, "List case managers", httpserv.BadRequest("Invalid agency ID"))
		return
	}
	if err != nil {
		httpserv.WriteError(ctx, response, "List case managers", err)
		return
	}
	log.Debug().Ctx(ctx).Int(logging.FieldAgencyID, agencyID).Msgf("Listing %d case managers", len(caseWorkers))
	httpserv.WriteJSON(response, http.StatusOK, caseWorkers)
}
