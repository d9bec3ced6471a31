// Package dashboard serves the case-worker API: login, the subject listing, reassignment, subject summaries and case notes.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Simha-Reddy/SSVF-VetConnect/assignment"
	"github.com/Simha-Reddy/SSVF-VetConnect/casenotes"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/httpserv"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/logging"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/metrics"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/otel"
	"github.com/Simha-Reddy/SSVF-VetConnect/session"
	"github.com/Simha-Reddy/SSVF-VetConnect/summary"
	"github.com/Simha-Reddy/SSVF-VetConnect/tokenstore"
	"github.com/rs/zerolog/log"
)

var errNotAuthorizedForSubject = httpserv.Forbidden("Not authorized for this patient")

type Service struct {
	sessions     *session.Manager
	assignments  *assignment.Store
	engine       *assignment.Engine
	tokens       *tokenstore.Store
	summaries    *summary.Aggregator
	notes        *casenotes.Store
	loginLimiter *httpserv.RateLimiter
}

func New(loginConfig LoginConfig, sessions *session.Manager, assignments *assignment.Store, engine *assignment.Engine,
	tokens *tokenstore.Store, summaries *summary.Aggregator, notes *casenotes.Store) *Service {
	return &Service{
		sessions:     sessions,
		assignments:  assignments,
		engine:       engine,
		tokens:       tokens,
		summaries:    summaries,
		notes:        notes,
		loginLimiter: httpserv.NewRateLimiter(loginConfig.RateLimit, loginConfig.Burst),
	}
}

func (s *Service) RegisterHandlers(mux *http.ServeMux) {
	httpserv.RegisterRoutes(mux,
		httpserv.Route{
			Method:     http.MethodPost,
			Path:       "/case_manager_login",
			Handler:    s.handleLogin,
			Middleware: httpserv.Chain(instrumented("dashboard.login"), s.loginLimiter.Middleware),
		},
		httpserv.Route{Method: http.MethodPost, Path: "/case_manager_logout", Handler: s.handleLogout, Middleware: instrumented("dashboard.logout")},
		httpserv.Route{Method: http.MethodGet, Path: "/api/case_manager_session", Handler: s.handleGetSession, Middleware: instrumented("dashboard.session")},
		httpserv.Route{Method: http.MethodGet, Path: "/api/veterans", Handler: s.handleListSubjects, Middleware: instrumented("dashboard.veterans")},
		httpserv.Route{Method: http.MethodPost, Path: "/api/reassign_veteran", Handler: s.handleReassign, Middleware: instrumented("dashboard.reassign")},
		httpserv.Route{Method: http.MethodGet, Path: "/api/patient", Handler: s.handleGetSummary, Middleware: instrumented("dashboard.patient")},
		httpserv.Route{Method: http.MethodPost, Path: "/api/case_notes", Handler: s.handlePutCaseNotes, Middleware: instrumented("dashboard.case_notes.put")},
		httpserv.Route{Method: http.MethodGet, Path: "/api/case_notes/{icn}", Handler: s.handleGetCaseNotes, Middleware: instrumented("dashboard.case_notes.get")},
	)
}

func instrumented(operation string) func(http.HandlerFunc) http.HandlerFunc {
	return httpserv.Chain(metrics.Instrument(operation), otel.HandlerWithTracing(operation))
}

type loginRequest struct {
	// AgencyID is accepted both as JSON number and as numeric string.
	AgencyID json.RawMessage `json:"agency_id"`
	Username string          `json:"username"`
	Password string          `json:"password"`
}

func (s *Service) handleLogin(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	var body loginRequest
	if err := httpserv.ReadJSON(request, &body); err != nil {
		httpserv.WriteError(ctx, response, "Case manager login", err)
		return
	}
	agencyID, ok := parseAgencyID(body.AgencyID)
	if !ok {
		httpserv.WriteError(ctx, response, "Case manager login", httpserv.BadRequest("Invalid agency ID"))
		return
	}
	if body.Username == "" || body.Password == "" {
		httpserv.WriteError(ctx, response, "Case manager login", httpserv.BadRequest("Missing required fields"))
		return
	}
	caseWorker, err := s.assignments.VerifyCredentials(ctx, agencyID, body.Username, body.Password)
	switch {
	case errors.Is(err, assignment.ErrAgencyNotFound):
		err = httpserv.BadRequest("Invalid agency")
	case errors.Is(err, assignment.ErrInvalidCredentials):
		err = httpserv.Unauthorized("Invalid credentials")
	}
	if err != nil {
		httpserv.WriteError(ctx, response, "Case manager login", err)
		return
	}
	if err := s.sessions.CreateCaseWorker(response, *caseWorker); err != nil {
		httpserv.WriteError(ctx, response, "Case manager login", err)
		return
	}
	log.Info().Ctx(ctx).
		Int(logging.FieldAgencyID, caseWorker.AgencyID).
		Int(logging.FieldCaseWorkerID, caseWorker.ID).
		Msg("Case manager logged in")
	httpserv.WriteJSON(response, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
	})
}

func parseAgencyID(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0, false
	}
	result, err := strconv.Atoi(number.String())
	if err != nil {
		return 0, false
	}
	return result, true
}

func (s *Service) handleLogout(response http.ResponseWriter, _ *http.Request) {
	s.sessions.DestroyCaseWorker(response)
	httpserv.WriteJSON(response, http.StatusOK, map[string]any{
		"success": true,
	})
}

func (s *Service) handleGetSession(response http.ResponseWriter, request *http.Request) {
	caseWorker := s.sessions.CaseWorker(request)
	if caseWorker == nil {
		httpserv.WriteError(request.Context(), response, "Get case manager session", httpserv.Unauthorized("Not logged in"))
		return
	}
	httpserv.WriteJSON(response, http.StatusOK, caseWorker)
}

func (s *Service) handleListSubjects(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	query := assignment.Query{
		All: request.URL.Query().Get("all") == "true",
	}
	if param := request.URL.Query().Get("case_manager_id"); param != "" && !query.All {
		caseWorkerID, err := strconv.Atoi(param)
		if err != nil {
			httpserv.WriteError(ctx, response, "List veterans", httpserv.BadRequest("Invalid case manager"))
			return
		}
		query.CaseWorkerID = &caseWorkerID
	}
	links, err := s.engine.Query(ctx, s.sessions.CaseWorker(request), query)
	if err != nil {
		httpserv.WriteError(ctx, response, "List veterans", err)
		return
	}
	httpserv.WriteJSON(response, http.StatusOK, links)
}

func (s *Service) handleReassign(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	caller := s.sessions.CaseWorker(request)
	if caller == nil {
		httpserv.WriteError(ctx, response, "Reassign veteran", httpserv.Unauthorized("Unauthorized"))
		return
	}
	var body assignment.ReassignRequest
	if err := httpserv.ReadJSON(request, &body); err != nil {
		httpserv.WriteError(ctx, response, "Reassign veteran", err)
		return
	}
	if err := s.engine.Reassign(ctx, caller, body); err != nil {
		httpserv.WriteError(ctx, response, "Reassign veteran", err)
		return
	}
	httpserv.WriteJSON(response, http.StatusOK, map[string]any{
		"success": true,
		"message": assignment.MessageReassigned,
	})
}

// handleGetSummary returns the summary of a subject. Without id (or with id=session) it is the summary of the subject
// that is logged in. Case workers get the summaries of subjects assigned within their agency.
func (s *Service) handleGetSummary(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	subjectID, err := s.authorizeSubjectAccess(ctx, request, request.URL.Query().Get("id"))
	if err != nil {
		httpserv.WriteError(ctx, response, "Get patient summary", err)
		return
	}
	credential, err := s.tokens.Get(ctx, subjectID)
	if errors.Is(err, tokenstore.ErrNotFound) {
		err = errNotAuthorizedForSubject
	}
	if err != nil {
		httpserv.WriteError(ctx, response, "Get patient summary", err)
		return
	}
	httpserv.WriteJSON(response, http.StatusOK, s.summaries.Build(ctx, subjectID, credential.AccessToken))
}

func (s *Service) authorizeSubjectAccess(ctx context.Context, request *http.Request, requestedID string) (string, error) {
	subject := s.sessions.Subject(request)
	if requestedID == "" || requestedID == "session" {
		if subject == nil {
			return "", httpserv.Unauthorized("Missing patient id")
		}
		return subject.ICN, nil
	}
	if subject != nil && subject.ICN == requestedID {
		return requestedID, nil
	}
	if err := s.authorizeCaseWorker(ctx, request, requestedID); err != nil {
		return "", err
	}
	return requestedID, nil
}

// authorizeCaseWorker checks that the request comes from a case worker whose agency the subject is assigned in.
func (s *Service) authorizeCaseWorker(ctx context.Context, request *http.Request, subjectID string) error {
	caseWorker := s.sessions.CaseWorker(request)
	if caseWorker == nil {
		return httpserv.Unauthorized("Unauthorized")
	}
	authorized, err := s.engine.Authorized(ctx, caseWorker, subjectID)
	if err != nil {
		return err
	}
	if !authorized {
		return errNotAuthorizedForSubject
	}
	return nil
}

type caseNotesRequest struct {
	ICN string `json:"icn"`
	casenotes.Note
}

func (s *Service) handlePutCaseNotes(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	if s.sessions.CaseWorker(request) == nil {
		httpserv.WriteError(ctx, response, "Save case notes", httpserv.Unauthorized("Unauthorized"))
		return
	}
	var body caseNotesRequest
	if err := httpserv.ReadJSON(request, &body); err != nil {
		httpserv.WriteError(ctx, response, "Save case notes", err)
		return
	}
	if body.ICN == "" {
		httpserv.WriteError(ctx, response, "Save case notes", httpserv.BadRequest("Missing ICN"))
		return
	}
	if err := s.authorizeCaseWorker(ctx, request, body.ICN); err != nil {
		httpserv.WriteError(ctx, response, "Save case notes", err)
		return
	}
	if err := s.notes.Put(ctx, body.ICN, body.Note); err != nil {
		httpserv.WriteError(ctx, response, "Save case notes", err)
		return
	}
	httpserv.WriteJSON(response, http.StatusOK, map[string]any{
		"success": true,
	})
}

func (s *Service) handleGetCaseNotes(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	subjectID := request.PathValue("icn")
	if err := s.authorizeCaseWorker(ctx, request, subjectID); err != nil {
		httpserv.WriteError(ctx, response, "Get case notes", err)
		return
	}
	note, err := s.notes.Get(ctx, subjectID)
	if err != nil {
		httpserv.WriteError(ctx, response, "Get case notes", err)
		return
	}
	if note == nil {
		httpserv.WriteJSON(response, http.StatusOK, map[string]any{})
		return
	}
	httpserv.WriteJSON(response, http.StatusOK, note)
}
