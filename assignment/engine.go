package assignment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Simha-Reddy/SSVF-VetConnect/lib/httpserv"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/logging"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/metrics"
	"github.com/Simha-Reddy/SSVF-VetConnect/recordclient"
	"github.com/Simha-Reddy/SSVF-VetConnect/session"
	"github.com/Simha-Reddy/SSVF-VetConnect/summary"
	"github.com/Simha-Reddy/SSVF-VetConnect/tokenstore"
	"github.com/rs/zerolog/log"
)

const (
	defaultSubjectName = "New Veteran"

	MessageAssigned   = "Veteran assigned successfully"
	MessageRenewed    = "Access renewed for existing case manager."
	MessageReassigned = "Veteran reassigned successfully"
)

// CredentialStore is where Assign records the subject's credential, e.g. *tokenstore.Store.
// It writes as part of the assignment's transaction, so it must use the same database as the Store.
type CredentialStore interface {
	PutPreservingRefreshInTx(ctx context.Context, tx *sql.Tx, subjectID string, credential tokenstore.Credential) error
}

// Engine performs the assignment operations on behalf of an authenticated caller.
type Engine struct {
	store   *Store
	tokens  CredentialStore
	records recordclient.Client
}

func NewEngine(store *Store, tokens CredentialStore, records recordclient.Client) *Engine {
	return &Engine{
		store:   store,
		tokens:  tokens,
		records: records,
	}
}

type AssignRequest struct {
	AgencyID     int `json:"agency_id"`
	CaseWorkerID int `json:"case_manager_id"`
}

type ReassignRequest struct {
	SubjectID    string `json:"veteran_id"`
	CaseWorkerID int    `json:"new_case_manager_id"`
}

// Query selects the subjects to list: all of the caller's agency, those of a specific case worker,
// or (if neither is set) those of the caller.
type Query struct {
	All          bool
	CaseWorkerID *int
}

// Assign links the consenting subject to a case worker of the given agency and stores the subject's credential.
// It returns the message to show to the subject.
func (e *Engine) Assign(ctx context.Context, subject *session.Subject, request AssignRequest) (string, error) {
	if subject == nil || subject.ICN == "" || subject.AccessToken == "" {
		return "", httpserv.Unauthorized("Veteran not logged in")
	}
	if request.AgencyID == 0 || request.CaseWorkerID == 0 {
		return "", httpserv.BadRequest("Missing required fields")
	}
	if err := requireAgency(ctx, e.store.db, request.AgencyID); err != nil {
		return "", mapError(err)
	}
	if err := requireCaseWorker(ctx, e.store.db, request.AgencyID, request.CaseWorkerID); err != nil {
		return "", mapError(err)
	}

	link, fetched := e.subjectLink(ctx, subject)
	credential := tokenstore.Credential{
		AccessToken:  subject.AccessToken,
		RefreshToken: subject.RefreshToken,
	}
	outcome, err := e.store.assign(ctx, request.AgencyID, request.CaseWorkerID, link, fetched, func(tx *sql.Tx) error {
		return e.tokens.PutPreservingRefreshInTx(ctx, tx, subject.ICN, credential)
	})
	if err != nil {
		metrics.AssignmentOperations.WithLabelValues("assign", "error").Inc()
		return "", mapError(err)
	}

	logger := log.Info().Ctx(ctx).Int(logging.FieldAgencyID, request.AgencyID).Int(logging.FieldCaseWorkerID, request.CaseWorkerID)
	switch outcome {
	case alreadyAssigned:
		metrics.AssignmentOperations.WithLabelValues("assign", "renewed").Inc()
		logger.Msg("Subject renewed access for its case worker")
		return MessageRenewed, nil
	case movedFromOther:
		metrics.AssignmentOperations.WithLabelValues("assign", "moved").Inc()
		logger.Msg("Subject moved to another case worker")
	default:
		metrics.AssignmentOperations.WithLabelValues("assign", "assigned").Inc()
		logger.Msg("Subject assigned to case worker")
	}
	return MessageAssigned, nil
}

// subjectLink fetches the subject's name and date of birth for the link. The lookup is best effort:
// if it fails, placeholder values are used and false is returned.
func (e *Engine) subjectLink(ctx context.Context, subject *session.Subject) (SubjectLink, bool) {
	result := SubjectLink{
		ID:   subject.ICN,
		Name: defaultSubjectName,
	}
	patient, err := e.records.Patient(ctx, subject.AccessToken, subject.ICN)
	if err != nil || patient == nil {
		log.Warn().Ctx(ctx).Err(err).Msg("Unable to fetch subject demographics for assignment, using placeholders")
		return result, false
	}
	if len(patient.Name) > 0 {
		if name := summary.FormatName(patient.Name[0]); name != "" {
			result.Name = name
		}
	}
	if patient.BirthDate != nil {
		result.DOB = *patient.BirthDate
	}
	return result, true
}

// Reassign moves a subject to another case worker within the caller's agency.
func (e *Engine) Reassign(ctx context.Context, caller *session.CaseWorker, request ReassignRequest) error {
	if caller == nil {
		return httpserv.Unauthorized("Unauthorized")
	}
	if request.SubjectID == "" || request.CaseWorkerID == 0 {
		return httpserv.BadRequest("Missing required fields")
	}
	changed, err := e.store.reassign(ctx, caller.AgencyID, request.SubjectID, request.CaseWorkerID)
	if err != nil {
		metrics.AssignmentOperations.WithLabelValues("reassign", "rejected").Inc()
		return mapError(err)
	}
	if changed {
		metrics.AssignmentOperations.WithLabelValues("reassign", "moved").Inc()
		log.Info().Ctx(ctx).
			Int(logging.FieldAgencyID, caller.AgencyID).
			Int(logging.FieldCaseWorkerID, request.CaseWorkerID).
			Msgf("Subject reassigned by case worker %d", caller.ID)
	} else {
		metrics.AssignmentOperations.WithLabelValues("reassign", "unchanged").Inc()
	}
	return nil
}

// Query lists subjects within the caller's agency.
func (e *Engine) Query(ctx context.Context, caller *session.CaseWorker, query Query) ([]SubjectLink, error) {
	if caller == nil {
		return nil, httpserv.Unauthorized("Unauthorized")
	}
	if err := requireAgency(ctx, e.store.db, caller.AgencyID); err != nil {
		return nil, mapError(err)
	}
	if query.All {
		return e.store.Links(ctx, caller.AgencyID, nil)
	}
	caseWorkerID := caller.ID
	if query.CaseWorkerID != nil {
		caseWorkerID = *query.CaseWorkerID
	}
	if err := requireCaseWorker(ctx, e.store.db, caller.AgencyID, caseWorkerID); err != nil {
		return nil, mapError(err)
	}
	return e.store.Links(ctx, caller.AgencyID, &caseWorkerID)
}

// Authorized reports whether the case worker may access the subject's records:
// the subject must be assigned within the case worker's agency.
func (e *Engine) Authorized(ctx context.Context, caller *session.CaseWorker, subjectID string) (bool, error) {
	if caller == nil {
		return false, nil
	}
	return e.store.IsAssigned(ctx, caller.AgencyID, subjectID)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrAgencyNotFound):
		return httpserv.BadRequest("Invalid agency")
	case errors.Is(err, ErrCaseWorkerNotFound):
		return httpserv.BadRequest("Invalid case manager")
	case errors.Is(err, ErrSubjectNotFound):
		return httpserv.NotFound("Veteran not found")
	}
	return err
}
