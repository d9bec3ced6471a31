// Package assignment maintains which case worker in an agency is responsible for which subject.
// Within one agency a subject is linked to at most one case worker.
package assignment

import "errors"

var (
	ErrAgencyNotFound      = errors.New("agency not found")
	ErrCaseWorkerNotFound  = errors.New("case worker not found")
	ErrSubjectNotFound     = errors.New("subject not assigned in agency")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnsupportedDocument = errors.New("unsupported assignments document version")
)

// DocumentVersion is the version of the assignments document format.
const DocumentVersion = 1

// Document is the serialized form of the whole assignment tree, used for seeding and exporting.
type Document struct {
	Version  int      `json:"version"`
	Agencies []Agency `json:"agencies"`
}

type Agency struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	CaseWorkers []CaseWorker `json:"case_managers,omitempty"`
}

type CaseWorker struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	// PasswordHash is an argon2id hash in PHC string format.
	PasswordHash string        `json:"password_hash,omitempty"`
	Subjects     []SubjectLink `json:"veterans,omitempty"`
}

// SubjectLink is a snapshot of the subject's demographics taken at assignment time.
type SubjectLink struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	DOB  string `json:"dob"`
	// CaseWorkerID is set on query results, so a listing spanning case workers tells who is responsible.
	CaseWorkerID int `json:"case_manager_id,omitempty"`
}
