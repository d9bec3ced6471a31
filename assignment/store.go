package assignment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Simha-Reddy/SSVF-VetConnect/session"
	"github.com/Simha-Reddy/SSVF-VetConnect/storage"
	"github.com/alexedwards/argon2id"
)

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store persists the assignment tree. Mutations run in a single transaction each.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Agencies returns all agencies (without their case workers), ordered by ID.
func (s *Store) Agencies(ctx context.Context) ([]Agency, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM agencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agencies: %w", err)
	}
	defer rows.Close()
	result := make([]Agency, 0)
	for rows.Next() {
		var agency Agency
		if err := rows.Scan(&agency.ID, &agency.Name); err != nil {
			return nil, err
		}
		result = append(result, agency)
	}
	return result, rows.Err()
}

// CaseWorkers returns the case workers of the agency (IDs and usernames only).
func (s *Store) CaseWorkers(ctx context.Context, agencyID int) ([]CaseWorker, error) {
	if err := requireAgency(ctx, s.db, agencyID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, username FROM case_workers WHERE agency_id = ? ORDER BY position`, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list case workers: %w", err)
	}
	defer rows.Close()
	result := make([]CaseWorker, 0)
	for rows.Next() {
		var caseWorker CaseWorker
		if err := rows.Scan(&caseWorker.ID, &caseWorker.Username); err != nil {
			return nil, err
		}
		result = append(result, caseWorker)
	}
	return result, rows.Err()
}

// Links returns the subjects assigned in the agency, in assignment order. If caseWorkerID is nil,
// the subjects of all case workers are returned, grouped by case worker.
func (s *Store) Links(ctx context.Context, agencyID int, caseWorkerID *int) ([]SubjectLink, error) {
	query := `SELECT l.subject_id, l.display_name, l.date_of_birth, l.case_worker_id
FROM subject_links l JOIN case_workers c ON c.agency_id = l.agency_id AND c.id = l.case_worker_id
WHERE l.agency_id = ?`
	args := []any{agencyID}
	if caseWorkerID != nil {
		query += ` AND l.case_worker_id = ?`
		args = append(args, *caseWorkerID)
	}
	query += ` ORDER BY c.position, l.position`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()
	result := make([]SubjectLink, 0)
	for rows.Next() {
		var link SubjectLink
		if err := rows.Scan(&link.ID, &link.Name, &link.DOB, &link.CaseWorkerID); err != nil {
			return nil, err
		}
		result = append(result, link)
	}
	return result, rows.Err()
}

// IsAssigned reports whether the subject is assigned to any case worker in the agency.
func (s *Store) IsAssigned(ctx context.Context, agencyID int, subjectID string) (bool, error) {
	_, err := currentCaseWorker(ctx, s.db, agencyID, subjectID)
	if errors.Is(err, ErrSubjectNotFound) {
		return false, nil
	}
	return err == nil, err
}

// VerifyCredentials checks a case worker's username (case-insensitive) and password within an agency.
func (s *Store) VerifyCredentials(ctx context.Context, agencyID int, username string, password string) (*session.CaseWorker, error) {
	if err := requireAgency(ctx, s.db, agencyID); err != nil {
		return nil, err
	}
	var result session.CaseWorker
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT id, username, password_hash FROM case_workers WHERE agency_id = ? AND username = ? COLLATE NOCASE`,
		agencyID, strings.TrimSpace(username)).Scan(&result.ID, &result.Username, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read case worker: %w", err)
	}
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return nil, fmt.Errorf("invalid password hash for case worker %d: %w", result.ID, err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}
	result.AgencyID = agencyID
	return &result, nil
}

// Snapshot exports the whole assignment tree.
func (s *Store) Snapshot(ctx context.Context) (*Document, error) {
	agencies, err := s.Agencies(ctx)
	if err != nil {
		return nil, err
	}
	for i := range agencies {
		rows, err := s.db.QueryContext(ctx, `SELECT id, username, password_hash FROM case_workers WHERE agency_id = ? ORDER BY position`, agencies[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list case workers: %w", err)
		}
		for rows.Next() {
			var caseWorker CaseWorker
			if err := rows.Scan(&caseWorker.ID, &caseWorker.Username, &caseWorker.PasswordHash); err != nil {
				_ = rows.Close()
				return nil, err
			}
			agencies[i].CaseWorkers = append(agencies[i].CaseWorkers, caseWorker)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		for j := range agencies[i].CaseWorkers {
			caseWorkerID := agencies[i].CaseWorkers[j].ID
			links, err := s.Links(ctx, agencies[i].ID, &caseWorkerID)
			if err != nil {
				return nil, err
			}
			for _, link := range links {
				link.CaseWorkerID = 0
				agencies[i].CaseWorkers[j].Subjects = append(agencies[i].CaseWorkers[j].Subjects, link)
			}
		}
	}
	return &Document{Version: DocumentVersion, Agencies: agencies}, nil
}

// ImportIfEmpty loads the document into the store if the store holds no agencies yet.
// It reports whether the document was imported.
func (s *Store) ImportIfEmpty(ctx context.Context, document Document) (bool, error) {
	if document.Version != DocumentVersion {
		return false, fmt.Errorf("%w: %d", ErrUnsupportedDocument, document.Version)
	}
	imported := false
	err := storage.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM agencies`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for _, agency := range document.Agencies {
			if _, err := tx.ExecContext(ctx, `INSERT INTO agencies (id, name) VALUES (?, ?)`, agency.ID, agency.Name); err != nil {
				return fmt.Errorf("agency %d: %w", agency.ID, err)
			}
			for position, caseWorker := range agency.CaseWorkers {
				if _, err := tx.ExecContext(ctx, `INSERT INTO case_workers (agency_id, id, username, password_hash, position) VALUES (?, ?, ?, ?, ?)`,
					agency.ID, caseWorker.ID, caseWorker.Username, caseWorker.PasswordHash, position); err != nil {
					return fmt.Errorf("case worker %d of agency %d: %w", caseWorker.ID, agency.ID, err)
				}
				for _, link := range caseWorker.Subjects {
					if _, err := tx.ExecContext(ctx, `INSERT INTO subject_links (agency_id, subject_id, case_worker_id, display_name, date_of_birth, position)
VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM subject_links WHERE agency_id = ? AND case_worker_id = ?))`,
						agency.ID, link.ID, caseWorker.ID, link.Name, link.DOB, agency.ID, caseWorker.ID); err != nil {
						return fmt.Errorf("subject %s in agency %d: %w", link.ID, agency.ID, err)
					}
				}
			}
		}
		imported = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to import assignments: %w", err)
	}
	return imported, nil
}

// assignOutcome tells what Assign changed in the tree.
type assignOutcome int

const (
	assignedNew assignOutcome = iota
	movedFromOther
	alreadyAssigned
)

// assign links the subject to the case worker, moving it away from its current case worker in the agency if needed.
// The move is a single row update, so the subject is never linked to none or both.
// If refreshSnapshot is set, a moved link gets the given name and date of birth, otherwise it keeps its own.
// also runs in the same transaction after the tree was changed; if it fails, nothing is committed.
func (s *Store) assign(ctx context.Context, agencyID int, caseWorkerID int, link SubjectLink, refreshSnapshot bool,
	also func(tx *sql.Tx) error) (assignOutcome, error) {
	var outcome assignOutcome
	err := storage.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if outcome, err = assignInTx(ctx, tx, agencyID, caseWorkerID, link, refreshSnapshot); err != nil {
			return err
		}
		return also(tx)
	})
	return outcome, err
}

func assignInTx(ctx context.Context, tx *sql.Tx, agencyID int, caseWorkerID int, link SubjectLink, refreshSnapshot bool) (assignOutcome, error) {
	if err := requireCaseWorker(ctx, tx, agencyID, caseWorkerID); err != nil {
		return 0, err
	}
	current, err := currentCaseWorker(ctx, tx, agencyID, link.ID)
	switch {
	case errors.Is(err, ErrSubjectNotFound):
		_, err = tx.ExecContext(ctx, `INSERT INTO subject_links (agency_id, subject_id, case_worker_id, display_name, date_of_birth, position)
VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM subject_links WHERE agency_id = ? AND case_worker_id = ?))`,
			agencyID, link.ID, caseWorkerID, link.Name, link.DOB, agencyID, caseWorkerID)
		return assignedNew, err
	case err != nil:
		return 0, err
	case current == caseWorkerID:
		return alreadyAssigned, nil
	}
	if err := moveLink(ctx, tx, agencyID, link.ID, caseWorkerID); err != nil {
		return 0, err
	}
	if refreshSnapshot {
		_, err = tx.ExecContext(ctx, `UPDATE subject_links SET display_name = ?, date_of_birth = ? WHERE agency_id = ? AND subject_id = ?`,
			link.Name, link.DOB, agencyID, link.ID)
	}
	return movedFromOther, err
}

// reassign moves a subject that is assigned in the agency to another case worker of that agency.
// It reports whether anything changed.
func (s *Store) reassign(ctx context.Context, agencyID int, subjectID string, caseWorkerID int) (bool, error) {
	changed := false
	err := storage.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireCaseWorker(ctx, tx, agencyID, caseWorkerID); err != nil {
			return err
		}
		current, err := currentCaseWorker(ctx, tx, agencyID, subjectID)
		if err != nil {
			return err
		}
		if current == caseWorkerID {
			return nil
		}
		changed = true
		return moveLink(ctx, tx, agencyID, subjectID, caseWorkerID)
	})
	return changed, err
}

// moveLink moves the subject's link to the end of the case worker's list.
func moveLink(ctx context.Context, tx *sql.Tx, agencyID int, subjectID string, caseWorkerID int) error {
	_, err := tx.ExecContext(ctx, `UPDATE subject_links SET
	case_worker_id = ?,
	position = (SELECT COALESCE(MAX(position), 0) + 1 FROM subject_links WHERE agency_id = ? AND case_worker_id = ?)
WHERE agency_id = ? AND subject_id = ?`, caseWorkerID, agencyID, caseWorkerID, agencyID, subjectID)
	return err
}

func currentCaseWorker(ctx context.Context, q querier, agencyID int, subjectID string) (int, error) {
	var caseWorkerID int
	err := q.QueryRowContext(ctx, `SELECT case_worker_id FROM subject_links WHERE agency_id = ? AND subject_id = ?`, agencyID, subjectID).Scan(&caseWorkerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrSubjectNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read subject link: %w", err)
	}
	return caseWorkerID, nil
}

func requireAgency(ctx context.Context, q querier, agencyID int) error {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM agencies WHERE id = ?)`, agencyID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to read agency: %w", err)
	}
	if !exists {
		return ErrAgencyNotFound
	}
	return nil
}

func requireCaseWorker(ctx context.Context, q querier, agencyID int, caseWorkerID int) error {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM case_workers WHERE agency_id = ? AND id = ?)`, agencyID, caseWorkerID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to read case worker: %w", err)
	}
	if !exists {
		return ErrCaseWorkerNotFound
	}
	return nil
}
