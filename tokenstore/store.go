// Package tokenstore keeps the OAuth2 credentials granted by subjects, keyed by the subject's ICN.
package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no credential is stored for a subject.
var ErrNotFound = errors.New("no credential stored for subject")

// Credential is the OAuth2 credential pair of a subject. RefreshToken is optional.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// Store persists one Credential per subject. Every operation is a single SQL statement,
// so concurrent writers for different subjects never lose each other's updates.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get returns the stored credential of the subject, or ErrNotFound.
func (s *Store) Get(ctx context.Context, subjectID string) (*Credential, error) {
	var result Credential
	var refreshToken sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT access_token, refresh_token FROM tokens WHERE subject_id = ?`, subjectID).
		Scan(&result.AccessToken, &refreshToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	result.RefreshToken = refreshToken.String
	return &result, nil
}

// Put stores the credential of the subject, replacing any existing credential.
// An empty refresh token is stored as absent.
func (s *Store) Put(ctx context.Context, subjectID string, credential Credential) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tokens (subject_id, access_token, refresh_token, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (subject_id) DO UPDATE SET
	access_token = excluded.access_token,
	refresh_token = excluded.refresh_token,
	updated_at = excluded.updated_at`,
		subjectID, credential.AccessToken, nullIfEmpty(credential.RefreshToken), s.timestamp())
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// PutPreservingRefresh stores the access token of the subject. If credential carries no refresh token,
// the refresh token that is already stored (if any) is kept.
func (s *Store) PutPreservingRefresh(ctx context.Context, subjectID string, credential Credential) error {
	return s.putPreservingRefresh(ctx, s.db, subjectID, credential)
}

// PutPreservingRefreshInTx is PutPreservingRefresh as part of the caller's transaction,
// so the credential is only stored if the transaction commits.
func (s *Store) PutPreservingRefreshInTx(ctx context.Context, tx *sql.Tx, subjectID string, credential Credential) error {
	return s.putPreservingRefresh(ctx, tx, subjectID, credential)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) putPreservingRefresh(ctx context.Context, db execer, subjectID string, credential Credential) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO tokens (subject_id, access_token, refresh_token, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (subject_id) DO UPDATE SET
	access_token = excluded.access_token,
	refresh_token = COALESCE(excluded.refresh_token, tokens.refresh_token),
	updated_at = excluded.updated_at`,
		subjectID, credential.AccessToken, nullIfEmpty(credential.RefreshToken), s.timestamp())
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Remove deletes the credential of the subject. Removing an absent credential is not an error.
func (s *Store) Remove(ctx context.Context, subjectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE subject_id = ?`, subjectID); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
