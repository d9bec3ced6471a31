// Package casenotes stores the free-form notes case workers keep per subject. Last write wins.
package casenotes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Note is the case workers' notes on a subject. Absent fields are stored as null.
type Note struct {
	LivingSituation *string `json:"living_situation"`
	LastContact     *string `json:"last_contact"`
	CaseNotes       *string `json:"case_notes"`
}

type Store struct {
	db *sql.DB
	// writes serializes writers, so a note is always replaced by exactly one complete write.
	writes sync.Mutex
	now    func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get returns the note on the subject, or nil if there is none.
func (s *Store) Get(ctx context.Context, subjectID string) (*Note, error) {
	var result Note
	var living, contact, notes sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT living_situation, last_contact, case_notes FROM case_notes WHERE subject_id = ?`, subjectID).
		Scan(&living, &contact, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read case notes: %w", err)
	}
	result.LivingSituation = fromNull(living)
	result.LastContact = fromNull(contact)
	result.CaseNotes = fromNull(notes)
	return &result, nil
}

// Put replaces the note on the subject.
func (s *Store) Put(ctx context.Context, subjectID string, note Note) error {
	s.writes.Lock()
	defer s.writes.Unlock()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO case_notes (subject_id, living_situation, last_contact, case_notes, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (subject_id) DO UPDATE SET
	living_situation = excluded.living_situation,
	last_contact = excluded.last_contact,
	case_notes = excluded.case_notes,
	updated_at = excluded.updated_at`,
		subjectID, toNull(note.LivingSituation), toNull(note.LastContact), toNull(note.CaseNotes), s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store case notes: %w", err)
	}
	return nil
}

func fromNull(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

func toNull(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
