package storage

// migrations holds the schema, one entry per version. Entries are append-only:
// a released migration is never edited, changes go into a new entry.
var migrations = []string{
	// 1: tokens, assignment tree, case notes
	`
CREATE TABLE tokens (
	subject_id    TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT,
	updated_at    TEXT NOT NULL
);

CREATE TABLE agencies (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE case_workers (
	agency_id     INTEGER NOT NULL REFERENCES agencies (id),
	id            INTEGER NOT NULL,
	username      TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	position      INTEGER NOT NULL,
	PRIMARY KEY (agency_id, id)
);
CREATE UNIQUE INDEX idx_case_workers_username ON case_workers (agency_id, username COLLATE NOCASE);

-- The primary key enforces that a subject is linked to at most one case worker per agency.
CREATE TABLE subject_links (
	agency_id      INTEGER NOT NULL,
	subject_id     TEXT NOT NULL,
	case_worker_id INTEGER NOT NULL,
	display_name   TEXT NOT NULL,
	date_of_birth  TEXT NOT NULL,
	position       INTEGER NOT NULL,
	PRIMARY KEY (agency_id, subject_id),
	FOREIGN KEY (agency_id, case_worker_id) REFERENCES case_workers (agency_id, id)
);
CREATE INDEX idx_subject_links_case_worker ON subject_links (agency_id, case_worker_id, position);

CREATE TABLE case_notes (
	subject_id       TEXT PRIMARY KEY,
	living_situation TEXT,
	last_contact     TEXT,
	case_notes       TEXT,
	updated_at       TEXT NOT NULL
);
`,
}

// LatestSchemaVersion is the schema version a freshly migrated database has.
var LatestSchemaVersion = len(migrations)
