package assignment

import (
	"context"
	"testing"

	"github.com/Simha-Reddy/SSVF-VetConnect/session"
	"github.com/Simha-Reddy/SSVF-VetConnect/storage"
	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHashParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func hash(t *testing.T, password string) string {
	t.Helper()
	result, err := argon2id.CreateHash(password, testHashParams)
	require.NoError(t, err)
	return result
}

// testDocument has two agencies. In agency 1, bob (2) has subject S2. In agency 2, carol (1) has subject S2 too.
func testDocument(t *testing.T) Document {
	return Document{
		Version: DocumentVersion,
		Agencies: []Agency{
			{
				ID:   1,
				Name: "Agency One",
				CaseWorkers: []CaseWorker{
					{ID: 1, Username: "alice", PasswordHash: hash(t, "alice-secret")},
					{ID: 2, Username: "bob", PasswordHash: hash(t, "bob-secret"), Subjects: []SubjectLink{
						{ID: "S2", Name: "Jane Roe", DOB: "1970-05-05"},
					}},
				},
			},
			{
				ID:   2,
				Name: "Agency Two",
				CaseWorkers: []CaseWorker{
					{ID: 1, Username: "carol", PasswordHash: hash(t, "carol-secret"), Subjects: []SubjectLink{
						{ID: "S2", Name: "Jane Roe", DOB: "1970-05-05"},
					}},
				},
			},
		},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := NewStore(db)
	imported, err := store.ImportIfEmpty(context.Background(), testDocument(t))
	require.NoError(t, err)
	require.True(t, imported)
	return store
}

// requireAssignmentInvariant fails the test if any subject is linked to more than one case worker within an agency.
func requireAssignmentInvariant(t *testing.T, store *Store) {
	t.Helper()
	document, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	for _, agency := range document.Agencies {
		seen := map[string]int{}
		for _, caseWorker := range agency.CaseWorkers {
			for _, link := range caseWorker.Subjects {
				seen[link.ID]++
				require.Equalf(t, 1, seen[link.ID], "subject %s linked more than once in agency %d", link.ID, agency.ID)
			}
		}
	}
}

func subjectIDs(links []SubjectLink) []string {
	result := make([]string, 0, len(links))
	for _, link := range links {
		result = append(result, link.ID)
	}
	return result
}

func TestStore_Agencies(t *testing.T) {
	agencies, err := newTestStore(t).Agencies(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []Agency{{ID: 1, Name: "Agency One"}, {ID: 2, Name: "Agency Two"}}, agencies)
}

func TestStore_CaseWorkers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	t.Run("ok", func(t *testing.T) {
		caseWorkers, err := store.CaseWorkers(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, []CaseWorker{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}}, caseWorkers)
	})
	t.Run("unknown agency", func(t *testing.T) {
		_, err := store.CaseWorkers(ctx, 99)

		assert.ErrorIs(t, err, ErrAgencyNotFound)
	})
}

func TestStore_VerifyCredentials(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	t.Run("ok", func(t *testing.T) {
		actual, err := store.VerifyCredentials(ctx, 1, "bob", "bob-secret")

		require.NoError(t, err)
		assert.Equal(t, session.CaseWorker{ID: 2, AgencyID: 1, Username: "bob"}, *actual)
	})
	t.Run("username is case-insensitive", func(t *testing.T) {
		actual, err := store.VerifyCredentials(ctx, 1, "BoB", "bob-secret")

		require.NoError(t, err)
		assert.Equal(t, "bob", actual.Username)
	})
	t.Run("wrong password", func(t *testing.T) {
		_, err := store.VerifyCredentials(ctx, 1, "bob", "alice-secret")

		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
	t.Run("case worker of another agency", func(t *testing.T) {
		_, err := store.VerifyCredentials(ctx, 1, "carol", "carol-secret")

		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
	t.Run("unknown agency", func(t *testing.T) {
		_, err := store.VerifyCredentials(ctx, 99, "bob", "bob-secret")

		assert.ErrorIs(t, err, ErrAgencyNotFound)
	})
}

func TestStore_ImportIfEmpty(t *testing.T) {
	ctx := context.Background()
	t.Run("not imported when populated", func(t *testing.T) {
		store := newTestStore(t)

		imported, err := store.ImportIfEmpty(ctx, Document{Version: DocumentVersion, Agencies: []Agency{{ID: 3, Name: "Other"}}})

		require.NoError(t, err)
		assert.False(t, imported)
		agencies, err := store.Agencies(ctx)
		require.NoError(t, err)
		assert.Len(t, agencies, 2)
	})
	t.Run("unsupported version", func(t *testing.T) {
		_, err := newTestStore(t).ImportIfEmpty(ctx, Document{Version: 2})

		assert.ErrorIs(t, err, ErrUnsupportedDocument)
	})
	t.Run("subject linked twice in agency is rejected", func(t *testing.T) {
		db, err := storage.Open(ctx, storage.InMemory)
		require.NoError(t, err)
		defer db.Close()
		store := NewStore(db)

		_, err = store.ImportIfEmpty(ctx, Document{Version: DocumentVersion, Agencies: []Agency{{
			ID: 1, Name: "Agency",
			CaseWorkers: []CaseWorker{
				{ID: 1, Username: "a", Subjects: []SubjectLink{{ID: "S1"}}},
				{ID: 2, Username: "b", Subjects: []SubjectLink{{ID: "S1"}}},
			},
		}}})

		require.ErrorContains(t, err, "subject S1 in agency 1")
		agencies, err := store.Agencies(ctx)
		require.NoError(t, err)
		assert.Empty(t, agencies)
	})
}

func TestStore_Snapshot(t *testing.T) {
	store := newTestStore(t)
	expected := testDocument(t)

	actual, err := store.Snapshot(context.Background())

	require.NoError(t, err)
	require.Len(t, actual.Agencies, 2)
	assert.Equal(t, DocumentVersion, actual.Version)
	assert.Equal(t, expected.Agencies[0].CaseWorkers[1].Subjects, actual.Agencies[0].CaseWorkers[1].Subjects)
	assert.Empty(t, actual.Agencies[0].CaseWorkers[0].Subjects)
	assert.Equal(t, "carol", actual.Agencies[1].CaseWorkers[0].Username)
	assert.NotEmpty(t, actual.Agencies[1].CaseWorkers[0].PasswordHash)
}

func TestStore_IsAssigned(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	assigned, err := store.IsAssigned(ctx, 1, "S2")
	require.NoError(t, err)
	assert.True(t, assigned)

	assigned, err = store.IsAssigned(ctx, 1, "S1")
	require.NoError(t, err)
	assert.False(t, assigned)
}

func TestSeed(t *testing.T) {
	t.Run("no file configured", func(t *testing.T) {
		assert.NoError(t, Seed(context.Background(), nil, ""))
	})
	t.Run("file does not exist", func(t *testing.T) {
		db, err := storage.Open(context.Background(), storage.InMemory)
		require.NoError(t, err)
		defer db.Close()

		err = Seed(context.Background(), NewStore(db), "does-not-exist.json")

		assert.ErrorContains(t, err, "failed to read assignments document")
	})
	t.Run("ok", func(t *testing.T) {
		db, err := storage.Open(context.Background(), storage.InMemory)
		require.NoError(t, err)
		defer db.Close()
		store := NewStore(db)

		require.NoError(t, Seed(context.Background(), store, "testdata/assignments.json"))

		caseWorkers, err := store.CaseWorkers(context.Background(), 1)
		require.NoError(t, err)
		assert.Len(t, caseWorkers, 2)
		links, err := store.Links(context.Background(), 1, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"1012345678V123456"}, subjectIDs(links))
	})
}
