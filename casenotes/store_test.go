package casenotes

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/to"
	"github.com/Simha-Reddy/SSVF-VetConnect/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	t.Run("absent", func(t *testing.T) {
		actual, err := store.Get(ctx, "icn")

		require.NoError(t, err)
		assert.Nil(t, actual)
	})
	t.Run("put and get", func(t *testing.T) {
		expected := Note{LivingSituation: to.Ptr("Sheltered"), LastContact: to.Ptr("2024-01-01")}
		require.NoError(t, store.Put(ctx, "icn", expected))

		actual, err := store.Get(ctx, "icn")

		require.NoError(t, err)
		assert.Equal(t, expected, *actual)
	})
	t.Run("last write wins", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "icn", Note{CaseNotes: to.Ptr("Called, no answer")}))

		actual, err := store.Get(ctx, "icn")

		require.NoError(t, err)
		assert.Equal(t, Note{CaseNotes: to.Ptr("Called, no answer")}, *actual)
	})
	t.Run("database error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectExec("INSERT INTO case_notes").WillReturnError(errors.New("disk I/O error"))

		err = NewStore(db).Put(ctx, "icn", Note{})

		assert.EqualError(t, err, "failed to store case notes: disk I/O error")
	})
}
