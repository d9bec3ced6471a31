package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
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

func TestStore_Get(t *testing.T) {
	ctx := context.Background()
	t.Run("not found", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.Get(ctx, "1012345678V123456")
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("without refresh token", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Put(ctx, "1012345678V123456", Credential{AccessToken: "access"}))

		actual, err := store.Get(ctx, "1012345678V123456")
		require.NoError(t, err)
		assert.Equal(t, Credential{AccessToken: "access"}, *actual)
	})
}

func TestStore_Put(t *testing.T) {
	ctx := context.Background()
	t.Run("replaces existing credential", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Put(ctx, "icn", Credential{AccessToken: "a1", RefreshToken: "r1"}))
		require.NoError(t, store.Put(ctx, "icn", Credential{AccessToken: "a2"}))

		actual, err := store.Get(ctx, "icn")
		require.NoError(t, err)
		assert.Equal(t, Credential{AccessToken: "a2"}, *actual)
	})
	t.Run("database error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectExec("INSERT INTO tokens").WillReturnError(errors.New("disk full"))

		err = NewStore(db).Put(ctx, "icn", Credential{AccessToken: "a"})

		assert.EqualError(t, err, "failed to store credential: disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_PutPreservingRefresh(t *testing.T) {
	ctx := context.Background()
	t.Run("keeps stored refresh token", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Put(ctx, "icn", Credential{AccessToken: "a1", RefreshToken: "r1"}))
		require.NoError(t, store.PutPreservingRefresh(ctx, "icn", Credential{AccessToken: "a2"}))

		actual, err := store.Get(ctx, "icn")
		require.NoError(t, err)
		assert.Equal(t, Credential{AccessToken: "a2", RefreshToken: "r1"}, *actual)
	})
	t.Run("overwrites refresh token when given", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Put(ctx, "icn", Credential{AccessToken: "a1", RefreshToken: "r1"}))
		require.NoError(t, store.PutPreservingRefresh(ctx, "icn", Credential{AccessToken: "a2", RefreshToken: "r2"}))

		actual, err := store.Get(ctx, "icn")
		require.NoError(t, err)
		assert.Equal(t, Credential{AccessToken: "a2", RefreshToken: "r2"}, *actual)
	})
	t.Run("new subject", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.PutPreservingRefresh(ctx, "icn", Credential{AccessToken: "a1"}))

		actual, err := store.Get(ctx, "icn")
		require.NoError(t, err)
		assert.Equal(t, Credential{AccessToken: "a1"}, *actual)
	})
	t.Run("in transaction that is rolled back", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Put(ctx, "icn", Credential{AccessToken: "a1", RefreshToken: "r1"}))

		err := storage.InTx(ctx, store.db, func(tx *sql.Tx) error {
			require.NoError(t, store.PutPreservingRefreshInTx(ctx, tx, "icn", Credential{AccessToken: "a2"}))
			return errors.New("abort")
		})

		require.EqualError(t, err, "abort")
		actual, err := store.Get(ctx, "icn")
		require.NoError(t, err)
		assert.Equal(t, Credential{AccessToken: "a1", RefreshToken: "r1"}, *actual)
	})
	t.Run("in transaction that commits", func(t *testing.T) {
		store := newTestStore(t)

		err := storage.InTx(ctx, store.db, func(tx *sql.Tx) error {
			return store.PutPreservingRefreshInTx(ctx, tx, "icn", Credential{AccessToken: "a1", RefreshToken: "r1"})
		})

		require.NoError(t, err)
		actual, err := store.Get(ctx, "icn")
		require.NoError(t, err)
		assert.Equal(t, Credential{AccessToken: "a1", RefreshToken: "r1"}, *actual)
	})
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Put(ctx, "icn", Credential{AccessToken: "a1"}))

	require.NoError(t, store.Remove(ctx, "icn"))
	_, err := store.Get(ctx, "icn")
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("absent subject is no error", func(t *testing.T) {
		assert.NoError(t, store.Remove(ctx, "icn"))
	})
}

func TestStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	const count = 50

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Put(ctx, fmt.Sprintf("icn-%d", i), Credential{AccessToken: fmt.Sprintf("a%d", i)}))
		}(i)
	}
	wg.Wait()

	for i := 0; i < count; i++ {
		actual, err := store.Get(ctx, fmt.Sprintf("icn-%d", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("a%d", i), actual.AccessToken)
	}
}
