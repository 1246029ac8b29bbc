// Package repotest holds the behaviour every repository.Store backend must share.
package repotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/argan/internal/repository"
)

// RunContract exercises a fresh store returned by open.
func RunContract(t *testing.T, open func(t *testing.T) repository.Store) {
	t.Helper()

	t.Run("upsert assigns ids and list keeps insertion order", func(t *testing.T) {
		ctx := context.Background()
		col := open(t).Collection("app/user/purchases")

		first, err := col.Upsert(ctx, "", []byte(`{"supplier":"a"}`))
		require.NoError(t, err)
		require.NotEmpty(t, first)
		second, err := col.Upsert(ctx, "", []byte(`{"supplier":"b"}`))
		require.NoError(t, err)
		require.NotEqual(t, first, second)

		// Overwriting keeps the original position.
		_, err = col.Upsert(ctx, first, []byte(`{"supplier":"a2"}`))
		require.NoError(t, err)

		docs, err := col.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		require.Equal(t, first, docs[0].ID)
		require.JSONEq(t, `{"supplier":"a2"}`, string(docs[0].Data))
		require.Equal(t, second, docs[1].ID)
	})

	t.Run("get and delete report missing ids", func(t *testing.T) {
		ctx := context.Background()
		col := open(t).Collection("app/user/sales")

		_, err := col.Get(ctx, "missing")
		require.ErrorIs(t, err, repository.ErrNotFound)
		require.ErrorIs(t, col.Delete(ctx, "missing"), repository.ErrNotFound)

		id, err := col.Upsert(ctx, "", []byte(`{"client":"x"}`))
		require.NoError(t, err)
		doc, err := col.Get(ctx, id)
		require.NoError(t, err)
		require.JSONEq(t, `{"client":"x"}`, string(doc.Data))

		require.NoError(t, col.Delete(ctx, id))
		docs, err := col.List(ctx)
		require.NoError(t, err)
		require.Empty(t, docs)
	})

	t.Run("upsert with a caller id creates the singleton", func(t *testing.T) {
		ctx := context.Background()
		col := open(t).Collection("app/public/data/settings")

		id, err := col.Upsert(ctx, repository.SettingsDocumentID, []byte(`{"name":"Tifaout"}`))
		require.NoError(t, err)
		require.Equal(t, repository.SettingsDocumentID, id)

		doc, err := col.Get(ctx, repository.SettingsDocumentID)
		require.NoError(t, err)
		require.JSONEq(t, `{"name":"Tifaout"}`, string(doc.Data))
	})

	t.Run("paths are isolated", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		_, err := store.Collection("app/alice/stock").Upsert(ctx, "", []byte(`{}`))
		require.NoError(t, err)

		docs, err := store.Collection("app/bob/stock").List(ctx)
		require.NoError(t, err)
		require.Empty(t, docs)
	})

	t.Run("subscribers receive full snapshots", func(t *testing.T) {
		ctx := context.Background()
		col := open(t).Collection("app/user/stock")

		var (
			mu   sync.Mutex
			last []repository.Document
		)
		cancel, err := col.Subscribe(ctx, func(docs []repository.Document) {
			mu.Lock()
			last = docs
			mu.Unlock()
		})
		require.NoError(t, err)
		defer cancel()

		_, err = col.Upsert(ctx, "", []byte(`{"item":"a"}`))
		require.NoError(t, err)
		_, err = col.Upsert(ctx, "", []byte(`{"item":"b"}`))
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(last) == 2
		}, 2*time.Second, 10*time.Millisecond)
	})
}
