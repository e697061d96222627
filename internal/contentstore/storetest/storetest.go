// Package storetest is a conformance suite every contentstore.Store must pass.
package storetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credledger/internal/contentstore"
)

// NewStore constructs a fresh, empty store isolated from other tests.
type NewStore func(t *testing.T) contentstore.Store

// RunConformance exercises the Store contract against newStore.
func RunConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		store := newStore(t)
		payload := json.RawMessage(`{"school":"X","year":2024}`)

		addr, err := store.Put(ctx, payload)
		require.NoError(t, err)
		_, err = contentstore.ParseAddress(addr.String())
		require.NoError(t, err, "Put must return a valid CID")

		got, err := store.Get(ctx, addr)
		require.NoError(t, err)
		assert.JSONEq(t, string(payload), string(got))
	})

	t.Run("PutIsIdempotent", func(t *testing.T) {
		store := newStore(t)

		a1, err := store.Put(ctx, json.RawMessage(`{"school":"X"}`))
		require.NoError(t, err)
		a2, err := store.Put(ctx, json.RawMessage(`{ "school" : "X" }`))
		require.NoError(t, err)

		assert.Equal(t, a1, a2, "equal documents share an address")
	})

	t.Run("PutRejectsMalformedPayload", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Put(ctx, json.RawMessage(`{"school":`))
		assert.ErrorIs(t, err, contentstore.ErrStoreRejected)
	})

	t.Run("GetUnknownAddress", func(t *testing.T) {
		store := newStore(t)
		addr, err := contentstore.AddressOf([]byte("never stored"))
		require.NoError(t, err)

		_, err = store.Get(ctx, addr)
		assert.ErrorIs(t, err, contentstore.ErrNotFound)
	})
}
